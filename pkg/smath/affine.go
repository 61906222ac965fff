package smath

// Affine transformations used to register frames - translation for
// centroid alignment, rotation for field derotation, scaling for
// drizzle upsampling.

import(
	"fmt"
	"math"

	"golang.org/x/image/math/f64"  // Will be "image/math/f64" at some point, hopefully make this file redundant
)

// Use a local type so we can hang methods off it
type Aff3 f64.Aff3

// Cut-n-pasted from image@0.7.0/draw/scale:matMul
func (p Aff3)Mult(q Aff3) Aff3 {
	return Aff3{
		p[3*0+0]*q[3*0+0] + p[3*0+1]*q[3*1+0],
		p[3*0+0]*q[3*0+1] + p[3*0+1]*q[3*1+1],
		p[3*0+0]*q[3*0+2] + p[3*0+1]*q[3*1+2] + p[3*0+2],
		p[3*1+0]*q[3*0+0] + p[3*1+1]*q[3*1+0],
		p[3*1+0]*q[3*0+1] + p[3*1+1]*q[3*1+1],
		p[3*1+0]*q[3*0+2] + p[3*1+1]*q[3*1+2] + p[3*1+2],
	}
}

func Identity() Aff3 {
	return Aff3{1, 0, 0,   0, 1, 0}
}

func (m1 Aff3)Translate(tx, ty float64) Aff3 {
	return m1.Mult(Aff3{1, 0, tx,   0, 1, ty})
}

func (m1 Aff3)Scale(s float64) Aff3 {
	return m1.Mult(Aff3{s, 0, 0,   0, s, 0})
}

func (m1 Aff3)Rotate(thetaRad float64) Aff3 {
	cosTheta := math.Cos(thetaRad)
	sinTheta := math.Sin(thetaRad)
	return m1.Mult(Aff3{cosTheta, -1*sinTheta, 0,    sinTheta, cosTheta, 0})
}

func RotateAbout(thetaRad, x, y float64) Aff3 {
	// Remember they compose back to front - rightmost operations performed first
	return Identity().Translate(x, y).Rotate(thetaRad).Translate(-1*x, -1*y)
}

// Apply maps the point (x,y) through the transform.
func (m Aff3)Apply(x, y float64) (float64, float64) {
	return m[0]*x + m[1]*y + m[2], m[3]*x + m[4]*y + m[5]
}

// Invert returns the inverse transform. Our matrices are always
// rigid-body plus uniform scale, so the determinant only vanishes for
// a degenerate zero scale.
func (m Aff3)Invert() (Aff3, error) {
	det := m[0]*m[4] - m[1]*m[3]
	if math.Abs(det) < 1e-12 {
		return Identity(), fmt.Errorf("affine transform is singular, det=%g", det)
	}
	inv := Aff3{
		m[4] / det, -m[1] / det, 0,
		-m[3] / det, m[0] / det, 0,
	}
	inv[2] = -1 * (inv[0]*m[2] + inv[1]*m[5])
	inv[5] = -1 * (inv[3]*m[2] + inv[4]*m[5])
	return inv, nil
}

func (m Aff3)String() string {
	return fmt.Sprintf("[%8.4f %8.4f %10.3f / %8.4f %8.4f %10.3f]", m[0], m[1], m[2], m[3], m[4], m[5])
}
