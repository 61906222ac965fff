package stack

import(
	"os"
	"path/filepath"
	"testing"

	"sunstack/pkg/drizzle"
	"sunstack/pkg/rotation"
)

func TestNewConfigDefaults(t *testing.T) {
	c := NewConfig()
	c.Light = "lights.ser"
	if err := c.Finalize(); err != nil {
		t.Fatalf("default config should finalize: %v", err)
	}

	if c.TargetKind != rotation.Sun || c.MountKind != rotation.AltAz {
		t.Errorf("default target/mount = %s/%s, want sun/alt-az", c.TargetKind, c.MountKind)
	}
	if c.Scale != drizzle.Scale1x || c.Drop != drizzle.DropBilinear {
		t.Errorf("default drizzle = %gx %s, want 1x bilinear", float64(c.Scale), c.Drop)
	}
	if c.Limb != LimbOff {
		t.Errorf("default limb stage = %s, want off", c.Limb)
	}
	if c.TopPercentage != 100 || c.MaxFrames != 5000 {
		t.Errorf("default limits = top %g%% max %d", c.TopPercentage, c.MaxFrames)
	}
}

func TestFinalizeRequiresLight(t *testing.T) {
	c := NewConfig()
	if err := c.Finalize(); err == nil {
		t.Errorf("config without a light sequence should fail")
	}
}

func TestFinalizeRejectsBadEnums(t *testing.T) {
	cases := []func(*Config){
		func(c *Config) { c.Target = "mars" },
		func(c *Config) { c.Mount = "fork" },
		func(c *Config) { c.DrizzleScale = 2.5 },
		func(c *Config) { c.DropFootprint = "lanczos" },
		func(c *Config) { c.LimbCorrection = "sometimes" },
		func(c *Config) { c.Latitude = 91 },
		func(c *Config) { c.Longitude = -500 },
	}
	for i, mutate := range cases {
		c := NewConfig()
		c.Light = "lights.ser"
		mutate(&c)
		if err := c.Finalize(); err == nil {
			t.Errorf("case %d: bad config finalized without error", i)
		}
	}
}

func TestFinalizeLatitudeOnlyMattersForAltAz(t *testing.T) {
	c := NewConfig()
	c.Light = "lights.ser"
	c.Mount = "eq"
	c.Latitude = 91 // nonsense, but an equatorial run never uses it
	if err := c.Finalize(); err != nil {
		t.Errorf("equatorial config rejected: %v", err)
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	contents := `
light: session1/sun.ser
dark: session1/dark.ser
target: sun
mount: eq
toppercentage: 70
drizzlescale: 1.5
dropfootprint: point
limbcorrection: post-stack
limbcoefficient: 0.56
output: out.png
`
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatal(err)
	}

	c, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if c.Light != "session1/sun.ser" || c.Dark != "session1/dark.ser" {
		t.Errorf("inputs = %q / %q", c.Light, c.Dark)
	}
	if c.Scale != drizzle.Scale15x || c.Drop != drizzle.DropPoint {
		t.Errorf("drizzle = %gx %s, want 1.5x point", float64(c.Scale), c.Drop)
	}
	if c.Limb != LimbPostStack {
		t.Errorf("limb stage = %s, want post-stack", c.Limb)
	}
	if c.TopPercentage != 70 {
		t.Errorf("top percentage = %g, want 70", c.TopPercentage)
	}
	// Unset fields keep their defaults.
	if c.MaxFrames != 5000 {
		t.Errorf("max frames = %d, want the 5000 default", c.MaxFrames)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Errorf("missing config file should fail")
	}
}

func TestAsYamlRoundTrips(t *testing.T) {
	c := NewConfig()
	c.Light = "x.ser"
	if s := c.AsYaml(); s == "" {
		t.Errorf("AsYaml produced nothing")
	}
}
