package stack

import(
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"sunstack/pkg/drizzle"
	"sunstack/pkg/quality"
	"sunstack/pkg/rotation"
)

// LimbStage says when (or whether) limb darkening correction runs.
type LimbStage int

const (
	LimbOff LimbStage = iota
	LimbPreStack
	LimbPostStack
)

func (s LimbStage)String() string {
	switch s {
	case LimbPreStack: return "pre-stack"
	case LimbPostStack: return "post-stack"
	}
	return "off"
}

/* Example config file ...

light: session1/sun_122033.ser
dark: session1/dark.ser
flat: session1/flat.ser
hotpixelmap: camera/asi174mm.toml

target: sun
mount: alt-az
latitude: 34.0
longitude: -118.0

minsigma: 0.0
toppercentage: 70
drizzlescale: 1.5
dropfootprint: bilinear
limbcorrection: post-stack

output: sun_122033_stacked.png
*/

type Config struct {
	// Input sequences; only Light is required
	Light        string
	Dark         string
	Flat         string
	DarkFlat     string
	Bias         string
	HotPixelMap  string

	// Object detection; 0 means adaptive per-frame threshold
	DetectionThreshold float64

	// Quality limiting
	MinSigma       float64
	MaxSigma       float64
	TopPercentage  float64
	MaxFrames      int
	AnalysisWindow int

	// Geometry for field derotation
	Target    string
	Mount     string
	Latitude  float64
	Longitude float64

	// Stacking
	DrizzleScale     float64
	DropFootprint    string
	SigmaClipMasters bool

	// Limb darkening
	LimbCorrection  string  // off | pre-stack | post-stack
	LimbCoefficient float64 // 0 means fit the profile empirically

	// Output
	Output    string
	WriteTIFF bool
	WriteHDR  bool

	Workers   int
	Verbosity int

	// Values we derive in Finalize, for access by the rest of the run
	TargetKind rotation.Target    `yaml:"-"`
	MountKind  rotation.MountKind `yaml:"-"`
	Scale      drizzle.Scale      `yaml:"-"`
	Drop       drizzle.Drop       `yaml:"-"`
	Limb       LimbStage          `yaml:"-"`
}

func NewConfig() Config {
	return Config{
		TopPercentage:   100,
		MaxFrames:       5000,
		AnalysisWindow:  quality.DefaultWindowSize,
		Target:          "sun",
		Mount:           "alt-az",
		DrizzleScale:    1.0,
		DropFootprint:   "bilinear",
		LimbCorrection:  "off",
		LimbCoefficient: 0.56,
		Output:          "stacked.png",
	}
}

func LoadConfig(filename string) (Config, error) {
	c := NewConfig()

	contents, err := os.ReadFile(filename)
	if err != nil {
		return c, fmt.Errorf("config read '%s': %v", filename, err)
	}
	if err := yaml.Unmarshal(contents, &c); err != nil {
		return c, fmt.Errorf("config parse '%s': %v", filename, err)
	}

	return c, c.Finalize()
}

func (c Config)AsYaml() string {
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Sprintf("# marshal failed: %v", err)
	}
	return string(b)
}

// Finalize does sanity checks and parses the string-valued options
// into their enums. Configuration errors surface here, before any
// frame has been touched.
func (c *Config)Finalize() error {
	if c.Light == "" {
		return fmt.Errorf("%w: no light frame input", rotation.ErrConfiguration)
	}

	var err error
	if c.TargetKind, err = rotation.ParseTarget(c.Target); err != nil {
		return err
	}
	if c.MountKind, err = rotation.ParseMountKind(c.Mount); err != nil {
		return err
	}
	if c.Scale, err = drizzle.ParseScale(c.DrizzleScale); err != nil {
		return err
	}
	if c.Drop, err = drizzle.ParseDrop(c.DropFootprint); err != nil {
		return err
	}

	switch c.LimbCorrection {
	case "off", "": c.Limb = LimbOff
	case "pre-stack": c.Limb = LimbPreStack
	case "post-stack": c.Limb = LimbPostStack
	default:
		return fmt.Errorf("%w: limb correction stage '%s' (want off|pre-stack|post-stack)",
			rotation.ErrConfiguration, c.LimbCorrection)
	}

	if c.MountKind == rotation.AltAz {
		if c.Latitude < -90 || c.Latitude > 90 {
			return fmt.Errorf("%w: latitude %g out of range", rotation.ErrConfiguration, c.Latitude)
		}
		if c.Longitude < -180 || c.Longitude > 360 {
			return fmt.Errorf("%w: longitude %g out of range", rotation.ErrConfiguration, c.Longitude)
		}
	}

	if c.TopPercentage <= 0 || c.TopPercentage > 100 {
		c.TopPercentage = 100
	}
	if c.AnalysisWindow < 2 {
		c.AnalysisWindow = quality.DefaultWindowSize
	}

	return nil
}

func (c Config)Observer() rotation.Observer {
	return rotation.Observer{LatitudeDeg: c.Latitude, LongitudeDeg: c.Longitude}
}

func (c Config)Limits() quality.Limits {
	return quality.Limits{
		MinSigma:      c.MinSigma,
		MaxSigma:      c.MaxSigma,
		TopPercentage: c.TopPercentage,
		MaxFrames:     c.MaxFrames,
	}
}
