package main

import(
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"sunstack/pkg/stack"
)

// configFlags wires the run options onto a command. A YAML config
// file supplies the baseline; any flag the user sets explicitly wins.
func configFlags(cmd *cobra.Command, cfg *stack.Config, configPath *string) {
	f := cmd.Flags()

	f.StringVarP(configPath, "config", "c", "", "YAML run configuration file")

	f.StringVar(&cfg.Light, "light", cfg.Light, "light frame SER file")
	f.StringVar(&cfg.Dark, "dark", cfg.Dark, "dark frame SER file")
	f.StringVar(&cfg.Flat, "flat", cfg.Flat, "flat frame SER file")
	f.StringVar(&cfg.DarkFlat, "darkflat", cfg.DarkFlat, "dark-flat frame SER file")
	f.StringVar(&cfg.Bias, "bias", cfg.Bias, "bias frame SER file")
	f.StringVar(&cfg.HotPixelMap, "hotpixelmap", cfg.HotPixelMap, "hot pixel map TOML file")

	f.Float64Var(&cfg.DetectionThreshold, "threshold", cfg.DetectionThreshold, "object detection threshold in [0,1]; 0 = adaptive")
	f.Float64Var(&cfg.MinSigma, "minsigma", cfg.MinSigma, "reject frames with sigma below this")
	f.Float64Var(&cfg.MaxSigma, "maxsigma", cfg.MaxSigma, "reject frames with sigma above this (0 = unbounded)")
	f.Float64Var(&cfg.TopPercentage, "top", cfg.TopPercentage, "keep only the best N% of frames by sigma")
	f.IntVar(&cfg.MaxFrames, "maxframes", cfg.MaxFrames, "hard cap on frames stacked")
	f.IntVar(&cfg.AnalysisWindow, "window", cfg.AnalysisWindow, "analysis window size in pixels")

	f.StringVar(&cfg.Target, "target", cfg.Target, "target: sun|moon")
	f.StringVar(&cfg.Mount, "mount", cfg.Mount, "mount kind: alt-az|equatorial")
	f.Float64Var(&cfg.Latitude, "latitude", cfg.Latitude, "observer latitude, degrees north")
	f.Float64Var(&cfg.Longitude, "longitude", cfg.Longitude, "observer longitude, degrees east")

	f.Float64Var(&cfg.DrizzleScale, "scale", cfg.DrizzleScale, "drizzle output scale: 1.0, 1.5, 2.0 or 3.0")
	f.StringVar(&cfg.DropFootprint, "drop", cfg.DropFootprint, "drizzle drop footprint: point|bilinear")
	f.BoolVar(&cfg.SigmaClipMasters, "sigmaclip", cfg.SigmaClipMasters, "sigma-clip when building master calibration frames")

	f.StringVar(&cfg.LimbCorrection, "limb", cfg.LimbCorrection, "limb darkening correction: off|pre-stack|post-stack")
	f.Float64Var(&cfg.LimbCoefficient, "limbcoeff", cfg.LimbCoefficient, "limb darkening coefficient; 0 = fit empirically")

	f.StringVarP(&cfg.Output, "output", "o", cfg.Output, "stacked image output path (PNG)")
	f.BoolVar(&cfg.WriteTIFF, "tiff", cfg.WriteTIFF, "also write a 16-bit TIFF")
	f.BoolVar(&cfg.WriteHDR, "hdr", cfg.WriteHDR, "also write the linear stack as Radiance HDR")

	f.IntVar(&cfg.Workers, "workers", cfg.Workers, "worker count; 0 = physical cores")
	f.IntVarP(&cfg.Verbosity, "verbose", "v", cfg.Verbosity, "how verbose to get")
}

// loadConfig merges the config file (if any) under the flags the user
// actually set.
func loadConfig(cmd *cobra.Command, cfg *stack.Config, configPath string) error {
	if configPath == "" {
		return nil
	}

	fileCfg, err := stack.LoadConfig(configPath)
	if err != nil {
		return err
	}

	// Start from the file, then re-apply explicit flags on top.
	flagCfg := *cfg
	*cfg = fileCfg
	visit := map[string]func(){
		"light":       func() { cfg.Light = flagCfg.Light },
		"dark":        func() { cfg.Dark = flagCfg.Dark },
		"flat":        func() { cfg.Flat = flagCfg.Flat },
		"darkflat":    func() { cfg.DarkFlat = flagCfg.DarkFlat },
		"bias":        func() { cfg.Bias = flagCfg.Bias },
		"hotpixelmap": func() { cfg.HotPixelMap = flagCfg.HotPixelMap },
		"threshold":   func() { cfg.DetectionThreshold = flagCfg.DetectionThreshold },
		"minsigma":    func() { cfg.MinSigma = flagCfg.MinSigma },
		"maxsigma":    func() { cfg.MaxSigma = flagCfg.MaxSigma },
		"top":         func() { cfg.TopPercentage = flagCfg.TopPercentage },
		"maxframes":   func() { cfg.MaxFrames = flagCfg.MaxFrames },
		"window":      func() { cfg.AnalysisWindow = flagCfg.AnalysisWindow },
		"target":      func() { cfg.Target = flagCfg.Target },
		"mount":       func() { cfg.Mount = flagCfg.Mount },
		"latitude":    func() { cfg.Latitude = flagCfg.Latitude },
		"longitude":   func() { cfg.Longitude = flagCfg.Longitude },
		"scale":       func() { cfg.DrizzleScale = flagCfg.DrizzleScale },
		"drop":        func() { cfg.DropFootprint = flagCfg.DropFootprint },
		"sigmaclip":   func() { cfg.SigmaClipMasters = flagCfg.SigmaClipMasters },
		"limb":        func() { cfg.LimbCorrection = flagCfg.LimbCorrection },
		"limbcoeff":   func() { cfg.LimbCoefficient = flagCfg.LimbCoefficient },
		"output":      func() { cfg.Output = flagCfg.Output },
		"tiff":        func() { cfg.WriteTIFF = flagCfg.WriteTIFF },
		"hdr":         func() { cfg.WriteHDR = flagCfg.WriteHDR },
		"workers":     func() { cfg.Workers = flagCfg.Workers },
		"verbose":     func() { cfg.Verbosity = flagCfg.Verbosity },
	}
	cmd.Flags().Visit(func(f *pflag.Flag) {
		if apply, ok := visit[f.Name]; ok {
			apply()
		}
	})
	return nil
}
