package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"path/filepath"

	"github.com/giobyte8/gallerist/internal/config"
)

type runMode int

const (
	modeBuild runMode = iota
	modeWatch
	modeServe
	modeVersion
)

type cliOptions struct {
	cfg  config.Config
	mode runMode
}

var errUsage = errors.New("usage error")

func usage(fs *flag.FlagSet) func() {
	return func() {
		out := fs.Output()
		fmt.Fprintf(out, `Usage:
  gallerist [flags] INPUT_DIR OUTPUT_DIR
  gallerist -watch [flags] INPUT_DIR OUTPUT_DIR
  gallerist -serve [flags]

Flags:
`)
		fs.PrintDefaults()
	}
}

// parseArgs layers the configuration: defaults, the -config YAML file,
// environment variables, then flags given explicitly on the command line.
func parseArgs(
	args []string,
	lookupEnv func(string) (string, bool),
	output io.Writer,
) (cliOptions, error) {
	defaults := config.Default()
	fs := flag.NewFlagSet("gallerist", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.Usage = usage(fs)

	var flagCfg config.Config
	var configPath string
	var watch, serve, showVersion bool

	fs.StringVar(&flagCfg.Title, "title", defaults.Title, "gallery title, also names the archive")
	fs.IntVar(&flagCfg.ThumbHeight, "thumb-height", defaults.ThumbHeight, "thumbnail height in pixels")
	fs.IntVar(&flagCfg.MaxSize, "max-size", defaults.MaxSize, "longest side of full size images, 0 keeps originals")
	fs.BoolVar(&flagCfg.Panorama, "panorama", false, "keep panoramas at full resolution")
	fs.BoolVar(&flagCfg.NoArchive, "no-archive", false, "do not create the zip archive")
	fs.BoolVar(&flagCfg.SkipProcessing, "skip-processing", false, "only regenerate the index page, an existing archive is kept as is")
	fs.BoolVar(&flagCfg.NoThumbnails, "no-thumbnails", false, "do not generate thumbnails")
	fs.IntVar(&flagCfg.Workers, "workers", defaults.Workers, "number of images processed in parallel")
	fs.StringVar(&configPath, "config", "", "YAML configuration file")
	fs.BoolVar(&watch, "watch", false, "rebuild the gallery when input images change")
	fs.BoolVar(&serve, "serve", false, "consume gallery build requests from AMQP")
	fs.BoolVar(&showVersion, "version", false, "print version and exit")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return cliOptions{}, err
		}
		return cliOptions{}, fmt.Errorf("%w: %v", errUsage, err)
	}

	if showVersion {
		return cliOptions{mode: modeVersion}, nil
	}
	if watch && serve {
		return cliOptions{}, fmt.Errorf("%w: -watch and -serve are exclusive", errUsage)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return cliOptions{}, err
	}
	if err := cfg.ApplyEnv(lookupEnv); err != nil {
		return cliOptions{}, err
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "title":
			cfg.Title = flagCfg.Title
		case "thumb-height":
			cfg.ThumbHeight = flagCfg.ThumbHeight
		case "max-size":
			cfg.MaxSize = flagCfg.MaxSize
		case "panorama":
			cfg.Panorama = flagCfg.Panorama
		case "no-archive":
			cfg.NoArchive = flagCfg.NoArchive
		case "skip-processing":
			cfg.SkipProcessing = flagCfg.SkipProcessing
		case "no-thumbnails":
			cfg.NoThumbnails = flagCfg.NoThumbnails
		case "workers":
			cfg.Workers = flagCfg.Workers
		}
	})

	opts := cliOptions{cfg: cfg, mode: modeBuild}
	switch {
	case serve:
		opts.mode = modeServe
		if fs.NArg() != 0 {
			return cliOptions{}, fmt.Errorf("%w: -serve takes no directories", errUsage)
		}
	case watch:
		opts.mode = modeWatch
	}

	if opts.mode != modeServe {
		switch fs.NArg() {
		case 2:
			opts.cfg.InputDir = fs.Arg(0)
			opts.cfg.OutputDir = fs.Arg(1)
		case 0:
			// Directories may come from the config file or environment
		default:
			return cliOptions{}, fmt.Errorf("%w: expected INPUT_DIR and OUTPUT_DIR", errUsage)
		}

		if opts.cfg.InputDir == "" || opts.cfg.OutputDir == "" {
			return cliOptions{}, fmt.Errorf("%w: expected INPUT_DIR and OUTPUT_DIR", errUsage)
		}
		if err := checkDistinctDirs(opts.cfg.InputDir, opts.cfg.OutputDir); err != nil {
			return cliOptions{}, err
		}
	}

	if err := opts.cfg.Validate(); err != nil {
		return cliOptions{}, err
	}
	if opts.mode == modeServe {
		if err := opts.cfg.ValidateAMQP(); err != nil {
			return cliOptions{}, err
		}
	}

	return opts, nil
}

// checkDistinctDirs refuses to write a gallery into its own input
// directory: outputs would replace originals and be picked up as inputs
// by the next build.
func checkDistinctDirs(inputDir, outputDir string) error {
	in, err := filepath.Abs(inputDir)
	if err != nil {
		return err
	}
	out, err := filepath.Abs(outputDir)
	if err != nil {
		return err
	}
	if in == out {
		return fmt.Errorf("%w: input and output directories must differ", config.ErrInvalid)
	}
	return nil
}

// failureMessage is the log message for a run of mode that ends in error.
func failureMessage(mode runMode) string {
	switch mode {
	case modeServe:
		return "Build request consumer failed"
	case modeWatch:
		return "Gallery watch failed"
	default:
		return "Gallery build failed"
	}
}
