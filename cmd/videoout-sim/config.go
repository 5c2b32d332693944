package main

import (
	"io"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/cockroachdb/errors"
	"github.com/joeycumines/go-videoout/videoout"
	"github.com/joeycumines/logiface"
	"github.com/spf13/pflag"
)

type (
	config struct {
		VideoOut videoout.Config `toml:"videoout"`
		Sim      simConfig       `toml:"sim"`
	}

	simConfig struct {
		// LogLevel is one of the logiface level names, e.g. "info".
		LogLevel string `toml:"log_level"`

		// Outputs is the number of outputs to open, each with one producer.
		Outputs int `toml:"outputs"`

		// Buffers is the number of buffers registered per output.
		Buffers int `toml:"buffers"`

		// Frames is the number of flips submitted by each producer.
		Frames int `toml:"frames"`

		// Duration stops the simulation early, if positive.
		Duration time.Duration `toml:"duration"`

		// PresentDelay simulates presentation latency.
		PresentDelay time.Duration `toml:"present_delay"`

		// FlipRate is set on every output, see videoout.FlipRate.
		FlipRate videoout.FlipRate `toml:"flip_rate"`
	}
)

func defaultConfig() config {
	return config{
		Sim: simConfig{
			LogLevel: logiface.LevelInformational.String(),
			Outputs:  1,
			Buffers:  2,
			Frames:   120,
		},
	}
}

// loadConfig parses args, applying (in order) defaults, the TOML config
// file, if any, then any flags that were explicitly set.
func loadConfig(args []string, output io.Writer) (*config, error) {
	cfg := defaultConfig()

	flags := pflag.NewFlagSet(`videoout-sim`, pflag.ContinueOnError)
	flags.SetOutput(output)

	var (
		path  = flags.StringP(`config`, `c`, ``, `path to a TOML config file`)
		flagV config
	)
	flags.StringVar(&flagV.Sim.LogLevel, `log-level`, cfg.Sim.LogLevel, `log level (trace, debug, info, notice, warning, err)`)
	flags.IntVar(&flagV.Sim.Outputs, `outputs`, cfg.Sim.Outputs, `number of video outputs`)
	flags.IntVar(&flagV.Sim.Buffers, `buffers`, cfg.Sim.Buffers, `buffers per output`)
	flags.IntVarP(&flagV.Sim.Frames, `frames`, `n`, cfg.Sim.Frames, `flips per output`)
	flags.DurationVarP(&flagV.Sim.Duration, `duration`, `d`, cfg.Sim.Duration, `maximum run time, 0 for unlimited`)
	flags.DurationVar(&flagV.Sim.PresentDelay, `present-delay`, cfg.Sim.PresentDelay, `simulated presentation latency`)
	flags.Int32Var((*int32)(&flagV.Sim.FlipRate), `flip-rate`, int32(cfg.Sim.FlipRate), `flip rate (0: 60Hz, 1: 30Hz, 2: 20Hz)`)
	flags.Float64Var(&flagV.VideoOut.RefreshRate, `refresh-rate`, 0, `display refresh rate, in Hz`)
	flags.BoolVar(&flagV.VideoOut.Neo, `neo`, false, `use the enhanced hardware tiling layout`)

	if err := flags.Parse(args); err != nil {
		return nil, err
	}
	if flags.NArg() != 0 {
		return nil, errors.Errorf(`unexpected arguments: %q`, flags.Args())
	}

	if *path != `` {
		if _, err := toml.DecodeFile(*path, &cfg); err != nil {
			return nil, errors.Wrapf(err, `decode config %s`, *path)
		}
	}

	flags.Visit(func(f *pflag.Flag) {
		switch f.Name {
		case `log-level`:
			cfg.Sim.LogLevel = flagV.Sim.LogLevel
		case `outputs`:
			cfg.Sim.Outputs = flagV.Sim.Outputs
		case `buffers`:
			cfg.Sim.Buffers = flagV.Sim.Buffers
		case `frames`:
			cfg.Sim.Frames = flagV.Sim.Frames
		case `duration`:
			cfg.Sim.Duration = flagV.Sim.Duration
		case `present-delay`:
			cfg.Sim.PresentDelay = flagV.Sim.PresentDelay
		case `flip-rate`:
			cfg.Sim.FlipRate = flagV.Sim.FlipRate
		case `refresh-rate`:
			cfg.VideoOut.RefreshRate = flagV.VideoOut.RefreshRate
		case `neo`:
			cfg.VideoOut.Neo = flagV.VideoOut.Neo
		}
	})

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (x *config) validate() error {
	switch {
	case x.Sim.Outputs < 1:
		return errors.Errorf(`outputs must be positive: %d`, x.Sim.Outputs)
	case x.VideoOut.MaxOutputs != 0 && x.Sim.Outputs > x.VideoOut.MaxOutputs:
		return errors.Errorf(`outputs %d exceeds max outputs %d`, x.Sim.Outputs, x.VideoOut.MaxOutputs)
	case x.Sim.Buffers < 1 || x.Sim.Buffers > videoout.MaxBuffers-1:
		return errors.Errorf(`buffers must be in [1, %d]: %d`, videoout.MaxBuffers-1, x.Sim.Buffers)
	case x.Sim.Frames < 0:
		return errors.Errorf(`frames must not be negative: %d`, x.Sim.Frames)
	case x.Sim.PresentDelay < 0:
		return errors.Errorf(`present delay must not be negative: %s`, x.Sim.PresentDelay)
	case x.Sim.FlipRate < videoout.FlipRate60Hz || x.Sim.FlipRate > videoout.FlipRate20Hz:
		return errors.Errorf(`flip rate must be in [0, 2]: %d`, x.Sim.FlipRate)
	}
	if _, err := parseLevel(x.Sim.LogLevel); err != nil {
		return err
	}
	return nil
}

func parseLevel(s string) (logiface.Level, error) {
	for level := logiface.LevelDisabled; level <= logiface.LevelTrace; level++ {
		if level.String() == s {
			return level, nil
		}
	}
	return 0, errors.Errorf(`invalid log level: %q`, s)
}
