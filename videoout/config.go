package videoout

import (
	"github.com/joeycumines/go-videoout/internal/handle"
)

const (
	defaultMaxOutputs  = 2
	defaultWidth       = 1920
	defaultHeight      = 1080
	defaultRefreshRate = 59.94
)

// Config models optional configuration, for New.
type Config struct {
	// MaxOutputs is the maximum number of simultaneously open outputs.
	// **Defaults to 2, if 0, or Config is nil.**
	MaxOutputs int `toml:"max_outputs"`

	// Width is the horizontal resolution reported for each output.
	// **Defaults to 1920, if 0, or Config is nil.**
	Width uint32 `toml:"width"`

	// Height is the vertical resolution reported for each output.
	// **Defaults to 1080, if 0, or Config is nil.**
	Height uint32 `toml:"height"`

	// RefreshRate is the display refresh rate, in Hz.
	// **Defaults to 59.94, if 0, or Config is nil.**
	RefreshRate float64 `toml:"refresh_rate"`

	// Neo selects the tiling layout of the enhanced hardware revision.
	Neo bool `toml:"neo"`
}

// resolve returns a copy of the config, with defaults applied, or an error
// if any value is out of range.
func (x *Config) resolve() (Config, error) {
	var c Config
	if x != nil {
		c = *x
	}
	if c.MaxOutputs == 0 {
		c.MaxOutputs = defaultMaxOutputs
	}
	if c.Width == 0 {
		c.Width = defaultWidth
	}
	if c.Height == 0 {
		c.Height = defaultHeight
	}
	if c.RefreshRate == 0 {
		c.RefreshRate = defaultRefreshRate
	}
	if c.MaxOutputs < 0 || c.MaxOutputs > handle.MaxCapacity {
		return Config{}, invalidValuef(`max outputs %d`, c.MaxOutputs)
	}
	if c.RefreshRate < 0 {
		return Config{}, invalidValuef(`refresh rate %v`, c.RefreshRate)
	}
	return c, nil
}

func (x *Config) resolution() ResolutionStatus {
	return ResolutionStatus{
		Width:       x.Width,
		Height:      x.Height,
		RefreshRate: x.RefreshRate,
		FlipRate:    FlipRate60Hz,
	}
}
