package videoout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_resolve(t *testing.T) {
	c, err := (*Config)(nil).resolve()
	require.NoError(t, err)
	assert.Equal(t, Config{
		MaxOutputs:  2,
		Width:       1920,
		Height:      1080,
		RefreshRate: 59.94,
	}, c)

	c, err = (&Config{MaxOutputs: 4, Width: 1280, Height: 720, RefreshRate: 60, Neo: true}).resolve()
	require.NoError(t, err)
	assert.Equal(t, Config{MaxOutputs: 4, Width: 1280, Height: 720, RefreshRate: 60, Neo: true}, c)

	_, err = (&Config{MaxOutputs: -1}).resolve()
	assert.ErrorIs(t, err, ErrInvalidValue)
	_, err = (&Config{MaxOutputs: 1 << 20}).resolve()
	assert.ErrorIs(t, err, ErrInvalidValue)
	_, err = (&Config{RefreshRate: -1}).resolve()
	assert.ErrorIs(t, err, ErrInvalidValue)
}

func TestNew_config(t *testing.T) {
	x, err := New(&Config{MaxOutputs: 1, Width: 1280, Height: 720}, testCollaborators(nil))
	require.NoError(t, err)
	defer x.Shutdown()

	assert.Equal(t, 1, x.Config().MaxOutputs)
	h, err := x.Open(0, BusTypeMain, 0)
	require.NoError(t, err)
	_, err = x.Open(0, BusTypeMain, 0)
	assert.ErrorIs(t, err, ErrResourceBusy)

	res, err := x.GetResolutionStatus(h)
	require.NoError(t, err)
	assert.Equal(t, uint32(1280), res.Width)
	assert.Equal(t, uint32(720), res.Height)
}
