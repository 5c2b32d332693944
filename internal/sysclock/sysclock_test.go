package sysclock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClock_monotonic(t *testing.T) {
	c := New()
	tsc0 := c.ReadTsc()
	pt0 := c.ProcessTime()
	time.Sleep(5 * time.Millisecond)
	tsc1 := c.ReadTsc()
	pt1 := c.ProcessTime()

	assert.Greater(t, tsc1, tsc0)
	assert.GreaterOrEqual(t, tsc1-tsc0, uint64(5*time.Millisecond))
	assert.GreaterOrEqual(t, pt1-pt0, uint64(5000))
	assert.Equal(t, uint64(TscFrequency), c.TscFrequency())
}

func TestClock_processTimeStartsNearZero(t *testing.T) {
	assert.Less(t, New().ProcessTime(), uint64(time.Second/time.Microsecond))
}
