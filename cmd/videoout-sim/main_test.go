package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var output bytes.Buffer
	err := run(ctx, []string{
		`--outputs`, `2`,
		`--frames`, `5`,
		`--refresh-rate`, `500`,
		`--log-level`, `info`,
	}, &output)
	require.NoError(t, err)

	s := output.String()
	assert.Contains(t, s, `simulation finished`)
	assert.Contains(t, s, `producer finished`)
	assert.Contains(t, s, `"flips":"10"`)
}

// summary returns the numeric fields of the "simulation finished" line.
func summary(t *testing.T, output string) map[string]float64 {
	t.Helper()
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		var fields map[string]any
		if json.Unmarshal(scanner.Bytes(), &fields) != nil || fields[`msg`] != `simulation finished` {
			continue
		}
		values := make(map[string]float64)
		for k, v := range fields {
			switch v := v.(type) {
			case float64:
				values[k] = v
			case string:
				if f, err := strconv.ParseFloat(v, 64); err == nil {
					values[k] = f
				}
			}
		}
		return values
	}
	require.FailNow(t, `no summary`, output)
	return nil
}

func TestRun_flipRate(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var output bytes.Buffer
	err := run(ctx, []string{
		`--outputs`, `1`,
		`--frames`, `6`,
		`--refresh-rate`, `500`,
		`--flip-rate`, `1`,
	}, &output)
	require.NoError(t, err)

	s := summary(t, output.String())
	assert.Equal(t, 6.0, s[`flips`])
	assert.Equal(t, 250.0, s[`flip_rate_hz`])
	// one flip every second vblank
	assert.GreaterOrEqual(t, s[`vblanks`], 2*s[`flips`])
}
