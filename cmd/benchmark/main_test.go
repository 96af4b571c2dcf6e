package main

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPercentileStats(t *testing.T) {
	values := make([]float64, 100)
	for i := range values {
		values[i] = float64(i + 1)
	}

	out := percentileStats(values)
	// 整数秩处半值取偶：0.5*100+0.5=50.5取50，下标49
	assert.Equal(t, 50.0, out["p50"])
	assert.Equal(t, 90.0, out["p90"])
	assert.Equal(t, 96.0, out["p95"])
	assert.Equal(t, 100.0, out["p99"])
}

func TestPercentileStatsSmallSet(t *testing.T) {
	out := percentileStats([]float64{3, 1, 4, 2})
	assert.Equal(t, 2.0, out["p50"])
	assert.Equal(t, 4.0, out["p99"])
}

func TestPercentileStatsEmpty(t *testing.T) {
	out := percentileStats(nil)
	assert.True(t, math.IsNaN(out["p50"]))
}
