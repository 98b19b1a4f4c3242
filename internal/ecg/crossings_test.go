package ecg

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCountZeroCrossings(t *testing.T) {
	tests := []struct {
		name     string
		samples  []int64
		expected int
	}{
		{name: "mixed series", samples: []int64{1, 2, 3, -2, -3, 2, 2, -2, 4}, expected: 4},
		{name: "only positive", samples: []int64{1, 2, 3, 4, 5}, expected: 0},
		{name: "only negative", samples: []int64{-1, -2, -3, -4}, expected: 0},
		{name: "empty", samples: []int64{}, expected: 0},
		{name: "nil", samples: nil, expected: 0},
		{name: "single sample", samples: []int64{-7}, expected: 0},
		{name: "zero breaks the crossing", samples: []int64{1, 0, -1}, expected: 0},
		{name: "lead I", samples: []int64{1, 2, 3, -3, -2, -1, 3, 2, 1, -10}, expected: 3},
		{name: "lead II", samples: []int64{1, -1, 3, -3, 5, -5, 7, -7, 11}, expected: 8},
		{name: "all zeros", samples: []int64{0, 0, 0}, expected: 0},
		{name: "extreme values do not overflow", samples: []int64{math.MaxInt64, math.MinInt64, math.MaxInt64}, expected: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CountZeroCrossings(tt.samples))
		})
	}
}

func TestCountZeroCrossingsFloats(t *testing.T) {
	assert.Equal(t, 2, CountZeroCrossings([]float64{0.5, -0.25, 0.1}))
	assert.Equal(t, 0, CountZeroCrossings([]float64{0.5, 0, -0.25}))
}

func TestCountZeroCrossingsShortSeries(t *testing.T) {
	for _, x := range []int{-3, 0, 9} {
		assert.Zero(t, CountZeroCrossings([]int{x}))
	}
	assert.Zero(t, CountZeroCrossings([]int{}))
}
