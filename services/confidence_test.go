package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfidenceScore(t *testing.T) {
	tests := []struct {
		name      string
		scores    []float64
		numChunks int
		isValid   bool
		want      float64
	}{
		{"invalid is zero", []float64{0.99, 0.98}, 2, false, 0},
		{"no chunks", []float64{0.9}, 0, true, 0},
		{"no scores", nil, 3, true, 0},
		{"one chunk", []float64{0.8}, 1, true, 0.64},
		{"two chunks", []float64{0.8, 0.6}, 2, true, 0.63},
		{"negative similarity clamps", []float64{-0.5, 1.0}, 2, true, 0.45},
		{"above one clamps", []float64{1.7}, 1, true, 0.8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, ConfidenceScore(tt.scores, tt.numChunks, tt.isValid), 1e-9)
		})
	}
}

func TestConfidenceScore_ZeroWheneverInvalid(t *testing.T) {
	for _, scores := range [][]float64{{1, 1, 1}, {0.2}, {-1}, {0.5, 0.9, 0.1, 0.7}} {
		for n := 0; n < 6; n++ {
			assert.Zero(t, ConfidenceScore(scores, n, false))
		}
	}
}

func TestConfidenceScore_MonotoneInSimilarity(t *testing.T) {
	for n := 1; n <= 5; n++ {
		prev := -1.0
		for s := -0.2; s <= 1.2; s += 0.05 {
			scores := make([]float64, n)
			for i := range scores {
				scores[i] = s
			}
			got := ConfidenceScore(scores, n, true)
			assert.GreaterOrEqual(t, got, prev, "n=%d s=%.2f", n, s)
			assert.GreaterOrEqual(t, got, 0.0)
			assert.LessOrEqual(t, got, 1.0)
			prev = got
		}
	}
}

func TestConfidenceScore_MoreChunksNeverLowers(t *testing.T) {
	prev := 0.0
	for n := 1; n <= 8; n++ {
		got := ConfidenceScore([]float64{0.7}, n, true)
		assert.GreaterOrEqual(t, got, prev)
		prev = got
	}
}
