package services

import "math"

const (
	chunkFactorFloor = 0.6
	chunkFactorDecay = 0.5
)

// ConfidenceScore combines retrieval similarities, the number of context
// chunks and the validation verdict into a value in [0, 1].
//
// Similarities are cosine scores; each is clamped to [0, 1] before
// averaging. The mean is scaled by a chunk factor that starts at the floor
// and approaches 1 with diminishing returns as chunks are added. Invalid
// answers always score 0.
func ConfidenceScore(retrievalScores []float64, numChunks int, isValid bool) float64 {
	if !isValid || numChunks <= 0 || len(retrievalScores) == 0 {
		return 0
	}

	var sum float64
	for _, s := range retrievalScores {
		sum += clamp01(s)
	}
	mean := sum / float64(len(retrievalScores))

	factor := chunkFactorFloor + (1-chunkFactorFloor)*(1-math.Pow(chunkFactorDecay, float64(numChunks)))
	return math.Round(clamp01(mean*factor)*1000) / 1000
}

func clamp01(x float64) float64 {
	switch {
	case math.IsNaN(x), x < 0:
		return 0
	case x > 1:
		return 1
	default:
		return x
	}
}
