package models

// ValidationOutcome says whether an answer is grounded in its context.
// Reason is always populated.
type ValidationOutcome struct {
	IsValid bool   `json:"is_valid"`
	Reason  string `json:"reason"`
}

// AnswerEnvelope is the complete response for one question.
type AnswerEnvelope struct {
	Answer     string            `json:"answer"`
	Sources    []string          `json:"sources"`
	Validation ValidationOutcome `json:"validation"`
	Confidence float64           `json:"confidence"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// IndexStatsResponse is returned by GET /api/v1/stats.
type IndexStatsResponse struct {
	Backend    string `json:"backend"`
	Collection string `json:"collection,omitempty"`
	Passages   int    `json:"passages"`
}
