package models

// QualityReview holds the reviewer persona's assessment of a code draft.
type QualityReview struct {
	// Score is the overall quality rating from 1 (unusable) to 10 (ship it).
	Score int `json:"score"`
	// Issues lists the concrete problems the reviewer found.
	Issues []string `json:"issues,omitempty"`
}

// Valid returns true if the score is in the 1-10 range.
func (r QualityReview) Valid() bool {
	return r.Score >= 1 && r.Score <= 10
}

// Passing returns true if the score meets the given threshold.
func (r QualityReview) Passing(threshold int) bool {
	return r.Valid() && r.Score >= threshold
}
