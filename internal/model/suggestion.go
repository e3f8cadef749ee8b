package model

import "time"

// SuggestionStatus is the review state of a submitted biography
type SuggestionStatus string

const (
	SuggestionPending  SuggestionStatus = "pending"
	SuggestionAccepted SuggestionStatus = "accepted"
	SuggestionRejected SuggestionStatus = "rejected"
)

// Suggestion is a generated biography awaiting human review
type Suggestion struct {
	ID          string           `json:"id"`
	RequestID   string           `json:"request_id,omitempty"`
	PersonID    string           `json:"person_id"`
	ScopeID     string           `json:"scope_id"`
	Narrative   string           `json:"narrative"`
	WordCount   int              `json:"word_count"`
	Confidence  float64          `json:"confidence"`
	SourcesUsed []string         `json:"sources_used"`
	Status      SuggestionStatus `json:"status"`
	CreatedAt   time.Time        `json:"created_at"`
}
