package model

// FactSource attributes a mined fact to the kind of record it came from
type FactSource string

const (
	FactSourceBiography FactSource = "biography"
	FactSourceNote      FactSource = "note"
	FactSourceEvent     FactSource = "event"
)

// RelevantFact is one fact about the target person found in a relative's records
type RelevantFact struct {
	Fact            string     `json:"fact" validate:"required"`
	Source          FactSource `json:"source" validate:"required,oneof=biography note event"`
	SourceID        string     `json:"sourceId,omitempty"`
	RelevanceReason string     `json:"relevanceReason" validate:"required"`
}

// RelatedContext groups the facts mined from a single relative
type RelatedContext struct {
	RelationshipType RelationshipType `json:"relationshipType"`
	PersonID         string           `json:"personId"`
	PersonName       string           `json:"personName"`
	Facts            []RelevantFact   `json:"relevantFacts"`
}
