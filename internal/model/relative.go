package model

import (
	"strings"
	"time"
)

// RelationshipType classifies how a relative is connected to the target person
type RelationshipType string

const (
	RelationParent   RelationshipType = "parent"
	RelationChild    RelationshipType = "child"
	RelationSibling  RelationshipType = "sibling"
	RelationSpouse   RelationshipType = "spouse"
	RelationCoparent RelationshipType = "coparent"
)

// RelationOrder is the fixed resolution order; earlier classes win on dedup
var RelationOrder = []RelationshipType{
	RelationParent,
	RelationChild,
	RelationSibling,
	RelationSpouse,
	RelationCoparent,
}

// Valid reports whether r is one of the five known relation classes
func (r RelationshipType) Valid() bool {
	for _, known := range RelationOrder {
		if r == known {
			return true
		}
	}
	return false
}

// RelativeInfo is a resolved relative together with the content that can be mined
type RelativeInfo struct {
	RelationshipType RelationshipType `json:"relationship_type"`
	PersonID         string           `json:"person_id"`
	PersonName       string           `json:"person_name"`
	Biography        string           `json:"biography,omitempty"`
	Notes            []NoteSource     `json:"notes,omitempty"`
	Events           []EventSource    `json:"events,omitempty"`
}

// HasContent reports whether any mining input exists for this relative
func (r RelativeInfo) HasContent() bool {
	return strings.TrimSpace(r.Biography) != "" || len(r.Notes) > 0 || len(r.Events) > 0
}

// NoteSource is a note prepared for prompting (content is never empty)
type NoteSource struct {
	NoteID    string    `json:"note_id"`
	Title     string    `json:"title,omitempty"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// EventSource is an event prepared for prompting
type EventSource struct {
	EventID      string   `json:"event_id"`
	Title        string   `json:"title"`
	Description  string   `json:"description,omitempty"`
	Date         string   `json:"date,omitempty"`
	Place        string   `json:"place,omitempty"`
	Participants []string `json:"participants,omitempty"`
}
