package model

import "time"

// Person is a node in the family-history graph
type Person struct {
	ID         string     `json:"id" yaml:"id"`
	ScopeID    string     `json:"scope_id" yaml:"scope_id"` // Isolation boundary (tree/tenant)
	Name       string     `json:"name" yaml:"name"`
	Gender     string     `json:"gender,omitempty" yaml:"gender,omitempty"`
	BirthDate  string     `json:"birth_date,omitempty" yaml:"birth_date,omitempty"` // Fuzzy, e.g. "abt 1850"
	DeathDate  string     `json:"death_date,omitempty" yaml:"death_date,omitempty"`
	BirthPlace string     `json:"birth_place,omitempty" yaml:"birth_place,omitempty"`
	DeathPlace string     `json:"death_place,omitempty" yaml:"death_place,omitempty"`
	Occupation string     `json:"occupation,omitempty" yaml:"occupation,omitempty"`
	Biography  string     `json:"biography,omitempty" yaml:"biography,omitempty"`
	DeletedAt  *time.Time `json:"deleted_at,omitempty" yaml:"deleted_at,omitempty"`

	Notes  []Note  `json:"notes,omitempty" yaml:"notes,omitempty"`
	Events []Event `json:"events,omitempty" yaml:"events,omitempty"`
}

// IsDeleted reports whether the person was soft-deleted
func (p Person) IsDeleted() bool {
	return p.DeletedAt != nil
}

// Note is a free-form research note attached to a person
type Note struct {
	ID        string     `json:"id" yaml:"id"`
	PersonID  string     `json:"person_id,omitempty" yaml:"person_id,omitempty"`
	Title     string     `json:"title,omitempty" yaml:"title,omitempty"`
	Content   string     `json:"content" yaml:"content"`
	CreatedAt time.Time  `json:"created_at" yaml:"created_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty" yaml:"deleted_at,omitempty"`
}

// Event is a life event; a person may own it or appear as a participant
type Event struct {
	ID           string     `json:"id" yaml:"id"`
	Title        string     `json:"title" yaml:"title"`
	Description  string     `json:"description,omitempty" yaml:"description,omitempty"`
	Date         string     `json:"date,omitempty" yaml:"date,omitempty"`
	Place        string     `json:"place,omitempty" yaml:"place,omitempty"`
	Participants []string   `json:"participants,omitempty" yaml:"participants,omitempty"`
	DeletedAt    *time.Time `json:"deleted_at,omitempty" yaml:"deleted_at,omitempty"`
}
