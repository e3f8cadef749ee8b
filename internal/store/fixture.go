package store

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/kinstory/internal/model"
)

// RelationKind is an edge type in a fixture
type RelationKind string

const (
	KindParent RelationKind = "parent" // From is a parent of To
	KindSpouse RelationKind = "spouse" // Symmetric
)

// Relationship is a directed (parent) or symmetric (spouse) edge
type Relationship struct {
	Kind RelationKind `yaml:"kind" json:"kind"`
	From string       `yaml:"from" json:"from"`
	To   string       `yaml:"to" json:"to"`
}

// Fixture is a portable snapshot of a family graph.
// Each person's Notes and Events are the ones it owns; Event.Participants
// links other people to an event.
type Fixture struct {
	People        []model.Person `yaml:"people"`
	Relationships []Relationship `yaml:"relationships"`
}

// LoadFixture reads a YAML fixture from disk
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	return ParseFixture(data)
}

// ParseFixture decodes a YAML fixture and checks its edges
func ParseFixture(data []byte) (*Fixture, error) {
	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture: %w", err)
	}

	known := make(map[string]bool, len(f.People))
	for _, p := range f.People {
		if p.ID == "" {
			return nil, fmt.Errorf("fixture person without id (name %q)", p.Name)
		}
		if known[p.ID] {
			return nil, fmt.Errorf("duplicate fixture person id: %s", p.ID)
		}
		known[p.ID] = true
	}
	for _, r := range f.Relationships {
		if r.Kind != KindParent && r.Kind != KindSpouse {
			return nil, fmt.Errorf("unknown relationship kind %q", r.Kind)
		}
		if !known[r.From] || !known[r.To] {
			return nil, fmt.Errorf("relationship %s %s->%s references unknown person", r.Kind, r.From, r.To)
		}
	}
	return &f, nil
}
