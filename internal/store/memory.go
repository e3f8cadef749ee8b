package store

import (
	"context"
	"sync"

	"github.com/ppiankov/kinstory/internal/model"
)

// MemoryStore is an in-memory Graph backed by a Fixture
type MemoryStore struct {
	mu sync.RWMutex

	people   map[string]model.Person
	parents  map[string][]string // child -> parents
	children map[string][]string // parent -> children
	spouses  map[string][]string

	// Events a person participates in but does not own
	joined map[string][]model.Event

	suggestions []model.Suggestion
}

// NewMemoryStore indexes a fixture
func NewMemoryStore(f *Fixture) *MemoryStore {
	s := &MemoryStore{
		people:   make(map[string]model.Person),
		parents:  make(map[string][]string),
		children: make(map[string][]string),
		spouses:  make(map[string][]string),
		joined:   make(map[string][]model.Event),
	}
	if f == nil {
		return s
	}

	for _, p := range f.People {
		s.people[p.ID] = p
	}
	for _, p := range f.People {
		for _, e := range p.Events {
			for _, pid := range e.Participants {
				if pid != p.ID {
					s.joined[pid] = append(s.joined[pid], e)
				}
			}
		}
	}
	for _, r := range f.Relationships {
		switch r.Kind {
		case KindParent:
			s.parents[r.To] = appendUnique(s.parents[r.To], r.From)
			s.children[r.From] = appendUnique(s.children[r.From], r.To)
		case KindSpouse:
			s.spouses[r.From] = appendUnique(s.spouses[r.From], r.To)
			s.spouses[r.To] = appendUnique(s.spouses[r.To], r.From)
		}
	}
	return s
}

// GetPerson returns a person with owned and joined events
func (s *MemoryStore) GetPerson(ctx context.Context, personID string) (*model.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.people[personID]
	if !ok {
		return nil, ErrPersonNotFound
	}
	out := s.hydrate(p)
	return &out, nil
}

func (s *MemoryStore) FindParents(ctx context.Context, scopeID, personID string) ([]model.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(scopeID, s.parents[personID], nil), nil
}

func (s *MemoryStore) FindChildren(ctx context.Context, scopeID, personID string) ([]model.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(scopeID, s.children[personID], nil), nil
}

func (s *MemoryStore) FindSiblings(ctx context.Context, scopeID string, parentIDs []string, excludeID string) ([]model.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []string
	for _, parent := range parentIDs {
		ids = append(ids, s.children[parent]...)
	}
	return s.collect(scopeID, ids, map[string]bool{excludeID: true}), nil
}

func (s *MemoryStore) FindSpouses(ctx context.Context, scopeID, personID string) ([]model.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(scopeID, s.spouses[personID], nil), nil
}

func (s *MemoryStore) FindCoparents(ctx context.Context, scopeID string, childIDs []string, excludeID string) ([]model.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []string
	for _, child := range childIDs {
		ids = append(ids, s.parents[child]...)
	}
	return s.collect(scopeID, ids, map[string]bool{excludeID: true}), nil
}

// SourceIDs returns the live citable ids for personID
func (s *MemoryStore) SourceIDs(ctx context.Context, personID, scopeID string) (model.SourceIDSet, error) {
	return collectSourceIDs(ctx, s, personID, scopeID)
}

// SubmitSuggestion records a pending suggestion
func (s *MemoryStore) SubmitSuggestion(ctx context.Context, sg *model.Suggestion) error {
	if err := prepareSuggestion(sg); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.suggestions = append(s.suggestions, *sg)
	return nil
}

// Suggestions returns the stored suggestions for personID
func (s *MemoryStore) Suggestions(personID string) []model.Suggestion {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Suggestion
	for _, sg := range s.suggestions {
		if sg.PersonID == personID {
			out = append(out, sg)
		}
	}
	return out
}

// Close is a no-op
func (s *MemoryStore) Close(ctx context.Context) error {
	return nil
}

// collect returns hydrated live people for ids in order, without duplicates
func (s *MemoryStore) collect(scopeID string, ids []string, exclude map[string]bool) []model.Person {
	out := make([]model.Person, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] || exclude[id] {
			continue
		}
		seen[id] = true

		p, ok := s.people[id]
		if !ok || !live(p, scopeID) {
			continue
		}
		out = append(out, s.hydrate(p))
	}
	return out
}

// hydrate copies p and appends events it participates in
func (s *MemoryStore) hydrate(p model.Person) model.Person {
	out := p
	out.Notes = append([]model.Note(nil), p.Notes...)
	out.Events = append([]model.Event(nil), p.Events...)

	owned := make(map[string]bool, len(p.Events))
	for _, e := range p.Events {
		owned[e.ID] = true
	}
	for _, e := range s.joined[p.ID] {
		if !owned[e.ID] {
			owned[e.ID] = true
			out.Events = append(out.Events, e)
		}
	}
	return out
}

func appendUnique(list []string, id string) []string {
	for _, existing := range list {
		if existing == id {
			return list
		}
	}
	return append(list, id)
}
