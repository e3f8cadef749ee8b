package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ppiankov/kinstory/internal/logging"
	"github.com/ppiankov/kinstory/internal/model"
)

// ErrPersonNotFound is returned when a person id does not exist in the scope
var ErrPersonNotFound = errors.New("person not found")

// Graph is read access to the family-history graph.
//
// Find* methods return relatives with their notes and events attached
// (events include those the relative participates in). Implementations
// filter by scope and soft-deletion, but callers must not rely on it.
type Graph interface {
	GetPerson(ctx context.Context, personID string) (*model.Person, error)
	FindParents(ctx context.Context, scopeID, personID string) ([]model.Person, error)
	FindChildren(ctx context.Context, scopeID, personID string) ([]model.Person, error)
	FindSiblings(ctx context.Context, scopeID string, parentIDs []string, excludeID string) ([]model.Person, error)
	FindSpouses(ctx context.Context, scopeID, personID string) ([]model.Person, error)
	FindCoparents(ctx context.Context, scopeID string, childIDs []string, excludeID string) ([]model.Person, error)

	// SourceIDs returns the ids that are citable right now for personID:
	// live own notes, live own or participated events, and live relatives
	SourceIDs(ctx context.Context, personID, scopeID string) (model.SourceIDSet, error)
}

// SuggestionSink stores generated biographies for review
type SuggestionSink interface {
	SubmitSuggestion(ctx context.Context, s *model.Suggestion) error
}

// Store is a complete backend
type Store interface {
	Graph
	SuggestionSink
	Close(ctx context.Context) error
}

// Importer loads a fixture into a persistent backend
type Importer interface {
	Import(ctx context.Context, f *Fixture) error
}

// Open creates the backend selected by cfg.Driver
func Open(ctx context.Context, cfg model.StoreConfig, log *logging.Logger) (Store, error) {
	if log == nil {
		log = logging.Nop()
	}

	switch strings.ToLower(cfg.Driver) {
	case "", "fixture", "memory":
		if cfg.FixturePath == "" {
			log.Warn("no fixture configured, using an empty in-memory store")
			return NewMemoryStore(&Fixture{}), nil
		}
		f, err := LoadFixture(cfg.FixturePath)
		if err != nil {
			return nil, err
		}
		return NewMemoryStore(f), nil

	case "postgres", "sqlite":
		return OpenSQL(cfg, log)

	case "neo4j":
		return OpenNeo4j(ctx, cfg, log)

	default:
		return nil, fmt.Errorf("unknown store driver: %s (supported: fixture, sqlite, postgres, neo4j)", cfg.Driver)
	}
}

// prepareSuggestion fills the server-assigned fields
func prepareSuggestion(s *model.Suggestion) error {
	if s == nil || s.PersonID == "" {
		return fmt.Errorf("suggestion requires a person id")
	}
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	s.Status = model.SuggestionPending
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	return nil
}

// live reports whether p belongs to scopeID and is not deleted
func live(p model.Person, scopeID string) bool {
	return p.ScopeID == scopeID && !p.IsDeleted()
}

// collectSourceIDs builds the live citable id set from Graph primitives
func collectSourceIDs(ctx context.Context, g Graph, personID, scopeID string) (model.SourceIDSet, error) {
	ids := model.NewSourceIDSet()

	person, err := g.GetPerson(ctx, personID)
	if err != nil {
		return ids, err
	}
	if !live(*person, scopeID) {
		return ids, ErrPersonNotFound
	}

	for _, n := range person.Notes {
		if n.DeletedAt == nil && strings.TrimSpace(n.Content) != "" {
			ids.Add(model.CitationNote, n.ID)
		}
	}
	for _, e := range person.Events {
		if e.DeletedAt == nil {
			ids.Add(model.CitationEvent, e.ID)
		}
	}

	addAll := func(people []model.Person) []string {
		out := make([]string, 0, len(people))
		for _, p := range people {
			if live(p, scopeID) && p.ID != personID {
				ids.Add(model.CitationBiography, p.ID)
				out = append(out, p.ID)
			}
		}
		return out
	}

	parents, err := g.FindParents(ctx, scopeID, personID)
	if err != nil {
		return ids, err
	}
	parentIDs := addAll(parents)

	children, err := g.FindChildren(ctx, scopeID, personID)
	if err != nil {
		return ids, err
	}
	childIDs := addAll(children)

	siblings, err := g.FindSiblings(ctx, scopeID, parentIDs, personID)
	if err != nil {
		return ids, err
	}
	addAll(siblings)

	spouses, err := g.FindSpouses(ctx, scopeID, personID)
	if err != nil {
		return ids, err
	}
	addAll(spouses)

	coparents, err := g.FindCoparents(ctx, scopeID, childIDs, personID)
	if err != nil {
		return ids, err
	}
	addAll(coparents)

	return ids, nil
}
