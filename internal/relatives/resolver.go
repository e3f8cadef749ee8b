package relatives

import (
	"context"
	"fmt"
	"strings"

	"github.com/ppiankov/kinstory/internal/logging"
	"github.com/ppiankov/kinstory/internal/model"
	"github.com/ppiankov/kinstory/internal/store"
	"github.com/ppiankov/kinstory/internal/util"
)

// Resolver gathers a person's immediate relatives from the family graph
type Resolver struct {
	graph store.Graph
	log   *logging.Logger
}

// NewResolver creates a resolver over g
func NewResolver(g store.Graph, log *logging.Logger) *Resolver {
	if log == nil {
		log = logging.Nop()
	}
	return &Resolver{graph: g, log: log.With("component", "resolver")}
}

// Resolve returns the relatives of personID within scopeID in the order
// parents, children, siblings, spouses, co-parents. A person reachable
// through several relations is reported once, under the first one.
// The result is never nil.
func (r *Resolver) Resolve(ctx context.Context, personID, scopeID string) ([]model.RelativeInfo, error) {
	acc := newAccumulator(personID, scopeID)

	parents, err := r.graph.FindParents(ctx, scopeID, personID)
	if err != nil {
		return nil, fmt.Errorf("find parents of %s: %w", personID, err)
	}
	parentIDs := acc.add(model.RelationParent, parents)

	children, err := r.graph.FindChildren(ctx, scopeID, personID)
	if err != nil {
		return nil, fmt.Errorf("find children of %s: %w", personID, err)
	}
	childIDs := acc.add(model.RelationChild, children)

	siblings, err := r.graph.FindSiblings(ctx, scopeID, parentIDs, personID)
	if err != nil {
		return nil, fmt.Errorf("find siblings of %s: %w", personID, err)
	}
	acc.add(model.RelationSibling, siblings)

	spouses, err := r.graph.FindSpouses(ctx, scopeID, personID)
	if err != nil {
		return nil, fmt.Errorf("find spouses of %s: %w", personID, err)
	}
	acc.add(model.RelationSpouse, spouses)

	coparents, err := r.graph.FindCoparents(ctx, scopeID, childIDs, personID)
	if err != nil {
		return nil, fmt.Errorf("find co-parents of %s: %w", personID, err)
	}
	acc.add(model.RelationCoparent, coparents)

	r.log.Debug("relatives resolved",
		"person", personID,
		"parents", acc.counts[model.RelationParent],
		"children", acc.counts[model.RelationChild],
		"siblings", acc.counts[model.RelationSibling],
		"spouses", acc.counts[model.RelationSpouse],
		"coparents", acc.counts[model.RelationCoparent],
	)
	return acc.out, nil
}

type accumulator struct {
	self    string
	scopeID string
	seen    map[string]bool
	counts  map[model.RelationshipType]int
	out     []model.RelativeInfo
}

func newAccumulator(self, scopeID string) *accumulator {
	return &accumulator{
		self:    self,
		scopeID: scopeID,
		seen:    map[string]bool{self: true},
		counts:  make(map[model.RelationshipType]int),
		out:     []model.RelativeInfo{},
	}
}

// add keeps live in-scope candidates and returns the ids that passed the
// filters, including ones already claimed by an earlier relation
func (a *accumulator) add(rel model.RelationshipType, people []model.Person) []string {
	passed := make([]string, 0, len(people))
	for _, p := range people {
		if p.ID == "" || p.ID == a.self || p.ScopeID != a.scopeID || p.IsDeleted() {
			continue
		}
		passed = append(passed, p.ID)

		if a.seen[p.ID] {
			continue
		}
		a.seen[p.ID] = true
		a.counts[rel]++
		a.out = append(a.out, toRelative(rel, p))
	}
	return passed
}

func toRelative(rel model.RelationshipType, p model.Person) model.RelativeInfo {
	info := model.RelativeInfo{
		RelationshipType: rel,
		PersonID:         p.ID,
		PersonName:       p.Name,
		Biography:        util.PlainText(p.Biography),
	}

	for _, n := range p.Notes {
		if n.DeletedAt != nil {
			continue
		}
		content := util.PlainText(n.Content)
		if content == "" {
			continue
		}
		info.Notes = append(info.Notes, model.NoteSource{
			NoteID:    n.ID,
			Title:     strings.TrimSpace(n.Title),
			Content:   content,
			CreatedAt: n.CreatedAt,
		})
	}

	for _, e := range p.Events {
		if e.DeletedAt != nil {
			continue
		}
		info.Events = append(info.Events, model.EventSource{
			EventID:      e.ID,
			Title:        strings.TrimSpace(e.Title),
			Description:  util.PlainText(e.Description),
			Date:         e.Date,
			Place:        e.Place,
			Participants: e.Participants,
		})
	}
	return info
}
