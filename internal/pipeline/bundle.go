package pipeline

import (
	"time"

	"github.com/ppiankov/kinstory/internal/biography"
	"github.com/ppiankov/kinstory/internal/citation"
	"github.com/ppiankov/kinstory/internal/model"
	"github.com/ppiankov/kinstory/internal/util"
)

// Bundle is everything produced for one generation request
type Bundle struct {
	RequestID    string                 `json:"request_id"`
	PersonID     string                 `json:"person_id"`
	ScopeID      string                 `json:"scope_id"`
	PersonName   string                 `json:"person_name"`
	Narrative    string                 `json:"narrative"`
	Metadata     Metadata               `json:"metadata"`
	Citations    []model.ParsedCitation `json:"citations"`
	Segments     []model.TextSegment    `json:"segments"`
	Repairs      []citation.Repair      `json:"repairs,omitempty"`
	Related      []model.RelatedContext `json:"related_context,omitempty"`
	Sources      []Source               `json:"sources"`
	SuggestionID string                 `json:"suggestion_id,omitempty"`
	GeneratedAt  time.Time              `json:"generated_at"`
}

// Metadata is the deterministic description of the narrative
type Metadata struct {
	WordCount   int            `json:"word_count"`
	Confidence  float64        `json:"confidence"`
	SourcesUsed []string       `json:"sources_used"`
	Signals     []model.Signal `json:"signals,omitempty"`
	Provider    string         `json:"provider,omitempty"`
	Model       string         `json:"model,omitempty"`
	TokensUsed  int            `json:"tokens_used,omitempty"`
}

// Source is a record a citation can point at
type Source struct {
	Type         model.CitationType `json:"type"`
	ID           string             `json:"id"`
	Title        string             `json:"title,omitempty"`
	Content      string             `json:"content,omitempty"`
	Links        []util.Link        `json:"links,omitempty"` // Note only
	Date         string             `json:"date,omitempty"`
	Place        string             `json:"place,omitempty"`
	Relationship string             `json:"relationship,omitempty"` // Biography only
	Facts        []string           `json:"facts,omitempty"`        // Biography only
}

// Lookup returns the record behind a citation
func (b *Bundle) Lookup(t model.CitationType, id string) (Source, bool) {
	for _, s := range b.Sources {
		if s.Type == t && s.ID == id {
			return s, true
		}
	}
	return Source{}, false
}

// buildSources indexes the admissible records in citation order: notes,
// events, then relatives
func buildSources(m biography.SourceMaterial, related []model.RelatedContext, ids model.SourceIDSet) []Source {
	sources := make([]Source, 0)

	for _, n := range m.Notes {
		if !ids.Contains(model.CitationNote, n.ID) {
			continue
		}
		sources = append(sources, Source{
			Type:    model.CitationNote,
			ID:      n.ID,
			Title:   biography.NoteLabel(n),
			Content: util.PlainText(n.Content),
			Links:   util.ExtractLinks(n.Content),
			Date:    formatDate(n.CreatedAt),
		})
	}

	for _, e := range m.Events {
		if !ids.Contains(model.CitationEvent, e.ID) {
			continue
		}
		sources = append(sources, Source{
			Type:    model.CitationEvent,
			ID:      e.ID,
			Title:   biography.EventLabel(e),
			Content: e.Description,
			Date:    e.Date,
			Place:   e.Place,
		})
	}

	for _, rc := range related {
		if !ids.Contains(model.CitationBiography, rc.PersonID) {
			continue
		}
		facts := make([]string, 0, len(rc.Facts))
		for _, f := range rc.Facts {
			facts = append(facts, f.Fact)
		}
		sources = append(sources, Source{
			Type:         model.CitationBiography,
			ID:           rc.PersonID,
			Title:        rc.PersonName,
			Relationship: string(rc.RelationshipType),
			Facts:        facts,
		})
	}

	return sources
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02")
}
