package biography

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/ppiankov/kinstory/internal/llm"
	"github.com/ppiankov/kinstory/internal/logging"
	"github.com/ppiankov/kinstory/internal/model"
	"github.com/ppiankov/kinstory/internal/score"
	"github.com/ppiankov/kinstory/internal/util"
)

// ErrEmptyGeneration is returned when the model produced no text
var ErrEmptyGeneration = errors.New("model returned an empty biography")

const (
	DefaultMaxLength = 500
	DefaultMaxNotes  = 15
	DefaultMaxEvents = 15
)

// SourceMaterial is the target person and their own records
type SourceMaterial struct {
	Person model.Person
	Notes  []model.Note
	Events []model.Event
}

// MaterialFor uses the notes and events attached to p
func MaterialFor(p model.Person) SourceMaterial {
	return SourceMaterial{Person: p, Notes: p.Notes, Events: p.Events}
}

// Options tunes generation
type Options struct {
	DefaultMaxLength int
	Temperature      float32
	MaxTokens        int
	MaxNotes         int
	MaxEvents        int
	SafetyThreshold  string
}

// OptionsFromModel converts model.GenerationConfig
func OptionsFromModel(c model.GenerationConfig) Options {
	return Options{
		DefaultMaxLength: c.MaxLength,
		Temperature:      c.Temperature,
		MaxTokens:        c.MaxTokens,
		MaxNotes:         c.MaxNotes,
		MaxEvents:        c.MaxEvents,
	}
}

// Composer turns source material and mined context into a narrative
type Composer struct {
	provider llm.Provider
	scorer   *score.Scorer
	opts     Options
	log      *logging.Logger
}

// NewComposer creates a composer
func NewComposer(p llm.Provider, opts Options, log *logging.Logger) *Composer {
	if opts.DefaultMaxLength <= 0 {
		opts.DefaultMaxLength = DefaultMaxLength
	}
	if opts.MaxNotes <= 0 {
		opts.MaxNotes = DefaultMaxNotes
	}
	if opts.MaxEvents <= 0 {
		opts.MaxEvents = DefaultMaxEvents
	}
	if log == nil {
		log = logging.Nop()
	}
	return &Composer{
		provider: p,
		scorer:   score.NewScorer(),
		opts:     opts,
		log:      log.With("component", "composer"),
	}
}

// WordRange returns the target [min, max] word counts for maxLength
func (c *Composer) WordRange(maxLength int) (int, int) {
	if maxLength <= 0 {
		maxLength = c.opts.DefaultMaxLength
	}
	// ceil(0.6 * maxLength) without float rounding
	return (3*maxLength + 4) / 5, maxLength
}

// Compose makes exactly one generation call and scores the result
func (c *Composer) Compose(ctx context.Context, material SourceMaterial, related []model.RelatedContext, maxLength int) (*model.Biography, error) {
	if c.provider == nil {
		return nil, fmt.Errorf("generate biography: no LLM provider configured")
	}

	material, related = c.citable(material, related)
	notes := SelectNotes(material.Notes, c.opts.MaxNotes)
	events := SelectEvents(material.Events, c.opts.MaxEvents)
	related = nonEmpty(related)
	minWords, maxWords := c.WordRange(maxLength)

	prompt := buildPrompt(promptInput{
		person:   material.Person,
		notes:    notes,
		events:   events,
		related:  related,
		minWords: minWords,
		maxWords: maxWords,
	})

	resp, err := c.provider.Generate(ctx, llm.Request{
		Prompt:          prompt,
		System:          systemPrompt,
		ModelTier:       llm.TierQuality,
		Temperature:     c.opts.Temperature,
		MaxOutputTokens: c.opts.MaxTokens,
		Safety:          llm.SafetyConfig{Threshold: c.opts.SafetyThreshold},
	})
	if err != nil {
		return nil, fmt.Errorf("generate biography: %w", err)
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return nil, ErrEmptyGeneration
	}

	facts := 0
	for _, rc := range related {
		facts += len(rc.Facts)
	}
	confidence, signals := c.scorer.Calculate(score.Inputs{
		Person:     material.Person,
		NoteCount:  len(notes),
		EventCount: len(events),
		FactCount:  facts,
	})

	bio := &model.Biography{
		Narrative:   text,
		WordCount:   len(strings.Fields(text)),
		Confidence:  confidence,
		SourcesUsed: sourcesUsed(notes, events, related),
		Signals:     signals,
		Admissible:  admissible(notes, events, related),
		Model:       resp.Model,
		TokensUsed:  resp.TokensUsed,
	}

	c.log.Debug("biography composed",
		"person", material.Person.ID,
		"words", bio.WordCount,
		"target_words", maxWords,
		"confidence", bio.Confidence,
		"notes", len(notes),
		"events", len(events),
		"facts", facts,
	)
	return bio, nil
}

// citable drops records whose ids cannot be written into a citation tag.
// Their content stays out of the prompt so the narrative never cites them.
func (c *Composer) citable(material SourceMaterial, related []model.RelatedContext) (SourceMaterial, []model.RelatedContext) {
	notes := make([]model.Note, 0, len(material.Notes))
	for _, n := range material.Notes {
		if !CitableID(n.ID) {
			c.log.Warn("skipping note with uncitable id", "person", material.Person.ID, "note", n.ID)
			continue
		}
		notes = append(notes, n)
	}

	events := make([]model.Event, 0, len(material.Events))
	for _, e := range material.Events {
		if !CitableID(e.ID) {
			c.log.Warn("skipping event with uncitable id", "person", material.Person.ID, "event", e.ID)
			continue
		}
		events = append(events, e)
	}

	kept := make([]model.RelatedContext, 0, len(related))
	for _, rc := range related {
		if !CitableID(rc.PersonID) {
			c.log.Warn("skipping relative with uncitable id", "person", material.Person.ID, "relative", rc.PersonID)
			continue
		}
		kept = append(kept, rc)
	}

	material.Notes = notes
	material.Events = events
	return material, kept
}

// SelectNotes keeps live, non-empty notes, newest first, capped at max
func SelectNotes(notes []model.Note, max int) []model.Note {
	out := make([]model.Note, 0, len(notes))
	for _, n := range notes {
		if n.DeletedAt != nil || util.PlainText(n.Content) == "" {
			continue
		}
		out = append(out, n)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if max > 0 && len(out) > max {
		out = out[:max]
	}
	return out
}

// SelectEvents keeps live events in their given order, capped at max
func SelectEvents(events []model.Event, max int) []model.Event {
	out := make([]model.Event, 0, len(events))
	for _, e := range events {
		if e.DeletedAt != nil {
			continue
		}
		out = append(out, e)
		if max > 0 && len(out) == max {
			break
		}
	}
	return out
}

var relationPlural = map[model.RelationshipType]string{
	model.RelationParent:   "parents",
	model.RelationChild:    "children",
	model.RelationSibling:  "siblings",
	model.RelationSpouse:   "spouses",
	model.RelationCoparent: "coparents",
}

func sourcesUsed(notes []model.Note, events []model.Event, related []model.RelatedContext) []string {
	out := []string{}
	if len(notes) > 0 {
		out = append(out, "notes")
	}
	if len(events) > 0 {
		out = append(out, "events")
	}

	contributed := make(map[model.RelationshipType]bool)
	for _, rc := range related {
		if len(rc.Facts) > 0 {
			contributed[rc.RelationshipType] = true
		}
	}
	for _, rel := range model.RelationOrder {
		if contributed[rel] {
			out = append(out, relationPlural[rel])
		}
	}
	return out
}

func admissible(notes []model.Note, events []model.Event, related []model.RelatedContext) model.SourceIDSet {
	set := model.NewSourceIDSet()
	for _, n := range notes {
		set.Add(model.CitationNote, n.ID)
	}
	for _, e := range events {
		set.Add(model.CitationEvent, e.ID)
	}
	for _, rc := range related {
		set.Add(model.CitationBiography, rc.PersonID)
	}
	return set
}

func nonEmpty(related []model.RelatedContext) []model.RelatedContext {
	out := make([]model.RelatedContext, 0, len(related))
	for _, rc := range related {
		if len(rc.Facts) > 0 {
			out = append(out, rc)
		}
	}
	return out
}
