package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/ppiankov/kinstory/internal/biography"
	"github.com/ppiankov/kinstory/internal/cache"
	"github.com/ppiankov/kinstory/internal/citation"
	"github.com/ppiankov/kinstory/internal/llm"
	"github.com/ppiankov/kinstory/internal/logging"
	"github.com/ppiankov/kinstory/internal/metrics"
	"github.com/ppiankov/kinstory/internal/mining"
	"github.com/ppiankov/kinstory/internal/model"
	"github.com/ppiankov/kinstory/internal/relatives"
	"github.com/ppiankov/kinstory/internal/store"
)

var (
	// ErrInsufficientMaterial means there is nothing to write a biography from
	ErrInsufficientMaterial = errors.New("insufficient material: no notes, events, related facts or birth date")

	// ErrInvalidRequest wraps request validation failures
	ErrInvalidRequest = errors.New("invalid request")
)

// Phase names the pipeline stage an error is attributed to
type Phase string

const (
	PhaseResolution  Phase = "resolution"
	PhaseGeneration  Phase = "generation"
	PhasePersistence Phase = "persistence"
)

// PhaseError attributes a failure to one pipeline stage
type PhaseError struct {
	Phase Phase
	Err   error
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Phase, e.Err)
}

func (e *PhaseError) Unwrap() error {
	return e.Err
}

// Request asks for one biography. MaxLength is in words; Submit stores the
// result as a pending suggestion.
type Request struct {
	PersonID  string `json:"person_id" binding:"required" validate:"required"`
	ScopeID   string `json:"scope_id" binding:"required" validate:"required"`
	MaxLength int    `json:"max_length,omitempty" binding:"omitempty,min=50,max=5000" validate:"omitempty,min=50,max=5000"`
	Submit    bool   `json:"submit,omitempty"`
}

// Generator runs the full biography pipeline for one person
type Generator struct {
	graph    store.Graph
	sink     store.SuggestionSink
	resolver *relatives.Resolver
	miner    *mining.Miner
	composer *biography.Composer
	provider string
	maxNotes int
	maxEvts  int
	validate *validator.Validate
	log      *logging.Logger
}

// Deps are the collaborators a Generator is built from. Sink and Cache may
// be nil; a nil Provider makes every generation fail.
type Deps struct {
	Graph    store.Graph
	Sink     store.SuggestionSink
	Provider llm.Provider
	Cache    cache.Cache
}

// NewGenerator wires resolver, miner and composer from cfg
func NewGenerator(deps Deps, cfg *model.Config, log *logging.Logger) *Generator {
	if cfg == nil {
		cfg = model.DefaultConfig()
	}
	if log == nil {
		log = logging.Nop()
	}

	providerName := ""
	if deps.Provider != nil {
		providerName = deps.Provider.Name()
	}

	composerOpts := biography.OptionsFromModel(cfg.Generation)
	composerOpts.SafetyThreshold = cfg.LLM.SafetyThreshold

	miningOpts := mining.OptionsFromModel(cfg.Mining)

	return &Generator{
		graph:    deps.Graph,
		sink:     deps.Sink,
		resolver: relatives.NewResolver(deps.Graph, log),
		miner:    mining.NewMiner(deps.Provider, deps.Cache, miningOpts, log),
		composer: biography.NewComposer(deps.Provider, composerOpts, log),
		provider: providerName,
		maxNotes: composerOpts.MaxNotes,
		maxEvts:  composerOpts.MaxEvents,
		validate: validator.New(),
		log:      log.With("component", "pipeline"),
	}
}

// Generate resolves relatives, mines their records, composes the narrative
// and post-processes its citations. Citation repairs are reported in the
// bundle, never as errors.
func (g *Generator) Generate(ctx context.Context, req Request) (*Bundle, error) {
	started := time.Now()
	status := "ok"
	defer func() { metrics.ObserveGeneration(status, started) }()

	if err := g.validate.Struct(req); err != nil {
		status = "invalid"
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	// 1. Load the target
	target, err := g.graph.GetPerson(ctx, req.PersonID)
	if err != nil {
		status = "resolution_error"
		return nil, &PhaseError{Phase: PhaseResolution, Err: err}
	}
	if target.ScopeID != req.ScopeID || target.IsDeleted() {
		status = "resolution_error"
		return nil, &PhaseError{Phase: PhaseResolution, Err: store.ErrPersonNotFound}
	}

	// 2. Resolve relatives
	rels, err := g.resolver.Resolve(ctx, req.PersonID, req.ScopeID)
	if err != nil {
		status = "resolution_error"
		return nil, &PhaseError{Phase: PhaseResolution, Err: err}
	}

	// 3. Mine relative records
	related := g.miner.Mine(ctx, *target, rels)
	if ctx.Err() != nil {
		status = "generation_error"
		return nil, &PhaseError{Phase: PhaseGeneration, Err: ctx.Err()}
	}

	// 4. Refuse to invent a life from nothing
	material := biography.MaterialFor(*target)
	if !g.sufficient(material, related) {
		status = "insufficient"
		return nil, ErrInsufficientMaterial
	}

	// 5. One narrative call
	bio, err := g.composer.Compose(ctx, material, related, req.MaxLength)
	if err != nil {
		status = "generation_error"
		return nil, &PhaseError{Phase: PhaseGeneration, Err: err}
	}

	// 6. Citation post-processing
	processed := citation.Process(bio.Narrative, bio.Admissible)

	bundle := &Bundle{
		RequestID:  uuid.NewString(),
		PersonID:   target.ID,
		ScopeID:    target.ScopeID,
		PersonName: target.Name,
		Narrative:  processed.Text,
		Metadata: Metadata{
			WordCount:   bio.WordCount,
			Confidence:  bio.Confidence,
			SourcesUsed: bio.SourcesUsed,
			Signals:     bio.Signals,
			Provider:    g.provider,
			Model:       bio.Model,
			TokensUsed:  bio.TokensUsed,
		},
		Citations:   processed.Citations,
		Segments:    processed.Segments,
		Repairs:     processed.Repairs,
		Related:     related,
		Sources:     buildSources(material, related, bio.Admissible),
		GeneratedAt: time.Now().UTC(),
	}

	// 7. Optional review submission
	if req.Submit {
		if err := g.submit(ctx, bundle); err != nil {
			status = "persistence_error"
			return nil, &PhaseError{Phase: PhasePersistence, Err: err}
		}
	}

	g.log.Info("biography generated",
		"request_id", bundle.RequestID,
		"person", bundle.PersonID,
		"relatives", len(rels),
		"related_contexts", len(related),
		"words", bundle.Metadata.WordCount,
		"citations", len(bundle.Citations),
		"repairs", len(bundle.Repairs),
		"confidence", bundle.Metadata.Confidence,
	)
	return bundle, nil
}

// sufficient reports whether any usable material exists: a live note, a
// live event, a mined fact or a birth date
func (g *Generator) sufficient(m biography.SourceMaterial, related []model.RelatedContext) bool {
	if len(biography.SelectNotes(m.Notes, g.maxNotes)) > 0 {
		return true
	}
	if len(biography.SelectEvents(m.Events, g.maxEvts)) > 0 {
		return true
	}
	for _, rc := range related {
		if len(rc.Facts) > 0 {
			return true
		}
	}
	return strings.TrimSpace(m.Person.BirthDate) != ""
}

func (g *Generator) submit(ctx context.Context, b *Bundle) error {
	if g.sink == nil {
		return errors.New("no suggestion store configured")
	}
	s := &model.Suggestion{
		RequestID:   b.RequestID,
		PersonID:    b.PersonID,
		ScopeID:     b.ScopeID,
		Narrative:   b.Narrative,
		WordCount:   b.Metadata.WordCount,
		Confidence:  b.Metadata.Confidence,
		SourcesUsed: b.Metadata.SourcesUsed,
	}
	if err := g.sink.SubmitSuggestion(ctx, s); err != nil {
		return fmt.Errorf("submit suggestion: %w", err)
	}
	b.SuggestionID = s.ID
	return nil
}

// Validate checks stored narrative citations against the records that
// exist now
func (g *Generator) Validate(ctx context.Context, text, personID, scopeID string) ([]citation.Validation, error) {
	live, err := g.graph.SourceIDs(ctx, personID, scopeID)
	if err != nil {
		return nil, &PhaseError{Phase: PhaseResolution, Err: err}
	}
	return citation.Validate(text, live), nil
}

// RepairStale rewrites citations to records deleted since generation
func (g *Generator) RepairStale(ctx context.Context, text, personID, scopeID string) (string, []citation.Repair, error) {
	live, err := g.graph.SourceIDs(ctx, personID, scopeID)
	if err != nil {
		return "", nil, &PhaseError{Phase: PhaseResolution, Err: err}
	}
	repaired, repairs := citation.RepairStale(text, live)
	return repaired, repairs, nil
}
