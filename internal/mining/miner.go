package mining

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/singleflight"

	"github.com/ppiankov/kinstory/internal/cache"
	"github.com/ppiankov/kinstory/internal/llm"
	"github.com/ppiankov/kinstory/internal/logging"
	"github.com/ppiankov/kinstory/internal/metrics"
	"github.com/ppiankov/kinstory/internal/model"
	"github.com/ppiankov/kinstory/internal/worker"
)

// MaxConcurrency caps simultaneous extraction calls
const MaxConcurrency = 5

// DefaultCallTimeout bounds one shared extraction, retries included
const DefaultCallTimeout = 3 * time.Minute

// Outcome labels for a single relative
const (
	OutcomeFacts         = "facts"
	OutcomeEmpty         = "empty"
	OutcomeParseError    = "parse_error"
	OutcomeInvalid       = "invalid"
	OutcomeProviderError = "provider_error"
	OutcomeCancelled     = "cancelled"
	OutcomeCached        = "cached"
)

// Options tunes the miner
type Options struct {
	Concurrency int
	Temperature float32
	MaxTokens   int
	CacheTTL    time.Duration // 0 lets each cache layer apply its own TTL
	CallTimeout time.Duration
}

// OptionsFromModel converts model.MiningConfig
func OptionsFromModel(c model.MiningConfig) Options {
	return Options{
		Concurrency: c.Concurrency,
		Temperature: c.Temperature,
		MaxTokens:   c.MaxTokens,
	}
}

// Miner extracts facts about a target person from each relative's records
type Miner struct {
	provider llm.Provider
	cache    cache.Cache
	opts     Options
	log      *logging.Logger
	validate *validator.Validate
	group    singleflight.Group
}

// NewMiner creates a miner. c may be nil to disable caching.
func NewMiner(p llm.Provider, c cache.Cache, opts Options, log *logging.Logger) *Miner {
	if opts.Concurrency <= 0 || opts.Concurrency > MaxConcurrency {
		opts.Concurrency = MaxConcurrency
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = DefaultCallTimeout
	}
	if log == nil {
		log = logging.Nop()
	}
	return &Miner{
		provider: p,
		cache:    c,
		opts:     opts,
		log:      log.With("component", "miner"),
		validate: validator.New(),
	}
}

type mineJob struct {
	miner  *Miner
	index  int
	target model.Person
	rel    model.RelativeInfo
}

type mineResult struct {
	index   int
	context *model.RelatedContext
	outcome string
	err     error
}

func (r *mineResult) GetError() error { return r.err }

// Execute mines one relative. Failures are folded into the outcome.
func (j *mineJob) Execute(ctx context.Context) worker.Result {
	res := &mineResult{index: j.index}
	if err := ctx.Err(); err != nil {
		res.outcome, res.err = OutcomeCancelled, err
		return res
	}

	facts, outcome, err := j.miner.extract(ctx, j.target, j.rel)
	res.outcome, res.err = outcome, err
	if len(facts) > 0 {
		res.context = &model.RelatedContext{
			RelationshipType: j.rel.RelationshipType,
			PersonID:         j.rel.PersonID,
			PersonName:       j.rel.PersonName,
			Facts:            facts,
		}
	}
	return res
}

// Mine runs one extraction per relative that has content and returns the
// contexts that yielded at least one valid fact. It never fails: a relative
// whose extraction fails contributes nothing. The result is never nil.
func (m *Miner) Mine(ctx context.Context, target model.Person, relatives []model.RelativeInfo) []model.RelatedContext {
	out := []model.RelatedContext{}
	if m.provider == nil {
		return out
	}

	pool := worker.NewPool(ctx, m.opts.Concurrency)
	pool.Start()

	submitted := 0
	for i, rel := range relatives {
		if !rel.HasContent() {
			m.log.Debug("skipping relative without content", "relative", rel.PersonID, "relationship", rel.RelationshipType)
			continue
		}
		if pool.Submit(&mineJob{miner: m, index: i, target: target, rel: rel}) {
			submitted++
		}
	}

	results := pool.Wait()

	outcomes := make(map[string]int)
	kept := make([]*mineResult, 0, len(results))
	for _, r := range results {
		mr, ok := r.(*mineResult)
		if !ok {
			continue
		}
		outcomes[mr.outcome]++
		metrics.MiningOutcomes.WithLabelValues(mr.outcome).Inc()
		if mr.context != nil {
			kept = append(kept, mr)
		}
	}

	sort.Slice(kept, func(a, b int) bool { return kept[a].index < kept[b].index })
	for _, mr := range kept {
		out = append(out, *mr.context)
	}

	if ctx.Err() != nil {
		m.log.Warn("mining interrupted", "person", target.ID, "submitted", submitted, "cancelled", outcomes[OutcomeCancelled], "kept", len(out))
	} else {
		m.log.Debug("mining complete", "person", target.ID, "submitted", submitted, "kept", len(out), "outcomes", outcomes, "peak_concurrency", pool.MaxInFlight())
	}
	return out
}

// extract returns the facts for one relative, consulting the cache first
func (m *Miner) extract(ctx context.Context, target model.Person, rel model.RelativeInfo) ([]model.RelevantFact, string, error) {
	prompt := buildPrompt(target, rel)
	key := cache.Key("mining", m.provider.Name(), target.ID, prompt)

	if m.cache != nil {
		if raw, ok := m.cache.Get(ctx, key); ok {
			var facts []model.RelevantFact
			if err := json.Unmarshal(raw, &facts); err == nil {
				metrics.CacheLookups.WithLabelValues("hit").Inc()
				return facts, OutcomeCached, nil
			}
		}
		metrics.CacheLookups.WithLabelValues("miss").Inc()
	}

	// The shared call is detached from whichever caller started it; each
	// caller stops waiting on its own ctx.
	ch := m.group.DoChan(key, func() (interface{}, error) {
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.opts.CallTimeout)
		defer cancel()

		facts, err := m.call(callCtx, prompt, rel)
		if err == nil && len(facts) > 0 {
			m.store(callCtx, key, facts)
		}
		return facts, err
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, OutcomeCancelled, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		return nil, classify(ctx, res.Err), res.Err
	}
	if res.Shared {
		m.log.Debug("extraction shared with concurrent caller", "relative", rel.PersonID)
	}

	facts := res.Val.([]model.RelevantFact)
	if len(facts) == 0 {
		return nil, OutcomeEmpty, nil
	}
	return facts, OutcomeFacts, nil
}

func (m *Miner) store(ctx context.Context, key string, facts []model.RelevantFact) {
	if m.cache == nil {
		return
	}
	raw, err := json.Marshal(facts)
	if err != nil {
		return
	}
	if err := m.cache.Set(ctx, key, raw, m.opts.CacheTTL); err != nil {
		m.log.Debug("cache write failed", "error", err)
	}
}

// call performs the model request and validates the response
func (m *Miner) call(ctx context.Context, prompt string, rel model.RelativeInfo) ([]model.RelevantFact, error) {
	metrics.MiningInFlight.Inc()
	defer metrics.MiningInFlight.Dec()

	resp, err := m.provider.Generate(ctx, llm.Request{
		Prompt:          prompt,
		System:          systemPrompt,
		ModelTier:       llm.TierFast,
		Temperature:     m.opts.Temperature,
		MaxOutputTokens: m.opts.MaxTokens,
	})
	if err != nil {
		if ctx.Err() == nil {
			m.log.Warn("extraction call failed", "relative", rel.PersonID, "error", err)
		}
		return nil, err
	}

	facts, err := parseFacts(m.validate, resp.Text)
	if err != nil {
		m.log.Debug("discarding extraction", "relative", rel.PersonID, "relationship", rel.RelationshipType, "error", err)
		return nil, err
	}
	return facts, nil
}

func classify(ctx context.Context, err error) string {
	switch {
	case ctx.Err() != nil:
		return OutcomeCancelled
	case errors.Is(err, ErrNoJSON):
		return OutcomeParseError
	case errors.Is(err, ErrInvalidSchema):
		return OutcomeInvalid
	default:
		return OutcomeProviderError
	}
}
