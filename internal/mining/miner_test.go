package mining

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/kinstory/internal/cache"
	"github.com/ppiankov/kinstory/internal/llm"
	"github.com/ppiankov/kinstory/internal/model"
)

// fakeProvider answers by relative id and tracks concurrency
type fakeProvider struct {
	answers map[string]string
	errs    map[string]error
	delay   time.Duration

	calls    atomic.Int32
	inFlight atomic.Int32
	maxSeen  atomic.Int32

	mu      sync.Mutex
	prompts []string
	tiers   []llm.ModelTier
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Generate(ctx context.Context, req llm.Request) (*llm.Response, error) {
	f.calls.Add(1)
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		max := f.maxSeen.Load()
		if n <= max || f.maxSeen.CompareAndSwap(max, n) {
			break
		}
	}

	f.mu.Lock()
	f.prompts = append(f.prompts, req.Prompt)
	f.tiers = append(f.tiers, req.ModelTier)
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	for id, err := range f.errs {
		if strings.Contains(req.Prompt, "(id "+id+"),") {
			return nil, err
		}
	}
	for id, text := range f.answers {
		if strings.Contains(req.Prompt, "(id "+id+"),") {
			return &llm.Response{Text: text}, nil
		}
	}
	return &llm.Response{Text: `{"relevantFacts":[]}`}, nil
}

func factsJSON(fact string) string {
	return fmt.Sprintf(`{"relationshipType":"cousin","personId":"WRONG","personName":"Wrong Name","relevantFacts":[{"fact":%q,"source":"biography","relevanceReason":"mentions the target"}]}`, fact)
}

func relative(id string, rel model.RelationshipType) model.RelativeInfo {
	return model.RelativeInfo{
		RelationshipType: rel,
		PersonID:         id,
		PersonName:       "Relative " + id,
		Biography:        "Some biography text for " + id,
	}
}

var target = model.Person{ID: "p1", ScopeID: "s", Name: "John Smith", BirthDate: "1820"}

func TestMine_KeepsValidFactsWithResolverIdentity(t *testing.T) {
	p := &fakeProvider{answers: map[string]string{
		"a": "Sure! " + factsJSON("Raised John on the farm"),
		"b": "garbled output",
		"c": `{"relevantFacts":[]}`,
		"d": `{"relevantFacts":[{"fact":"x","source":"diary","relevanceReason":"y"}]}`,
	}}
	m := NewMiner(p, nil, Options{}, nil)

	out := m.Mine(context.Background(), target, []model.RelativeInfo{
		relative("a", model.RelationParent),
		relative("b", model.RelationChild),
		relative("c", model.RelationSibling),
		relative("d", model.RelationSpouse),
	})

	require.Len(t, out, 1)
	assert.Equal(t, model.RelationParent, out[0].RelationshipType)
	assert.Equal(t, "a", out[0].PersonID)
	assert.Equal(t, "Relative a", out[0].PersonName)
	assert.Equal(t, "Raised John on the farm", out[0].Facts[0].Fact)
	assert.Equal(t, int32(4), p.calls.Load())

	for _, tier := range p.tiers {
		assert.Equal(t, llm.TierFast, tier)
	}
}

func TestMine_NoCallWithoutContent(t *testing.T) {
	p := &fakeProvider{}
	m := NewMiner(p, nil, Options{}, nil)

	empty := model.RelativeInfo{RelationshipType: model.RelationChild, PersonID: "x", Biography: "   "}
	out := m.Mine(context.Background(), target, []model.RelativeInfo{empty})

	assert.NotNil(t, out)
	assert.Empty(t, out)
	assert.Equal(t, int32(0), p.calls.Load())
}

func TestMine_ConcurrencyNeverExceedsFive(t *testing.T) {
	p := &fakeProvider{delay: 20 * time.Millisecond}
	m := NewMiner(p, nil, Options{Concurrency: 50}, nil)

	rels := make([]model.RelativeInfo, 20)
	for i := range rels {
		rels[i] = relative(fmt.Sprintf("r%d", i), model.RelationChild)
	}

	m.Mine(context.Background(), target, rels)

	assert.Equal(t, int32(20), p.calls.Load())
	assert.LessOrEqual(t, p.maxSeen.Load(), int32(MaxConcurrency))
	assert.Greater(t, p.maxSeen.Load(), int32(1), "calls overlap")
}

func TestMine_ProviderErrorsAreIsolated(t *testing.T) {
	p := &fakeProvider{
		answers: map[string]string{"ok": factsJSON("fact")},
		errs:    map[string]error{"bad": errors.New("upstream exploded")},
	}
	m := NewMiner(p, nil, Options{}, nil)

	out := m.Mine(context.Background(), target, []model.RelativeInfo{
		relative("bad", model.RelationParent),
		relative("ok", model.RelationParent),
	})

	require.Len(t, out, 1)
	assert.Equal(t, "ok", out[0].PersonID)
}

func TestMine_Cancelled(t *testing.T) {
	p := &fakeProvider{delay: time.Second}
	m := NewMiner(p, nil, Options{Concurrency: 1}, nil)

	rels := make([]model.RelativeInfo, 6)
	for i := range rels {
		rels[i] = relative(fmt.Sprintf("r%d", i), model.RelationChild)
	}

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(30*time.Millisecond, cancel)

	start := time.Now()
	out := m.Mine(ctx, target, rels)

	assert.Empty(t, out)
	assert.Less(t, time.Since(start), time.Second, "queued work observes cancellation")
	assert.LessOrEqual(t, p.calls.Load(), int32(2))
}

func TestMine_UsesCache(t *testing.T) {
	p := &fakeProvider{answers: map[string]string{"a": factsJSON("cached fact")}}
	c := cache.NewMemoryCache(time.Minute, time.Minute)
	m := NewMiner(p, c, Options{}, nil)
	rels := []model.RelativeInfo{relative("a", model.RelationParent)}

	first := m.Mine(context.Background(), target, rels)
	second := m.Mine(context.Background(), target, rels)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), p.calls.Load())

	// Changed content misses the cache
	rels[0].Biography += " updated"
	m.Mine(context.Background(), target, rels)
	assert.Equal(t, int32(2), p.calls.Load())
}

func TestMine_PromptMentionsSources(t *testing.T) {
	p := &fakeProvider{}
	m := NewMiner(p, nil, Options{}, nil)

	rel := model.RelativeInfo{
		RelationshipType: model.RelationSibling,
		PersonID:         "p4",
		PersonName:       "Anne Smith",
		Notes:            []model.NoteSource{{NoteID: "n9", Title: "Letter", Content: "John visited."}},
		Events:           []model.EventSource{{EventID: "e3", Title: "Wedding", Date: "1850"}},
	}
	m.Mine(context.Background(), target, []model.RelativeInfo{rel})

	require.Len(t, p.prompts, 1)
	prompt := p.prompts[0]
	assert.Contains(t, prompt, "[note n9] Letter: John visited.")
	assert.Contains(t, prompt, "[event e3] Wedding, 1850")
	assert.Contains(t, prompt, "the target's sibling")
	assert.Contains(t, prompt, "relevantFacts")
}

func TestMine_NilProvider(t *testing.T) {
	m := NewMiner(nil, nil, Options{}, nil)
	out := m.Mine(context.Background(), target, []model.RelativeInfo{relative("a", model.RelationParent)})
	assert.NotNil(t, out)
	assert.Empty(t, out)
}

// gatedProvider blocks every call until release is closed
type gatedProvider struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
	calls   atomic.Int32
}

func (g *gatedProvider) Name() string { return "gated" }

func (g *gatedProvider) Generate(ctx context.Context, req llm.Request) (*llm.Response, error) {
	g.calls.Add(1)
	g.once.Do(func() { close(g.started) })
	select {
	case <-g.release:
		return &llm.Response{Text: factsJSON("Witnessed the baptism")}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type extraction struct {
	facts   []model.RelevantFact
	outcome string
}

func TestExtract_JoinedCallerSurvivesOtherCancellation(t *testing.T) {
	p := &gatedProvider{started: make(chan struct{}), release: make(chan struct{})}
	c := cache.NewMemoryCache(time.Minute, time.Minute)
	m := NewMiner(p, c, Options{}, nil)
	rel := relative("a", model.RelationSibling)

	ctxA, cancelA := context.WithCancel(context.Background())
	defer cancelA()

	first := make(chan extraction, 1)
	go func() {
		facts, outcome, _ := m.extract(ctxA, target, rel)
		first <- extraction{facts, outcome}
	}()
	<-p.started

	second := make(chan extraction, 1)
	go func() {
		facts, outcome, _ := m.extract(context.Background(), target, rel)
		second <- extraction{facts, outcome}
	}()

	// Let the second caller join the in-flight extraction
	time.Sleep(20 * time.Millisecond)
	cancelA()

	a := <-first
	assert.Equal(t, OutcomeCancelled, a.outcome)
	assert.Empty(t, a.facts)

	close(p.release)
	b := <-second
	assert.Equal(t, OutcomeFacts, b.outcome)
	require.Len(t, b.facts, 1)
	assert.Equal(t, "Witnessed the baptism", b.facts[0].Fact)
	assert.Equal(t, int32(1), p.calls.Load())
}

func TestExtract_CancelledCallerStillFillsCache(t *testing.T) {
	p := &gatedProvider{started: make(chan struct{}), release: make(chan struct{})}
	c := cache.NewMemoryCache(time.Minute, time.Minute)
	m := NewMiner(p, c, Options{}, nil)
	rel := relative("a", model.RelationSibling)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan string, 1)
	go func() {
		_, outcome, _ := m.extract(ctx, target, rel)
		done <- outcome
	}()
	<-p.started
	cancel()
	assert.Equal(t, OutcomeCancelled, <-done)

	close(p.release)
	require.Eventually(t, func() bool {
		_, outcome, _ := m.extract(context.Background(), target, rel)
		return outcome == OutcomeCached
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(1), p.calls.Load())
}
