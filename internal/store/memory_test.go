package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/kinstory/internal/model"
)

func loadFamily(t *testing.T) *Fixture {
	t.Helper()
	f, err := LoadFixture("testdata/family.yaml")
	require.NoError(t, err)
	return f
}

func ids(people []model.Person) []string {
	out := make([]string, len(people))
	for i, p := range people {
		out[i] = p.ID
	}
	return out
}

// graphContract runs the same expectations against every backend
func graphContract(t *testing.T, g Graph) {
	ctx := context.Background()

	t.Run("get person", func(t *testing.T) {
		p, err := g.GetPerson(ctx, "p1")
		require.NoError(t, err)
		assert.Equal(t, "John Smith", p.Name)
		assert.Len(t, p.Notes, 3)
		assert.Len(t, p.Events, 2)

		_, err = g.GetPerson(ctx, "nobody")
		assert.ErrorIs(t, err, ErrPersonNotFound)
	})

	t.Run("participated events", func(t *testing.T) {
		p, err := g.GetPerson(ctx, "p5")
		require.NoError(t, err)
		require.Len(t, p.Events, 1)
		assert.Equal(t, "e2", p.Events[0].ID)
		assert.ElementsMatch(t, []string{"p1", "p5"}, p.Events[0].Participants)
	})

	t.Run("parents", func(t *testing.T) {
		parents, err := g.FindParents(ctx, "tree-1", "p1")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"p2", "p3"}, ids(parents))
	})

	t.Run("children", func(t *testing.T) {
		children, err := g.FindChildren(ctx, "tree-1", "p1")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"p6", "p8"}, ids(children))
	})

	t.Run("siblings filter deleted and foreign scope", func(t *testing.T) {
		siblings, err := g.FindSiblings(ctx, "tree-1", []string{"p2", "p3"}, "p1")
		require.NoError(t, err)
		assert.Equal(t, []string{"p4"}, ids(siblings))

		none, err := g.FindSiblings(ctx, "tree-1", nil, "p1")
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("spouses are symmetric", func(t *testing.T) {
		spouses, err := g.FindSpouses(ctx, "tree-1", "p5")
		require.NoError(t, err)
		assert.Equal(t, []string{"p1"}, ids(spouses))
	})

	t.Run("coparents", func(t *testing.T) {
		coparents, err := g.FindCoparents(ctx, "tree-1", []string{"p6", "p8"}, "p1")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"p5", "p7"}, ids(coparents))
	})

	t.Run("source ids", func(t *testing.T) {
		set, err := g.SourceIDs(ctx, "p1", "tree-1")
		require.NoError(t, err)
		assert.True(t, set.Contains(model.CitationNote, "n1"))
		assert.False(t, set.Contains(model.CitationNote, "n2"), "deleted note")
		assert.False(t, set.Contains(model.CitationNote, "n3"), "empty note")
		assert.True(t, set.Contains(model.CitationEvent, "e2"))
		for _, id := range []string{"p2", "p3", "p4", "p5", "p6", "p7", "p8"} {
			assert.True(t, set.Contains(model.CitationBiography, id), id)
		}
		assert.False(t, set.Contains(model.CitationBiography, "p9"))
		assert.False(t, set.Contains(model.CitationBiography, "p10"))
		assert.False(t, set.Contains(model.CitationBiography, "p1"))
	})

	t.Run("source ids wrong scope", func(t *testing.T) {
		_, err := g.SourceIDs(ctx, "p1", "tree-2")
		assert.ErrorIs(t, err, ErrPersonNotFound)
	})
}

func TestMemoryStore_Graph(t *testing.T) {
	graphContract(t, NewMemoryStore(loadFamily(t)))
}

func TestMemoryStore_SubmitSuggestion(t *testing.T) {
	s := NewMemoryStore(loadFamily(t))

	sg := &model.Suggestion{PersonID: "p1", ScopeID: "tree-1", Narrative: "John was a farmer.", Status: model.SuggestionAccepted}
	require.NoError(t, s.SubmitSuggestion(context.Background(), sg))

	assert.NotEmpty(t, sg.ID)
	assert.Equal(t, model.SuggestionPending, sg.Status, "new suggestions are always pending")
	assert.False(t, sg.CreatedAt.IsZero())
	assert.Len(t, s.Suggestions("p1"), 1)

	assert.Error(t, s.SubmitSuggestion(context.Background(), &model.Suggestion{}))
}

func TestParseFixture_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"missing id", "people:\n  - name: x\n"},
		{"duplicate id", "people:\n  - id: a\n  - id: a\n"},
		{"unknown kind", "people:\n  - id: a\n  - id: b\nrelationships:\n  - {kind: cousin, from: a, to: b}\n"},
		{"dangling edge", "people:\n  - id: a\nrelationships:\n  - {kind: parent, from: a, to: zz}\n"},
		{"bad yaml", "people: ["},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseFixture([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestOpen_Drivers(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, model.StoreConfig{Driver: "fixture", FixturePath: "testdata/family.yaml"}, nil)
	require.NoError(t, err)
	_, err = s.GetPerson(ctx, "p1")
	require.NoError(t, err)

	s, err = Open(ctx, model.StoreConfig{Driver: "fixture"}, nil)
	require.NoError(t, err)
	_, err = s.GetPerson(ctx, "p1")
	assert.ErrorIs(t, err, ErrPersonNotFound)

	_, err = Open(ctx, model.StoreConfig{Driver: "mongo"}, nil)
	assert.Error(t, err)

	_, err = Open(ctx, model.StoreConfig{Driver: "postgres"}, nil)
	assert.Error(t, err, "dsn required")
}
