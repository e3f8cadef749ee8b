package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/kinstory/internal/model"
)

func newSQLiteStore(t *testing.T) *SQLStore {
	t.Helper()
	cfg := model.StoreConfig{
		Driver:      "sqlite",
		DSN:         filepath.Join(t.TempDir(), "kinstory.db"),
		AutoMigrate: true,
	}
	s, err := OpenSQL(cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close(context.Background()) })

	require.NoError(t, s.Import(context.Background(), loadFamily(t)))
	return s
}

func TestSQLStore_Graph(t *testing.T) {
	graphContract(t, newSQLiteStore(t))
}

func TestSQLStore_ImportIsIdempotent(t *testing.T) {
	s := newSQLiteStore(t)
	require.NoError(t, s.Import(context.Background(), loadFamily(t)))

	parents, err := s.FindParents(context.Background(), "tree-1", "p1")
	require.NoError(t, err)
	assert.Len(t, parents, 2)
}

func TestSQLStore_NotesNewestFirst(t *testing.T) {
	s := newSQLiteStore(t)

	p, err := s.GetPerson(context.Background(), "p1")
	require.NoError(t, err)
	require.Len(t, p.Notes, 3)
	assert.Equal(t, "n3", p.Notes[0].ID)
	assert.NotNil(t, p.Notes[2].DeletedAt)
}

func TestSQLStore_Suggestions(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()

	sg := &model.Suggestion{
		RequestID:   "req-1",
		PersonID:    "p1",
		ScopeID:     "tree-1",
		Narrative:   "John Smith was born in 1820 [Note:n1:Occupation].",
		WordCount:   8,
		Confidence:  0.5,
		SourcesUsed: []string{"notes", "parents"},
	}
	require.NoError(t, s.SubmitSuggestion(ctx, sg))

	got, err := s.Suggestions(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, sg.ID, got[0].ID)
	assert.Equal(t, model.SuggestionPending, got[0].Status)
	assert.Equal(t, []string{"notes", "parents"}, got[0].SourcesUsed)
	assert.Equal(t, "req-1", got[0].RequestID)
}
