package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/kinstory/internal/model"
)

func TestDecodePersonRecord(t *testing.T) {
	row := map[string]any{
		"person": map[string]any{
			"id":         "p1",
			"scope_id":   "tree-1",
			"name":       "John Smith",
			"deleted_at": nil,
		},
		"notes": []any{
			map[string]any{"id": "n1", "content": "farmer", "created_at": "2021-05-01T10:00:00Z"},
			"garbage",
		},
		"events": []any{
			map[string]any{"id": "e2", "title": "Marriage", "participants": []any{"p1", "p5"}},
		},
	}

	p := decodePersonRecord(row)
	assert.Equal(t, "p1", p.ID)
	assert.Equal(t, "tree-1", p.ScopeID)
	assert.False(t, p.IsDeleted())
	require.Len(t, p.Notes, 1)
	assert.Equal(t, "p1", p.Notes[0].PersonID)
	assert.Equal(t, 2021, p.Notes[0].CreatedAt.Year())
	require.Len(t, p.Events, 1)
	assert.Equal(t, []string{"p1", "p5"}, p.Events[0].Participants)
}

func TestTimeProp(t *testing.T) {
	now := time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)
	m := map[string]any{"s": now.Format(time.RFC3339Nano), "t": now, "bad": "yesterday", "empty": ""}

	assert.True(t, timeProp(m, "s").Equal(now))
	assert.True(t, timeProp(m, "t").Equal(now))
	assert.Nil(t, timeProp(m, "bad"))
	assert.Nil(t, timeProp(m, "empty"))
	assert.Nil(t, timeProp(m, "missing"))
	assert.Nil(t, formatTime(nil))
}

// TestNeo4jStore_Graph needs a disposable database, e.g.
// NEO4J_TEST_URI=neo4j://localhost:7687 NEO4J_TEST_PASSWORD=secret
func TestNeo4jStore_Graph(t *testing.T) {
	uri := os.Getenv("NEO4J_TEST_URI")
	if uri == "" {
		t.Skip("set NEO4J_TEST_URI to run neo4j integration tests")
	}

	ctx := context.Background()
	s, err := OpenNeo4j(ctx, model.StoreConfig{
		Neo4jURI:      uri,
		Neo4jUser:     os.Getenv("NEO4J_TEST_USER"),
		Neo4jPassword: os.Getenv("NEO4J_TEST_PASSWORD"),
	}, nil)
	require.NoError(t, err)
	defer func() { _ = s.Close(ctx) }()

	require.NoError(t, s.Import(ctx, loadFamily(t)))
	graphContract(t, s)

	require.NoError(t, s.SubmitSuggestion(ctx, &model.Suggestion{PersonID: "p1", ScopeID: "tree-1", Narrative: "x"}))
}
