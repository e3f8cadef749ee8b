package store

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/ppiankov/kinstory/internal/logging"
	"github.com/ppiankov/kinstory/internal/model"
)

// Neo4jStore is a Graph backed by a Neo4j database.
//
// Schema: (:Person)-[:PARENT_OF]->(:Person), (:Person)-[:SPOUSE_OF]-(:Person),
// (:Person)-[:HAS_NOTE]->(:Note), (:Person)-[:HAS_EVENT]->(:Event),
// (:Person)-[:PARTICIPATED_IN]->(:Event), (:Person)-[:HAS_SUGGESTION]->(:Suggestion).
// Timestamps are stored as RFC 3339 strings.
type Neo4jStore struct {
	driver   neo4j.DriverWithContext
	database string
	log      *logging.Logger
}

const liveFilter = `p.scope_id = $scope AND p.deleted_at IS NULL`

const hydrateQuery = `
UNWIND $ids AS pid
MATCH (p:Person {id: pid})
OPTIONAL MATCH (p)-[:HAS_NOTE]->(n:Note)
WITH p, collect(n {.*}) AS notes
OPTIONAL MATCH (p)-[:HAS_EVENT|PARTICIPATED_IN]->(e:Event)
OPTIONAL MATCH (q:Person)-[:PARTICIPATED_IN]->(e)
WITH p, notes, e, collect(DISTINCT q.id) AS participants
ORDER BY e.position, e.id
WITH p, notes, collect(CASE WHEN e IS NULL THEN NULL ELSE e {.*, participants: participants} END) AS events
RETURN p {.*} AS person, notes, events
`

// OpenNeo4j connects and verifies connectivity
func OpenNeo4j(ctx context.Context, cfg model.StoreConfig, log *logging.Logger) (*Neo4jStore, error) {
	if cfg.Neo4jURI == "" {
		return nil, fmt.Errorf("store.neo4j_uri is required for driver neo4j")
	}
	if log == nil {
		log = logging.Nop()
	}

	user := cfg.Neo4jUser
	if user == "" {
		user = "neo4j"
	}

	driver, err := neo4j.NewDriverWithContext(cfg.Neo4jURI, neo4j.BasicAuth(user, cfg.Neo4jPassword, ""), func(c *neo4j.Config) {
		c.MaxConnectionPoolSize = 50
		c.SocketConnectTimeout = 10 * time.Second
	})
	if err != nil {
		return nil, fmt.Errorf("neo4j: init driver: %w", err)
	}

	vctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := driver.VerifyConnectivity(vctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("neo4j: verify connectivity: %w", err)
	}

	return &Neo4jStore{
		driver:   driver,
		database: cfg.Neo4jDatabase,
		log:      log.With("store", "neo4j"),
	}, nil
}

// GetPerson loads one person with notes and events
func (s *Neo4jStore) GetPerson(ctx context.Context, personID string) (*model.Person, error) {
	people, err := s.hydrate(ctx, []string{personID})
	if err != nil {
		return nil, err
	}
	if len(people) == 0 {
		return nil, ErrPersonNotFound
	}
	return &people[0], nil
}

func (s *Neo4jStore) FindParents(ctx context.Context, scopeID, personID string) ([]model.Person, error) {
	return s.find(ctx, "parents", `
MATCH (p:Person)-[:PARENT_OF]->(:Person {id: $id})
WHERE `+liveFilter+`
RETURN DISTINCT p.id AS id ORDER BY id`,
		map[string]any{"id": personID, "scope": scopeID})
}

func (s *Neo4jStore) FindChildren(ctx context.Context, scopeID, personID string) ([]model.Person, error) {
	return s.find(ctx, "children", `
MATCH (:Person {id: $id})-[:PARENT_OF]->(p:Person)
WHERE `+liveFilter+`
RETURN DISTINCT p.id AS id ORDER BY id`,
		map[string]any{"id": personID, "scope": scopeID})
}

func (s *Neo4jStore) FindSiblings(ctx context.Context, scopeID string, parentIDs []string, excludeID string) ([]model.Person, error) {
	if len(parentIDs) == 0 {
		return []model.Person{}, nil
	}
	return s.find(ctx, "siblings", `
MATCH (parent:Person)-[:PARENT_OF]->(p:Person)
WHERE parent.id IN $ids AND p.id <> $exclude AND `+liveFilter+`
RETURN DISTINCT p.id AS id ORDER BY id`,
		map[string]any{"ids": parentIDs, "exclude": excludeID, "scope": scopeID})
}

func (s *Neo4jStore) FindSpouses(ctx context.Context, scopeID, personID string) ([]model.Person, error) {
	return s.find(ctx, "spouses", `
MATCH (:Person {id: $id})-[:SPOUSE_OF]-(p:Person)
WHERE p.id <> $id AND `+liveFilter+`
RETURN DISTINCT p.id AS id ORDER BY id`,
		map[string]any{"id": personID, "scope": scopeID})
}

func (s *Neo4jStore) FindCoparents(ctx context.Context, scopeID string, childIDs []string, excludeID string) ([]model.Person, error) {
	if len(childIDs) == 0 {
		return []model.Person{}, nil
	}
	return s.find(ctx, "coparents", `
MATCH (p:Person)-[:PARENT_OF]->(c:Person)
WHERE c.id IN $ids AND p.id <> $exclude AND `+liveFilter+`
RETURN DISTINCT p.id AS id ORDER BY id`,
		map[string]any{"ids": childIDs, "exclude": excludeID, "scope": scopeID})
}

// SourceIDs returns the live citable ids for personID
func (s *Neo4jStore) SourceIDs(ctx context.Context, personID, scopeID string) (model.SourceIDSet, error) {
	return collectSourceIDs(ctx, s, personID, scopeID)
}

// SubmitSuggestion stores a pending (:Suggestion) linked to its person
func (s *Neo4jStore) SubmitSuggestion(ctx context.Context, sg *model.Suggestion) error {
	if err := prepareSuggestion(sg); err != nil {
		return err
	}

	sources := make([]any, len(sg.SourcesUsed))
	for i, src := range sg.SourcesUsed {
		sources[i] = src
	}
	props := map[string]any{
		"id":           sg.ID,
		"request_id":   sg.RequestID,
		"scope_id":     sg.ScopeID,
		"narrative":    sg.Narrative,
		"word_count":   int64(sg.WordCount),
		"confidence":   sg.Confidence,
		"sources_used": sources,
		"status":       string(sg.Status),
		"created_at":   sg.CreatedAt.UTC().Format(time.RFC3339Nano),
	}

	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
MATCH (p:Person {id: $person_id})
MERGE (s:Suggestion {id: $props.id})
SET s += $props
MERGE (p)-[:HAS_SUGGESTION]->(s)
`, map[string]any{"person_id": sg.PersonID, "props": props})
		if err != nil {
			return nil, err
		}
		summary, err := res.Consume(ctx)
		if err != nil {
			return nil, err
		}
		if summary.Counters().NodesCreated() == 0 && summary.Counters().PropertiesSet() == 0 {
			return nil, ErrPersonNotFound
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("neo4j: submit suggestion: %w", err)
	}
	return nil
}

// Import merges a fixture into the graph
func (s *Neo4jStore) Import(ctx context.Context, f *Fixture) error {
	people := make([]map[string]any, 0, len(f.People))
	notes := make([]map[string]any, 0)
	events := make([]map[string]any, 0)
	participations := make([]map[string]any, 0)

	for _, p := range f.People {
		people = append(people, map[string]any{
			"id":          p.ID,
			"scope_id":    p.ScopeID,
			"name":        p.Name,
			"gender":      p.Gender,
			"birth_date":  p.BirthDate,
			"death_date":  p.DeathDate,
			"birth_place": p.BirthPlace,
			"death_place": p.DeathPlace,
			"occupation":  p.Occupation,
			"biography":   p.Biography,
			"deleted_at":  formatTime(p.DeletedAt),
		})
		for _, n := range p.Notes {
			notes = append(notes, map[string]any{
				"person_id":  p.ID,
				"id":         n.ID,
				"title":      n.Title,
				"content":    n.Content,
				"created_at": n.CreatedAt.UTC().Format(time.RFC3339Nano),
				"deleted_at": formatTime(n.DeletedAt),
			})
		}
		for i, e := range p.Events {
			events = append(events, map[string]any{
				"person_id":   p.ID,
				"id":          e.ID,
				"title":       e.Title,
				"description": e.Description,
				"date":        e.Date,
				"place":       e.Place,
				"position":    int64(i),
				"deleted_at":  formatTime(e.DeletedAt),
			})
			for _, pid := range e.Participants {
				participations = append(participations, map[string]any{"event_id": e.ID, "person_id": pid})
			}
		}
	}

	var parentEdges, spouseEdges []map[string]any
	for _, r := range f.Relationships {
		edge := map[string]any{"from": r.From, "to": r.To}
		if r.Kind == KindSpouse {
			spouseEdges = append(spouseEdges, edge)
		} else {
			parentEdges = append(parentEdges, edge)
		}
	}

	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	for _, q := range []string{
		`CREATE CONSTRAINT person_id_unique IF NOT EXISTS FOR (p:Person) REQUIRE p.id IS UNIQUE`,
		`CREATE CONSTRAINT note_id_unique IF NOT EXISTS FOR (n:Note) REQUIRE n.id IS UNIQUE`,
		`CREATE CONSTRAINT event_id_unique IF NOT EXISTS FOR (e:Event) REQUIRE e.id IS UNIQUE`,
	} {
		if res, err := session.Run(ctx, q, nil); err != nil {
			s.log.Warn("neo4j schema init failed (continuing)", "error", err)
		} else {
			_, _ = res.Consume(ctx)
		}
	}

	steps := []struct {
		query string
		rows  []map[string]any
	}{
		{`UNWIND $rows AS row MERGE (p:Person {id: row.id}) SET p += row`, people},
		{`UNWIND $rows AS row
MATCH (p:Person {id: row.person_id})
MERGE (n:Note {id: row.id})
SET n.title = row.title, n.content = row.content, n.created_at = row.created_at, n.deleted_at = row.deleted_at
MERGE (p)-[:HAS_NOTE]->(n)`, notes},
		{`UNWIND $rows AS row
MATCH (p:Person {id: row.person_id})
MERGE (e:Event {id: row.id})
SET e.title = row.title, e.description = row.description, e.date = row.date,
    e.place = row.place, e.position = row.position, e.deleted_at = row.deleted_at
MERGE (p)-[:HAS_EVENT]->(e)`, events},
		{`UNWIND $rows AS row
MATCH (p:Person {id: row.person_id}), (e:Event {id: row.event_id})
MERGE (p)-[:PARTICIPATED_IN]->(e)`, participations},
		{`UNWIND $rows AS row
MATCH (a:Person {id: row.from}), (b:Person {id: row.to})
MERGE (a)-[:PARENT_OF]->(b)`, parentEdges},
		{`UNWIND $rows AS row
MATCH (a:Person {id: row.from}), (b:Person {id: row.to})
MERGE (a)-[:SPOUSE_OF]->(b)`, spouseEdges},
	}

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		for _, step := range steps {
			if len(step.rows) == 0 {
				continue
			}
			res, err := tx.Run(ctx, step.query, map[string]any{"rows": step.rows})
			if err != nil {
				return nil, err
			}
			if _, err := res.Consume(ctx); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("neo4j: import fixture: %w", err)
	}
	return nil
}

// Close closes the driver
func (s *Neo4jStore) Close(ctx context.Context) error {
	if s == nil || s.driver == nil {
		return nil
	}
	err := s.driver.Close(ctx)
	s.driver = nil
	return err
}

func (s *Neo4jStore) session(ctx context.Context, mode neo4j.AccessMode) neo4j.SessionWithContext {
	return s.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   mode,
		DatabaseName: s.database,
	})
}

// find runs an id query and hydrates the result
func (s *Neo4jStore) find(ctx context.Context, what, query string, params map[string]any) ([]model.Person, error) {
	session := s.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}
		records, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}
		ids := make([]string, 0, len(records))
		for _, rec := range records {
			if v, ok := rec.Get("id"); ok {
				if id, ok := v.(string); ok {
					ids = append(ids, id)
				}
			}
		}
		return ids, nil
	})
	if err != nil {
		return nil, fmt.Errorf("neo4j: find %s: %w", what, err)
	}
	return s.hydrate(ctx, out.([]string))
}

// hydrate loads people with notes and events, preserving ids order
func (s *Neo4jStore) hydrate(ctx context.Context, ids []string) ([]model.Person, error) {
	if len(ids) == 0 {
		return []model.Person{}, nil
	}

	session := s.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, hydrateQuery, map[string]any{"ids": ids})
		if err != nil {
			return nil, err
		}
		records, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}

		byID := make(map[string]model.Person, len(records))
		for _, rec := range records {
			p := decodePersonRecord(rec.AsMap())
			byID[p.ID] = p
		}

		people := make([]model.Person, 0, len(ids))
		for _, id := range ids {
			if p, ok := byID[id]; ok {
				people = append(people, p)
			}
		}
		return people, nil
	})
	if err != nil {
		return nil, fmt.Errorf("neo4j: load people: %w", err)
	}
	return out.([]model.Person), nil
}

// decodePersonRecord converts a {person, notes, events} row
func decodePersonRecord(row map[string]any) model.Person {
	props, _ := row["person"].(map[string]any)
	p := model.Person{
		ID:         stringProp(props, "id"),
		ScopeID:    stringProp(props, "scope_id"),
		Name:       stringProp(props, "name"),
		Gender:     stringProp(props, "gender"),
		BirthDate:  stringProp(props, "birth_date"),
		DeathDate:  stringProp(props, "death_date"),
		BirthPlace: stringProp(props, "birth_place"),
		DeathPlace: stringProp(props, "death_place"),
		Occupation: stringProp(props, "occupation"),
		Biography:  stringProp(props, "biography"),
		DeletedAt:  timeProp(props, "deleted_at"),
	}

	notes, _ := row["notes"].([]any)
	for _, raw := range notes {
		m, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		n := model.Note{
			ID:        stringProp(m, "id"),
			PersonID:  p.ID,
			Title:     stringProp(m, "title"),
			Content:   stringProp(m, "content"),
			DeletedAt: timeProp(m, "deleted_at"),
		}
		if t := timeProp(m, "created_at"); t != nil {
			n.CreatedAt = *t
		}
		p.Notes = append(p.Notes, n)
	}

	events, _ := row["events"].([]any)
	for _, raw := range events {
		m, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		e := model.Event{
			ID:          stringProp(m, "id"),
			Title:       stringProp(m, "title"),
			Description: stringProp(m, "description"),
			Date:        stringProp(m, "date"),
			Place:       stringProp(m, "place"),
			DeletedAt:   timeProp(m, "deleted_at"),
		}
		if parts, ok := m["participants"].([]any); ok {
			for _, v := range parts {
				if id, ok := v.(string); ok {
					e.Participants = append(e.Participants, id)
				}
			}
		}
		p.Events = append(p.Events, e)
	}
	return p
}

func stringProp(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

// timeProp accepts RFC 3339 strings or driver temporal values
func timeProp(m map[string]any, key string) *time.Time {
	switch v := m[key].(type) {
	case string:
		if v == "" {
			return nil
		}
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return nil
		}
		return &t
	case time.Time:
		return &v
	}
	return nil
}

// formatTime returns nil for nil so the property is removed
func formatTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}
