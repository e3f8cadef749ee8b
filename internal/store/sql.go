package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormLogger "gorm.io/gorm/logger"

	"github.com/ppiankov/kinstory/internal/logging"
	"github.com/ppiankov/kinstory/internal/model"
)

type personRecord struct {
	ID         string `gorm:"primaryKey;size:64"`
	ScopeID    string `gorm:"index;size:64;not null"`
	Name       string
	Gender     string
	BirthDate  string
	DeathDate  string
	BirthPlace string
	DeathPlace string
	Occupation string
	Biography  string     `gorm:"type:text"`
	DeletedAt  *time.Time `gorm:"index"`
}

func (personRecord) TableName() string { return "people" }

type relationshipRecord struct {
	ID     uint   `gorm:"primaryKey"`
	Kind   string `gorm:"index;size:16;not null"`
	FromID string `gorm:"index;size:64;not null"`
	ToID   string `gorm:"index;size:64;not null"`
}

func (relationshipRecord) TableName() string { return "relationships" }

type noteRecord struct {
	ID        string `gorm:"primaryKey;size:64"`
	PersonID  string `gorm:"index;size:64;not null"`
	Title     string
	Content   string `gorm:"type:text"`
	CreatedAt time.Time
	DeletedAt *time.Time
}

func (noteRecord) TableName() string { return "notes" }

type eventRecord struct {
	ID          string `gorm:"primaryKey;size:64"`
	PersonID    string `gorm:"index;size:64;not null"` // Owner
	Title       string
	Description string `gorm:"type:text"`
	Date        string
	Place       string
	Position    int
	DeletedAt   *time.Time
}

func (eventRecord) TableName() string { return "events" }

type eventParticipantRecord struct {
	EventID  string `gorm:"primaryKey;size:64"`
	PersonID string `gorm:"primaryKey;size:64;index"`
}

func (eventParticipantRecord) TableName() string { return "event_participants" }

type suggestionRecord struct {
	ID          string `gorm:"primaryKey;size:64"`
	RequestID   string `gorm:"size:64"`
	PersonID    string `gorm:"index;size:64;not null"`
	ScopeID     string `gorm:"index;size:64"`
	Narrative   string `gorm:"type:text"`
	WordCount   int
	Confidence  float64
	SourcesUsed string `gorm:"type:text"` // JSON array
	Status      string `gorm:"size:16;index"`
	CreatedAt   time.Time
}

func (suggestionRecord) TableName() string { return "suggestions" }

// SQLStore is a Graph backed by a relational database through gorm
type SQLStore struct {
	db  *gorm.DB
	log *logging.Logger
}

// OpenSQL connects to postgres or sqlite according to cfg
func OpenSQL(cfg model.StoreConfig, log *logging.Logger) (*SQLStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("store.dsn is required for driver %s", cfg.Driver)
	}

	var dialector gorm.Dialector
	switch strings.ToLower(cfg.Driver) {
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported SQL driver: %s", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormLogger.Default.LogMode(gormLogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.Driver, err)
	}

	return NewSQLStore(db, cfg.AutoMigrate, log)
}

// NewSQLStore wraps an open gorm handle, optionally migrating the schema
func NewSQLStore(db *gorm.DB, migrate bool, log *logging.Logger) (*SQLStore, error) {
	if log == nil {
		log = logging.Nop()
	}
	s := &SQLStore{db: db, log: log.With("store", "sql")}

	if migrate {
		if err := db.AutoMigrate(
			&personRecord{},
			&relationshipRecord{},
			&noteRecord{},
			&eventRecord{},
			&eventParticipantRecord{},
			&suggestionRecord{},
		); err != nil {
			return nil, fmt.Errorf("auto-migrate: %w", err)
		}
	}
	return s, nil
}

// GetPerson loads one person with notes and events
func (s *SQLStore) GetPerson(ctx context.Context, personID string) (*model.Person, error) {
	var rec personRecord
	err := s.db.WithContext(ctx).Where("id = ?", personID).Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPersonNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get person %s: %w", personID, err)
	}

	people, err := s.hydrate(ctx, []personRecord{rec})
	if err != nil {
		return nil, err
	}
	return &people[0], nil
}

func (s *SQLStore) FindParents(ctx context.Context, scopeID, personID string) ([]model.Person, error) {
	return s.find(ctx, "parents",
		s.scoped(ctx, scopeID).
			Joins("JOIN relationships r ON r.from_id = people.id").
			Where("r.kind = ? AND r.to_id = ?", string(KindParent), personID))
}

func (s *SQLStore) FindChildren(ctx context.Context, scopeID, personID string) ([]model.Person, error) {
	return s.find(ctx, "children",
		s.scoped(ctx, scopeID).
			Joins("JOIN relationships r ON r.to_id = people.id").
			Where("r.kind = ? AND r.from_id = ?", string(KindParent), personID))
}

func (s *SQLStore) FindSiblings(ctx context.Context, scopeID string, parentIDs []string, excludeID string) ([]model.Person, error) {
	if len(parentIDs) == 0 {
		return []model.Person{}, nil
	}
	return s.find(ctx, "siblings",
		s.scoped(ctx, scopeID).
			Joins("JOIN relationships r ON r.to_id = people.id").
			Where("r.kind = ? AND r.from_id IN ? AND people.id <> ?", string(KindParent), parentIDs, excludeID))
}

func (s *SQLStore) FindSpouses(ctx context.Context, scopeID, personID string) ([]model.Person, error) {
	return s.find(ctx, "spouses",
		s.scoped(ctx, scopeID).
			Joins("JOIN relationships r ON (r.from_id = people.id OR r.to_id = people.id)").
			Where("r.kind = ? AND (r.from_id = ? OR r.to_id = ?) AND people.id <> ?",
				string(KindSpouse), personID, personID, personID))
}

func (s *SQLStore) FindCoparents(ctx context.Context, scopeID string, childIDs []string, excludeID string) ([]model.Person, error) {
	if len(childIDs) == 0 {
		return []model.Person{}, nil
	}
	return s.find(ctx, "coparents",
		s.scoped(ctx, scopeID).
			Joins("JOIN relationships r ON r.from_id = people.id").
			Where("r.kind = ? AND r.to_id IN ? AND people.id <> ?", string(KindParent), childIDs, excludeID))
}

// SourceIDs returns the live citable ids for personID
func (s *SQLStore) SourceIDs(ctx context.Context, personID, scopeID string) (model.SourceIDSet, error) {
	return collectSourceIDs(ctx, s, personID, scopeID)
}

// SubmitSuggestion inserts a pending suggestion row
func (s *SQLStore) SubmitSuggestion(ctx context.Context, sg *model.Suggestion) error {
	if err := prepareSuggestion(sg); err != nil {
		return err
	}
	sources, err := json.Marshal(sg.SourcesUsed)
	if err != nil {
		return fmt.Errorf("marshal sources: %w", err)
	}

	rec := suggestionRecord{
		ID:          sg.ID,
		RequestID:   sg.RequestID,
		PersonID:    sg.PersonID,
		ScopeID:     sg.ScopeID,
		Narrative:   sg.Narrative,
		WordCount:   sg.WordCount,
		Confidence:  sg.Confidence,
		SourcesUsed: string(sources),
		Status:      string(sg.Status),
		CreatedAt:   sg.CreatedAt,
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("insert suggestion: %w", err)
	}
	s.log.Debug("suggestion stored", "suggestion", sg.ID, "person", sg.PersonID)
	return nil
}

// Suggestions lists stored suggestions for personID, oldest first
func (s *SQLStore) Suggestions(ctx context.Context, personID string) ([]model.Suggestion, error) {
	var recs []suggestionRecord
	if err := s.db.WithContext(ctx).Where("person_id = ?", personID).Order("created_at").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("list suggestions: %w", err)
	}

	out := make([]model.Suggestion, 0, len(recs))
	for _, r := range recs {
		var sources []string
		if r.SourcesUsed != "" {
			if err := json.Unmarshal([]byte(r.SourcesUsed), &sources); err != nil {
				return nil, fmt.Errorf("decode sources for %s: %w", r.ID, err)
			}
		}
		out = append(out, model.Suggestion{
			ID:          r.ID,
			RequestID:   r.RequestID,
			PersonID:    r.PersonID,
			ScopeID:     r.ScopeID,
			Narrative:   r.Narrative,
			WordCount:   r.WordCount,
			Confidence:  r.Confidence,
			SourcesUsed: sources,
			Status:      model.SuggestionStatus(r.Status),
			CreatedAt:   r.CreatedAt,
		})
	}
	return out, nil
}

// Import writes a fixture in one transaction; existing rows are replaced
func (s *SQLStore) Import(ctx context.Context, f *Fixture) error {
	upsert := clause.OnConflict{UpdateAll: true}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, p := range f.People {
			rec := personRecord{
				ID:         p.ID,
				ScopeID:    p.ScopeID,
				Name:       p.Name,
				Gender:     p.Gender,
				BirthDate:  p.BirthDate,
				DeathDate:  p.DeathDate,
				BirthPlace: p.BirthPlace,
				DeathPlace: p.DeathPlace,
				Occupation: p.Occupation,
				Biography:  p.Biography,
				DeletedAt:  p.DeletedAt,
			}
			if err := tx.Clauses(upsert).Create(&rec).Error; err != nil {
				return fmt.Errorf("save person %s: %w", p.ID, err)
			}

			for _, n := range p.Notes {
				note := noteRecord{
					ID:        n.ID,
					PersonID:  p.ID,
					Title:     n.Title,
					Content:   n.Content,
					CreatedAt: n.CreatedAt,
					DeletedAt: n.DeletedAt,
				}
				if err := tx.Clauses(upsert).Create(&note).Error; err != nil {
					return fmt.Errorf("save note %s: %w", n.ID, err)
				}
			}

			for i, e := range p.Events {
				ev := eventRecord{
					ID:          e.ID,
					PersonID:    p.ID,
					Title:       e.Title,
					Description: e.Description,
					Date:        e.Date,
					Place:       e.Place,
					Position:    i,
					DeletedAt:   e.DeletedAt,
				}
				if err := tx.Clauses(upsert).Create(&ev).Error; err != nil {
					return fmt.Errorf("save event %s: %w", e.ID, err)
				}
				for _, pid := range e.Participants {
					link := eventParticipantRecord{EventID: e.ID, PersonID: pid}
					if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&link).Error; err != nil {
						return fmt.Errorf("save participant %s/%s: %w", e.ID, pid, err)
					}
				}
			}
		}

		for _, r := range f.Relationships {
			var count int64
			if err := tx.Model(&relationshipRecord{}).
				Where("kind = ? AND from_id = ? AND to_id = ?", string(r.Kind), r.From, r.To).
				Count(&count).Error; err != nil {
				return fmt.Errorf("check relationship: %w", err)
			}
			if count > 0 {
				continue
			}
			rec := relationshipRecord{Kind: string(r.Kind), FromID: r.From, ToID: r.To}
			if err := tx.Create(&rec).Error; err != nil {
				return fmt.Errorf("save relationship %s->%s: %w", r.From, r.To, err)
			}
		}
		return nil
	})
}

// Close releases the connection pool
func (s *SQLStore) Close(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// scoped starts a people query restricted to live rows of scopeID
func (s *SQLStore) scoped(ctx context.Context, scopeID string) *gorm.DB {
	return s.db.WithContext(ctx).
		Model(&personRecord{}).
		Select("DISTINCT people.*").
		Where("people.scope_id = ? AND people.deleted_at IS NULL", scopeID).
		Order("people.id")
}

func (s *SQLStore) find(ctx context.Context, what string, q *gorm.DB) ([]model.Person, error) {
	var recs []personRecord
	if err := q.Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("find %s: %w", what, err)
	}
	return s.hydrate(ctx, recs)
}

// hydrate attaches notes, owned events and participated events
func (s *SQLStore) hydrate(ctx context.Context, recs []personRecord) ([]model.Person, error) {
	out := make([]model.Person, 0, len(recs))
	if len(recs) == 0 {
		return out, nil
	}

	ids := make([]string, len(recs))
	for i, r := range recs {
		ids[i] = r.ID
	}
	db := s.db.WithContext(ctx)

	var notes []noteRecord
	if err := db.Where("person_id IN ?", ids).Order("created_at DESC, id").Find(&notes).Error; err != nil {
		return nil, fmt.Errorf("load notes: %w", err)
	}

	var links []eventParticipantRecord
	if err := db.Where("person_id IN ?", ids).Find(&links).Error; err != nil {
		return nil, fmt.Errorf("load participations: %w", err)
	}
	linkedIDs := make([]string, 0, len(links))
	for _, l := range links {
		linkedIDs = append(linkedIDs, l.EventID)
	}

	var events []eventRecord
	q := db.Where("person_id IN ?", ids)
	if len(linkedIDs) > 0 {
		q = db.Where("person_id IN ? OR id IN ?", ids, linkedIDs)
	}
	if err := q.Order("position, id").Find(&events).Error; err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}

	eventIDs := make([]string, len(events))
	for i, e := range events {
		eventIDs[i] = e.ID
	}
	var parts []eventParticipantRecord
	if len(eventIDs) > 0 {
		if err := db.Where("event_id IN ?", eventIDs).Order("person_id").Find(&parts).Error; err != nil {
			return nil, fmt.Errorf("load participants: %w", err)
		}
	}
	participants := make(map[string][]string)
	for _, p := range parts {
		participants[p.EventID] = append(participants[p.EventID], p.PersonID)
	}

	notesBy := make(map[string][]model.Note)
	for _, n := range notes {
		notesBy[n.PersonID] = append(notesBy[n.PersonID], model.Note{
			ID:        n.ID,
			PersonID:  n.PersonID,
			Title:     n.Title,
			Content:   n.Content,
			CreatedAt: n.CreatedAt,
			DeletedAt: n.DeletedAt,
		})
	}

	eventByID := make(map[string]model.Event, len(events))
	ownedBy := make(map[string][]string)
	for _, e := range events {
		eventByID[e.ID] = model.Event{
			ID:           e.ID,
			Title:        e.Title,
			Description:  e.Description,
			Date:         e.Date,
			Place:        e.Place,
			Participants: participants[e.ID],
			DeletedAt:    e.DeletedAt,
		}
		ownedBy[e.PersonID] = append(ownedBy[e.PersonID], e.ID)
	}
	joinedBy := make(map[string][]string)
	for _, l := range links {
		joinedBy[l.PersonID] = append(joinedBy[l.PersonID], l.EventID)
	}

	for _, r := range recs {
		p := model.Person{
			ID:         r.ID,
			ScopeID:    r.ScopeID,
			Name:       r.Name,
			Gender:     r.Gender,
			BirthDate:  r.BirthDate,
			DeathDate:  r.DeathDate,
			BirthPlace: r.BirthPlace,
			DeathPlace: r.DeathPlace,
			Occupation: r.Occupation,
			Biography:  r.Biography,
			DeletedAt:  r.DeletedAt,
			Notes:      notesBy[r.ID],
		}

		seen := make(map[string]bool)
		for _, id := range append(ownedBy[r.ID], joinedBy[r.ID]...) {
			e, ok := eventByID[id]
			if !ok || seen[id] {
				continue
			}
			seen[id] = true
			p.Events = append(p.Events, e)
		}
		out = append(out, p)
	}
	return out, nil
}
