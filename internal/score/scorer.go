package score

import (
	"fmt"
	"math"
	"strings"

	"github.com/ppiankov/kinstory/internal/model"
)

// Component weights of the confidence score
const (
	WeightBirthDate  = 0.15
	WeightDeathDate  = 0.05
	WeightBirthPlace = 0.10
	WeightDeathPlace = 0.05
	WeightGender     = 0.05
	WeightPerNote    = 0.04
	WeightPerEvent   = 0.04
	WeightPerFact    = 0.02

	MaxScoredNotes  = 5
	MaxScoredEvents = 5
	MaxScoredFacts  = 10
)

// Inputs is the material a biography was generated from
type Inputs struct {
	Person     model.Person
	NoteCount  int
	EventCount int
	FactCount  int
}

// Scorer calculates biography confidence and explains each component
type Scorer struct{}

// NewScorer creates a new scorer
func NewScorer() *Scorer {
	return &Scorer{}
}

// Calculate returns a confidence in [0,1] and one signal per component.
// The score depends only on the inputs, never on the generated text.
func (s *Scorer) Calculate(in Inputs) (float64, []model.Signal) {
	signals := []model.Signal{
		s.field("birth_date", in.Person.BirthDate, WeightBirthDate),
		s.field("death_date", in.Person.DeathDate, WeightDeathDate),
		s.field("birth_place", in.Person.BirthPlace, WeightBirthPlace),
		s.field("death_place", in.Person.DeathPlace, WeightDeathPlace),
		s.field("gender", in.Person.Gender, WeightGender),
		s.counted("notes", in.NoteCount, MaxScoredNotes, WeightPerNote),
		s.counted("events", in.EventCount, MaxScoredEvents, WeightPerEvent),
		s.counted("related_facts", in.FactCount, MaxScoredFacts, WeightPerFact),
	}

	total := 0.0
	for _, sig := range signals {
		total += sig.Weight
	}
	return clamp(total), signals
}

// field scores a single known/unknown vital fact
func (s *Scorer) field(name, value string, weight float64) model.Signal {
	if strings.TrimSpace(value) == "" {
		return model.Signal{
			Name:        name,
			Weight:      0,
			Description: fmt.Sprintf("No %s recorded", strings.ReplaceAll(name, "_", " ")),
			Data:        map[string]interface{}{"max": weight},
		}
	}
	return model.Signal{
		Name:        name,
		Weight:      weight,
		Description: fmt.Sprintf("%s known", strings.ReplaceAll(name, "_", " ")),
		Data:        map[string]interface{}{"max": weight},
	}
}

// counted scores a capped per-item component
func (s *Scorer) counted(name string, count, max int, per float64) model.Signal {
	if count < 0 {
		count = 0
	}
	scored := count
	if scored > max {
		scored = max
	}
	weight := round(float64(scored) * per)

	return model.Signal{
		Name:        name,
		Weight:      weight,
		Description: fmt.Sprintf("%d %s used (%d scored)", count, strings.ReplaceAll(name, "_", " "), scored),
		Data: map[string]interface{}{
			"count":   count,
			"scored":  scored,
			"formula": fmt.Sprintf("min(count, %d) * %.2f", max, per),
		},
	}
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(1, round(v)))
}

// round removes float noise so equal inputs compare equal
func round(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
