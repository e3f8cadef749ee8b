package score

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/kinstory/internal/model"
)

func TestScorer_Calculate_Empty(t *testing.T) {
	conf, signals := NewScorer().Calculate(Inputs{})
	assert.Equal(t, 0.0, conf)
	require.Len(t, signals, 8)
	for _, s := range signals {
		assert.Zero(t, s.Weight, s.Name)
	}
}

func TestScorer_Calculate_Full(t *testing.T) {
	in := Inputs{
		Person: model.Person{
			BirthDate:  "1820",
			DeathDate:  "1889",
			BirthPlace: "Ohio",
			DeathPlace: "Iowa",
			Gender:     "male",
		},
		NoteCount:  2,
		EventCount: 1,
		FactCount:  3,
	}
	conf, _ := NewScorer().Calculate(in)
	// 0.15+0.05+0.10+0.05+0.05 + 2*0.04 + 1*0.04 + 3*0.02
	assert.InDelta(t, 0.58, conf, 1e-9)
}

func TestScorer_Calculate_Caps(t *testing.T) {
	conf, signals := NewScorer().Calculate(Inputs{NoteCount: 50, EventCount: 50, FactCount: 50})
	assert.InDelta(t, 0.2+0.2+0.2, conf, 1e-9)

	byName := map[string]model.Signal{}
	for _, s := range signals {
		byName[s.Name] = s
	}
	assert.Equal(t, 5, byName["notes"].Data["scored"])
	assert.Equal(t, 50, byName["notes"].Data["count"])
}

func TestScorer_Calculate_BoundedAndMonotonic(t *testing.T) {
	scorer := NewScorer()
	person := model.Person{}
	prev := 0.0

	steps := []func(in *Inputs){
		func(in *Inputs) { in.Person.BirthDate = "1820" },
		func(in *Inputs) { in.NoteCount++ },
		func(in *Inputs) { in.Person.Gender = "female" },
		func(in *Inputs) { in.FactCount += 4 },
		func(in *Inputs) { in.EventCount += 9 },
		func(in *Inputs) { in.Person.DeathPlace = "Iowa" },
		func(in *Inputs) { in.NoteCount += 100 },
		func(in *Inputs) { in.Person.BirthPlace = "Ohio" },
		func(in *Inputs) { in.Person.DeathDate = "1889" },
		func(in *Inputs) { in.FactCount += 100 },
	}

	in := Inputs{Person: person}
	for i, step := range steps {
		step(&in)
		conf, _ := scorer.Calculate(in)
		assert.GreaterOrEqual(t, conf, prev, "step %d", i)
		assert.GreaterOrEqual(t, conf, 0.0)
		assert.LessOrEqual(t, conf, 1.0)
		prev = conf
	}
	assert.InDelta(t, 1.0, prev, 1e-9, "everything known reaches the maximum")
}

func TestScorer_Calculate_NegativeCounts(t *testing.T) {
	conf, _ := NewScorer().Calculate(Inputs{NoteCount: -3})
	assert.Equal(t, 0.0, conf)
}
