package citation

import (
	"fmt"
	"strings"

	"github.com/ppiankov/kinstory/internal/metrics"
	"github.com/ppiankov/kinstory/internal/model"
)

// Validation is the live status of one citation in stored text
type Validation struct {
	Citation model.ParsedCitation `json:"citation"`
	Valid    bool                 `json:"valid"`
	Reason   string               `json:"reason,omitempty"`
}

// Validate checks every citation in text against the ids that exist now.
// Records may have been deleted since the text was generated.
func Validate(text string, live model.SourceIDSet) []Validation {
	citations := ParseCitations(text)
	out := make([]Validation, 0, len(citations))
	for _, c := range citations {
		v := Validation{Citation: c, Valid: live.Contains(c.Type, c.ID)}
		if !v.Valid {
			v.Reason = fmt.Sprintf("%s %s no longer exists", targetNoun(c.Type), c.ID)
		}
		out = append(out, v)
	}
	return out
}

// RepairStale rewrites citations whose ids are no longer live to their
// bare label. Valid citations are left untouched.
func RepairStale(text string, live model.SourceIDSet) (string, []Repair) {
	var repairs []Repair
	for _, v := range Validate(text, live) {
		if v.Valid {
			continue
		}
		repairs = append(repairs, Repair{
			Kind:        KindStale,
			Original:    v.Citation.Raw,
			Replacement: strings.TrimSpace(v.Citation.Label),
			Start:       v.Citation.Start,
		})
	}
	if len(repairs) == 0 {
		return text, nil
	}
	for range repairs {
		metrics.CitationRepairs.WithLabelValues(string(KindStale)).Inc()
	}
	return applyRight(text, repairs), repairs
}

func targetNoun(t model.CitationType) string {
	switch t {
	case model.CitationNote:
		return "note"
	case model.CitationEvent:
		return "event"
	default:
		return "person"
	}
}
