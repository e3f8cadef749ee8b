package citation

import (
	"sort"

	"github.com/ppiankov/kinstory/internal/metrics"
	"github.com/ppiankov/kinstory/internal/model"
)

// Repair records one rewritten token. Start is the byte offset of the
// token in the text the pass ran over.
type Repair struct {
	Kind        Kind   `json:"kind"`
	Original    string `json:"original"`
	Replacement string `json:"replacement"`
	Start       int    `json:"start"`
}

// Result is the post-processed narrative
type Result struct {
	Text      string                 `json:"text"`
	Citations []model.ParsedCitation `json:"citations"`
	Segments  []model.TextSegment    `json:"segments"`
	Repairs   []Repair               `json:"repairs,omitempty"`
}

// Process repairs citations in raw narrative text against the admissible
// id set, then re-parses and segments the result. Passes repeat until no
// token changes, so running Process on its own output is a no-op.
func Process(raw string, admissible model.SourceIDSet) Result {
	text := raw
	var repairs []Repair

	// Every repair removes one bracket pair, so this terminates
	for {
		next, applied := repairPass(text, admissible)
		if len(applied) == 0 {
			break
		}
		repairs = append(repairs, applied...)
		text = next
	}

	for _, r := range repairs {
		metrics.CitationRepairs.WithLabelValues(string(r.Kind)).Inc()
	}

	citations := ParseCitations(text)
	return Result{
		Text:      text,
		Citations: citations,
		Segments:  Segment(text, citations),
		Repairs:   repairs,
	}
}

func repairPass(text string, admissible model.SourceIDSet) (string, []Repair) {
	var repairs []Repair
	for _, tok := range Tokenize(text) {
		cls := Classify(tok, admissible)
		var replacement string
		switch cls.Kind {
		case KindInvalidID:
			replacement = "(" + string(cls.Citation.Type) + ": " + cls.Citation.Label + ")"
		case KindMalformed:
			replacement = "(" + tok.Content + ")"
		default:
			continue
		}
		repairs = append(repairs, Repair{
			Kind:        cls.Kind,
			Original:    tok.Raw,
			Replacement: replacement,
			Start:       tok.Start,
		})
	}
	return applyRight(text, repairs), repairs
}

// applyRight splices replacements from the highest offset down so earlier
// offsets stay valid
func applyRight(text string, repairs []Repair) string {
	ordered := make([]Repair, len(repairs))
	copy(ordered, repairs)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Start > ordered[j].Start })

	for _, r := range ordered {
		end := r.Start + len(r.Original)
		if r.Start < 0 || end > len(text) || text[r.Start:end] != r.Original {
			continue
		}
		text = text[:r.Start] + r.Replacement + text[end:]
	}
	return text
}

// ParseCitations returns the grammar-conformant citations in text, in
// order of appearance, with byte offsets
func ParseCitations(text string) []model.ParsedCitation {
	citations := make([]model.ParsedCitation, 0)
	for _, tok := range Tokenize(text) {
		c, ok := ParseContent(tok.Content)
		if !ok {
			continue
		}
		c.Raw, c.Start, c.End = tok.Raw, tok.Start, tok.End
		citations = append(citations, c)
	}
	return citations
}

// Segment splits text into alternating text and citation segments.
// Citations outside the text or overlapping an earlier one are skipped,
// so concatenating the segment contents always yields text.
func Segment(text string, citations []model.ParsedCitation) []model.TextSegment {
	ordered := make([]model.ParsedCitation, len(citations))
	copy(ordered, citations)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Start < ordered[j].Start })

	segments := make([]model.TextSegment, 0, 2*len(ordered)+1)
	cursor := 0
	for i := range ordered {
		c := ordered[i]
		if c.Start < cursor || c.End > len(text) || c.Start >= c.End {
			continue
		}
		if c.Start > cursor {
			segments = append(segments, model.TextSegment{Type: model.SegmentText, Content: text[cursor:c.Start]})
		}
		segments = append(segments, model.TextSegment{
			Type:     model.SegmentCitation,
			Content:  text[c.Start:c.End],
			Citation: &c,
		})
		cursor = c.End
	}
	if cursor < len(text) {
		segments = append(segments, model.TextSegment{Type: model.SegmentText, Content: text[cursor:]})
	}
	return segments
}
