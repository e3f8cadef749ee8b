package biography

import (
	"fmt"
	"strings"

	"github.com/ppiankov/kinstory/internal/model"
	"github.com/ppiankov/kinstory/internal/util"
)

const systemPrompt = `You are a family historian writing short, factual biographies from archival records. ` +
	`You never invent names, dates, places or events. You cite sources using only the tags you are given.`

// promptInput is everything rendered into the generation prompt
type promptInput struct {
	person   model.Person
	notes    []model.Note
	events   []model.Event
	related  []model.RelatedContext
	minWords int
	maxWords int
}

func buildPrompt(in promptInput) string {
	var b strings.Builder
	p := in.person

	fmt.Fprintf(&b, "Write a biography of %s.\n\nKNOWN DETAILS:\n", p.Name)
	writeDetail(&b, "Name", p.Name)
	writeDetail(&b, "Gender", p.Gender)
	writeDetail(&b, "Born", joinNonEmpty(p.BirthDate, p.BirthPlace))
	writeDetail(&b, "Died", joinNonEmpty(p.DeathDate, p.DeathPlace))
	writeDetail(&b, "Occupation", p.Occupation)

	if len(in.notes) > 0 {
		b.WriteString("\nRESEARCH NOTES:\n")
		for _, n := range in.notes {
			fmt.Fprintf(&b, "%s %s\n", NoteTag(n), util.PlainText(n.Content))
		}
	}

	if len(in.events) > 0 {
		b.WriteString("\nLIFE EVENTS:\n")
		for _, e := range in.events {
			fmt.Fprintf(&b, "%s %s", EventTag(e), e.Title)
			if d := joinNonEmpty(e.Date, e.Place); d != "" {
				fmt.Fprintf(&b, " (%s)", d)
			}
			if desc := util.PlainText(e.Description); desc != "" {
				fmt.Fprintf(&b, ": %s", desc)
			}
			b.WriteString("\n")
		}
	}

	if len(in.related) > 0 {
		b.WriteString("\nFACTS FROM RELATIVES' RECORDS:\n")
		for _, rc := range in.related {
			for _, f := range rc.Facts {
				fmt.Fprintf(&b, "%s %s (from %s, %s; %s)\n", FactTag(rc, f), f.Fact, rc.PersonName, rc.RelationshipType, f.RelevanceReason)
			}
		}
	}

	fmt.Fprintf(&b, `
RULES:
- Use only the information above. Do not fabricate people, dates, places or events.
- Write in the third person and the past tense.
- Write between %d and %d words.
- After each statement drawn from a source, append that source's tag exactly as written above.
- Never create tags that are not listed above. If no tag applies, write no tag.
- Return only the biography text.
`, in.minWords, in.maxWords)

	return b.String()
}

func writeDetail(b *strings.Builder, name, value string) {
	if strings.TrimSpace(value) != "" {
		fmt.Fprintf(b, "- %s: %s\n", name, value)
	}
}

func joinNonEmpty(parts ...string) string {
	var out []string
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return strings.Join(out, ", ")
}
