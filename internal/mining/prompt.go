package mining

import (
	"fmt"
	"strings"

	"github.com/ppiankov/kinstory/internal/model"
)

const systemPrompt = `You are a careful genealogical researcher. You read records about one relative ` +
	`of a person and extract only facts that are directly relevant to that person. ` +
	`You never invent facts and you answer with a single JSON object and nothing else.`

// buildPrompt renders the extraction request for one relative
func buildPrompt(target model.Person, rel model.RelativeInfo) string {
	var b strings.Builder

	fmt.Fprintf(&b, "TARGET PERSON: %s (id %s)\n", target.Name, target.ID)
	if target.BirthDate != "" || target.BirthPlace != "" {
		fmt.Fprintf(&b, "Born: %s %s\n", target.BirthDate, target.BirthPlace)
	}
	if target.DeathDate != "" || target.DeathPlace != "" {
		fmt.Fprintf(&b, "Died: %s %s\n", target.DeathDate, target.DeathPlace)
	}

	fmt.Fprintf(&b, "\nRELATIVE: %s (id %s), the target's %s\n", rel.PersonName, rel.PersonID, rel.RelationshipType)

	if bio := strings.TrimSpace(rel.Biography); bio != "" {
		fmt.Fprintf(&b, "\nBIOGRAPHY OF THE RELATIVE:\n%s\n", bio)
	}

	if len(rel.Notes) > 0 {
		b.WriteString("\nNOTES:\n")
		for _, n := range rel.Notes {
			fmt.Fprintf(&b, "- [note %s] %s: %s\n", n.NoteID, orUntitled(n.Title), n.Content)
		}
	}

	if len(rel.Events) > 0 {
		b.WriteString("\nEVENTS:\n")
		for _, e := range rel.Events {
			fmt.Fprintf(&b, "- [event %s] %s", e.EventID, orUntitled(e.Title))
			if e.Date != "" {
				fmt.Fprintf(&b, ", %s", e.Date)
			}
			if e.Place != "" {
				fmt.Fprintf(&b, ", %s", e.Place)
			}
			if e.Description != "" {
				fmt.Fprintf(&b, ": %s", e.Description)
			}
			b.WriteString("\n")
		}
	}

	fmt.Fprintf(&b, `
TASK:
Extract only facts from the records above that are directly relevant to %s.
For each fact explain why it is relevant to %s.
Attribute each fact to its source: "biography", or "note" with the note id, or "event" with the event id.
If nothing is relevant, return an empty relevantFacts array.

Respond with exactly one JSON object of this shape:
{
  "relationshipType": "%s",
  "personId": "%s",
  "personName": "%s",
  "relevantFacts": [
    {"fact": "...", "source": "biography|note|event", "sourceId": "...", "relevanceReason": "..."}
  ]
}
`, target.Name, target.Name, rel.RelationshipType, rel.PersonID, rel.PersonName)

	return b.String()
}

func orUntitled(s string) string {
	if s == "" {
		return "Untitled"
	}
	return s
}
