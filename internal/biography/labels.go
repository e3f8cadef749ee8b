package biography

import (
	"fmt"
	"strings"

	"github.com/ppiankov/kinstory/internal/model"
	"github.com/ppiankov/kinstory/internal/util"
)

// MaxLabelRunes bounds citation labels
const MaxLabelRunes = 60

var labelReplacer = strings.NewReplacer("[", "", "]", "")

// SanitizeLabel makes s safe inside a citation tag
func SanitizeLabel(s string) string {
	s = strings.Join(strings.Fields(labelReplacer.Replace(s)), " ")
	return util.Truncate(s, MaxLabelRunes)
}

// CitableID reports whether id can appear verbatim inside a citation tag.
// Ids are used verbatim so every tag resolves to its record.
func CitableID(id string) bool {
	return strings.TrimSpace(id) != "" && !strings.ContainsAny(id, "[]:")
}

// NoteLabel is the human label for a note: its title, else its text
func NoteLabel(n model.Note) string {
	label := n.Title
	if strings.TrimSpace(label) == "" {
		label = util.PlainText(n.Content)
	}
	return orDefault(SanitizeLabel(label), "Note")
}

// EventLabel is the human label for an event
func EventLabel(e model.Event) string {
	return orDefault(SanitizeLabel(e.Title), "Event")
}

// NoteTag renders [Note:<id>:<label>]
func NoteTag(n model.Note) string {
	return fmt.Sprintf("[Note:%s:%s]", n.ID, NoteLabel(n))
}

// EventTag renders [Event:<id>:<label>]
func EventTag(e model.Event) string {
	return fmt.Sprintf("[Event:%s:%s]", e.ID, EventLabel(e))
}

// FactTag renders [Biography:<personId>:<relationshipType>:<factLabel>]
func FactTag(rc model.RelatedContext, f model.RelevantFact) string {
	return fmt.Sprintf("[Biography:%s:%s:%s]",
		rc.PersonID,
		rc.RelationshipType,
		orDefault(SanitizeLabel(f.Fact), "Fact"))
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
