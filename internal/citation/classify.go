package citation

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/ppiankov/kinstory/internal/model"
)

// Kind is the classification of a bracketed token
type Kind string

const (
	KindValid       Kind = "valid"       // Grammar match with an admissible id
	KindInvalidID   Kind = "invalid_id"  // Grammar match, id not admissible
	KindMalformed   Kind = "malformed"   // Looks like a botched citation
	KindPassthrough Kind = "passthrough" // Ordinary bracketed prose
	KindStale       Kind = "stale"       // Was valid, record since deleted
)

// MalformedMaxRunes is the length below which unparseable content is
// treated as a botched citation
const MalformedMaxRunes = 20

var (
	tokenRe     = regexp.MustCompile(`\[([^\[\]]+)\]`)
	noteEventRe = regexp.MustCompile(`(?s)^(Note|Event):([^:]+):(.+)$`)
	biographyRe = regexp.MustCompile(`(?s)^Biography:([^:]+):([^:]+):(.+)$`)
)

// categoryWords are record categories a model tends to emit as bare tags
var categoryWords = []string{
	"Birth", "Death", "Marriage", "Note", "Event", "Biography",
	"Residence", "Occupation", "Burial", "Baptism", "Christening", "Census",
	"Immigration", "Emigration", "Military", "Education", "Divorce", "Source",
}

// Token is one innermost [...] span. Start and End are byte offsets of
// the brackets, End exclusive.
type Token struct {
	Raw     string
	Content string
	Start   int
	End     int
}

// Tokenize finds innermost bracket spans in text
func Tokenize(text string) []Token {
	matches := tokenRe.FindAllStringSubmatchIndex(text, -1)
	tokens := make([]Token, 0, len(matches))
	for _, m := range matches {
		tokens = append(tokens, Token{
			Raw:     text[m[0]:m[1]],
			Content: text[m[2]:m[3]],
			Start:   m[0],
			End:     m[1],
		})
	}
	return tokens
}

// ParseContent applies the strict citation grammar to bracket content
func ParseContent(content string) (model.ParsedCitation, bool) {
	if m := noteEventRe.FindStringSubmatch(content); m != nil {
		return model.ParsedCitation{
			Type:  model.CitationType(m[1]),
			ID:    m[2],
			Label: m[3],
		}, true
	}
	if m := biographyRe.FindStringSubmatch(content); m != nil {
		return model.ParsedCitation{
			Type:         model.CitationBiography,
			ID:           m[1],
			Relationship: m[2],
			Label:        m[3],
		}, true
	}
	return model.ParsedCitation{}, false
}

// IsMalformed reports whether unparseable content looks like a botched
// citation
func IsMalformed(content string) bool {
	c := strings.TrimSpace(content)

	for _, word := range categoryWords {
		if strings.EqualFold(c, word) {
			return true
		}
		if len(c) > len(word) && strings.EqualFold(c[:len(word)], word) && c[len(word)] == ':' {
			return true
		}
	}
	return utf8.RuneCountInString(c) < MalformedMaxRunes
}

// Classification is the verdict for one token
type Classification struct {
	Kind     Kind
	Citation *model.ParsedCitation // Set for valid and invalid-id tokens
}

// Classify runs the rules in order: grammar, id check, malformed heuristic
func Classify(tok Token, admissible model.SourceIDSet) Classification {
	if c, ok := ParseContent(tok.Content); ok {
		c.Raw, c.Start, c.End = tok.Raw, tok.Start, tok.End
		if admissible.Contains(c.Type, c.ID) {
			return Classification{Kind: KindValid, Citation: &c}
		}
		return Classification{Kind: KindInvalidID, Citation: &c}
	}
	if IsMalformed(tok.Content) {
		return Classification{Kind: KindMalformed}
	}
	return Classification{Kind: KindPassthrough}
}
