package mining

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/ppiankov/kinstory/internal/model"
)

var (
	// ErrNoJSON means the response contained no balanced JSON object
	ErrNoJSON = errors.New("no JSON object in response")

	// ErrInvalidSchema means the object did not match the expected shape
	ErrInvalidSchema = errors.New("response does not match schema")
)

// minedResponse is the object the model is asked to return. Identity
// fields are informational only; callers use the resolver's values.
type minedResponse struct {
	RelationshipType string               `json:"relationshipType"`
	PersonID         string               `json:"personId"`
	PersonName       string               `json:"personName"`
	RelevantFacts    []model.RelevantFact `json:"relevantFacts" validate:"required,dive"`
}

// ExtractJSONObject returns the first balanced {...} substring of text.
// Braces inside JSON strings (including escaped quotes) are ignored.
func ExtractJSONObject(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	for start >= 0 {
		if end, ok := matchBrace(text, start); ok {
			return text[start : end+1], true
		}
		next := strings.IndexByte(text[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return "", false
}

// matchBrace finds the index of the brace closing the one at open
func matchBrace(text string, open int) (int, bool) {
	depth := 0
	inString := false
	escaped := false

	for i := open; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

// parseFacts turns raw model output into validated facts
func parseFacts(v *validator.Validate, text string) ([]model.RelevantFact, error) {
	raw, ok := ExtractJSONObject(text)
	if !ok {
		return nil, ErrNoJSON
	}

	var resp minedResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSchema, err)
	}
	if err := v.Struct(resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSchema, err)
	}

	facts := make([]model.RelevantFact, 0, len(resp.RelevantFacts))
	for _, f := range resp.RelevantFacts {
		f.Fact = strings.TrimSpace(f.Fact)
		f.RelevanceReason = strings.TrimSpace(f.RelevanceReason)
		f.SourceID = strings.TrimSpace(f.SourceID)
		if f.Fact == "" || f.RelevanceReason == "" {
			return nil, fmt.Errorf("%w: blank fact or reason", ErrInvalidSchema)
		}
		facts = append(facts, f)
	}
	return facts, nil
}
