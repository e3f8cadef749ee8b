package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ppiankov/kinstory/internal/model"
)

// Renderer writes bundles as JSON, Markdown or a terse summary
type Renderer struct {
	includeFooter bool
}

// NewRenderer creates a renderer
func NewRenderer(includeFooter bool) *Renderer {
	return &Renderer{includeFooter: includeFooter}
}

// RenderJSON writes the bundle as indented JSON to path
func (r *Renderer) RenderJSON(b *Bundle, path string) error {
	return writeFile(path, func(w io.Writer) error { return r.WriteJSON(w, b) })
}

// RenderMarkdown writes the bundle as Markdown to path
func (r *Renderer) RenderMarkdown(b *Bundle, path string) error {
	return writeFile(path, func(w io.Writer) error { return r.WriteMarkdown(w, b) })
}

// WriteJSON encodes the bundle
func (r *Renderer) WriteJSON(w io.Writer, b *Bundle) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(b); err != nil {
		return fmt.Errorf("encode JSON: %w", err)
	}
	return nil
}

// WriteMarkdown renders the narrative with citations turned into numbered
// footnotes. A source cited twice shares one footnote.
func (r *Renderer) WriteMarkdown(w io.Writer, b *Bundle) error {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# %s\n\n", orUnknown(b.PersonName))

	numbers := make(map[string]int)
	var order []model.ParsedCitation
	for _, seg := range b.Segments {
		if seg.Type != model.SegmentCitation || seg.Citation == nil {
			sb.WriteString(seg.Content)
			continue
		}
		key := string(seg.Citation.Type) + ":" + seg.Citation.ID
		n, ok := numbers[key]
		if !ok {
			order = append(order, *seg.Citation)
			n = len(order)
			numbers[key] = n
		}
		fmt.Fprintf(&sb, "[^%d]", n)
	}
	sb.WriteString("\n")

	if len(order) > 0 {
		sb.WriteString("\n## Sources\n\n")
		for i, c := range order {
			fmt.Fprintf(&sb, "[^%d]: %s\n", i+1, r.footnote(b, c))
		}
	}

	sb.WriteString("\n---\n\n")
	fmt.Fprintf(&sb, "- Confidence: %.2f\n", b.Metadata.Confidence)
	fmt.Fprintf(&sb, "- Words: %d\n", b.Metadata.WordCount)
	if len(b.Metadata.SourcesUsed) > 0 {
		fmt.Fprintf(&sb, "- Sources used: %s\n", strings.Join(b.Metadata.SourcesUsed, ", "))
	}
	if len(b.Repairs) > 0 {
		fmt.Fprintf(&sb, "- Citations repaired: %d\n", len(b.Repairs))
	}

	if r.includeFooter {
		fmt.Fprintf(&sb, "\n*Generated %s", b.GeneratedAt.Format("2006-01-02 15:04 MST"))
		if b.Metadata.Model != "" {
			fmt.Fprintf(&sb, " by %s", b.Metadata.Model)
		}
		sb.WriteString(". Draft for human review.*\n")
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

func (r *Renderer) footnote(b *Bundle, c model.ParsedCitation) string {
	src, ok := b.Lookup(c.Type, c.ID)
	if !ok {
		return fmt.Sprintf("%s %s: %s", c.Type, c.ID, c.Label)
	}

	switch src.Type {
	case model.CitationNote:
		line := fmt.Sprintf("Note \"%s\"", src.Title)
		if src.Date != "" {
			line += ", " + src.Date
		}
		for _, l := range src.Links {
			line += fmt.Sprintf(" <%s>", l.URL)
		}
		return line
	case model.CitationEvent:
		parts := []string{fmt.Sprintf("Event \"%s\"", src.Title)}
		if src.Date != "" {
			parts = append(parts, src.Date)
		}
		if src.Place != "" {
			parts = append(parts, src.Place)
		}
		return strings.Join(parts, ", ")
	default:
		return fmt.Sprintf("Records of %s (%s): %s", src.Title, src.Relationship, c.Label)
	}
}

// RenderSummary prints a short human summary, normally to stderr
func (r *Renderer) RenderSummary(w io.Writer, b *Bundle) {
	fmt.Fprintf(w, "✓ Biography for %s (%s)\n", orUnknown(b.PersonName), b.PersonID)
	fmt.Fprintf(w, "  Words:       %d\n", b.Metadata.WordCount)
	fmt.Fprintf(w, "  Confidence:  %.2f\n", b.Metadata.Confidence)
	fmt.Fprintf(w, "  Citations:   %d (%d repaired)\n", len(b.Citations), len(b.Repairs))
	fmt.Fprintf(w, "  Relatives:   %d contributed facts\n", len(b.Related))
	if b.Metadata.Model != "" {
		fmt.Fprintf(w, "  Model:       %s/%s\n", b.Metadata.Provider, b.Metadata.Model)
	}
	if b.SuggestionID != "" {
		fmt.Fprintf(w, "  Suggestion:  %s (pending review)\n", b.SuggestionID)
	}
}

func writeFile(path string, write func(io.Writer) error) error {
	if path == "-" {
		return write(os.Stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return "Unknown person"
	}
	return s
}
