package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/kinstory/internal/pipeline"
)

var (
	genScope     string
	genMaxLength int
	genOutJSON   string
	genOutMD     string
	genSubmit    bool
	genTimeout   time.Duration
	genNoFooter  bool
)

// generateCmd represents the generate command
var generateCmd = &cobra.Command{
	Use:   "generate <person-id>",
	Short: "Generate a cited biography draft for one person",
	Long: `Generate writes a draft biography for one person:
- Resolve parents, children, siblings, spouses and co-parents in the scope
- Mine each relative's records for facts about the person (at most 5 at once)
- Compose one narrative with inline citations
- Rewrite citations that do not resolve to plain text
- Score confidence from the material available

Example:
  kinstory generate p1 --scope tree-1
  kinstory generate p1 --scope tree-1 --max-length 300 --md john.md
  kinstory generate p1 --scope tree-1 --submit --llm-provider gemini`,
	Args: cobra.ExactArgs(1),
	RunE: runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)

	generateCmd.Flags().StringVar(&genScope, "scope", "", "scope (tree) the person belongs to")
	generateCmd.Flags().IntVar(&genMaxLength, "max-length", 0, "maximum words (default from config)")
	generateCmd.Flags().StringVar(&genOutJSON, "json", "-", "output JSON path (- for stdout, empty to skip)")
	generateCmd.Flags().StringVar(&genOutMD, "md", "", "output Markdown path (optional)")
	generateCmd.Flags().BoolVar(&genSubmit, "submit", false, "store the draft as a pending suggestion")
	generateCmd.Flags().DurationVar(&genTimeout, "timeout", 5*time.Minute, "overall generation timeout")
	generateCmd.Flags().BoolVar(&genNoFooter, "no-footer", false, "disable footer in Markdown output")
	_ = generateCmd.MarkFlagRequired("scope")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), genTimeout)
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close(context.Background()) }()

	if err := a.requireProvider(); err != nil {
		return err
	}

	maxLength := genMaxLength
	if maxLength <= 0 {
		maxLength = a.cfg.Generation.MaxLength
	}

	if verbose {
		fmt.Fprintf(os.Stderr, "Generating: %s in %s (max %d words)\n", args[0], genScope, maxLength)
		fmt.Fprintf(os.Stderr, "Timeout: %v\n\n", genTimeout)
	}

	bundle, err := a.generator.Generate(ctx, pipeline.Request{
		PersonID:  args[0],
		ScopeID:   genScope,
		MaxLength: maxLength,
		Submit:    genSubmit,
	})
	if err != nil {
		return fmt.Errorf("generate failed: %w", err)
	}

	renderer := pipeline.NewRenderer(!genNoFooter)
	if genOutJSON != "" {
		if err := renderer.RenderJSON(bundle, genOutJSON); err != nil {
			return fmt.Errorf("render JSON: %w", err)
		}
		if verbose && genOutJSON != "-" {
			fmt.Fprintf(os.Stderr, "✓ Wrote JSON: %s\n", genOutJSON)
		}
	}
	if genOutMD != "" {
		if err := renderer.RenderMarkdown(bundle, genOutMD); err != nil {
			return fmt.Errorf("render markdown: %w", err)
		}
		if verbose && genOutMD != "-" {
			fmt.Fprintf(os.Stderr, "✓ Wrote Markdown: %s\n", genOutMD)
		}
	}

	renderer.RenderSummary(os.Stderr, bundle)
	return nil
}
