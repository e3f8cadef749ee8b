package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/kinstory/internal/pipeline"
)

var (
	batchScope       string
	batchConcurrency int
	batchOutputDir   string
	batchTimeout     time.Duration
	batchMaxLength   int
	batchSubmit      bool
	batchNoFooter    bool
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Generate biographies for many people from a file",
	Long: `Batch generates drafts for every person id in a file:
- Read person ids from the input file (one per line, # comments allowed)
- Generate in parallel with a configurable worker count
- Each generation still mines at most 5 relatives at once
- Write a JSON and a Markdown file per person

Example:
  kinstory batch ids.txt --scope tree-1
  kinstory batch ids.txt --scope tree-1 --concurrency 2 --output-dir ./drafts
  kinstory batch ids.txt --scope tree-1 --submit --timeout 1h`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().StringVar(&batchScope, "scope", "", "scope (tree) the people belong to")
	batchCmd.Flags().IntVar(&batchConcurrency, "concurrency", 2, "number of people generated at once")
	batchCmd.Flags().StringVar(&batchOutputDir, "output-dir", "./kinstory-drafts", "output directory for drafts")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 30*time.Minute, "total timeout for batch processing")
	batchCmd.Flags().IntVar(&batchMaxLength, "max-length", 0, "maximum words per biography (default from config)")
	batchCmd.Flags().BoolVar(&batchSubmit, "submit", false, "store every draft as a pending suggestion")
	batchCmd.Flags().BoolVar(&batchNoFooter, "no-footer", false, "disable footer in Markdown drafts")
	_ = batchCmd.MarkFlagRequired("scope")
}

func runBatch(cmd *cobra.Command, args []string) error {
	file := args[0]
	ctx, cancel := context.WithTimeout(cmd.Context(), batchTimeout)
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close(context.Background()) }()

	if err := a.requireProvider(); err != nil {
		return err
	}

	maxLength := batchMaxLength
	if maxLength <= 0 {
		maxLength = a.cfg.Generation.MaxLength
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Kinstory Batch Generation\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Input file:   %s\n", file)
	fmt.Fprintf(os.Stderr, "  Scope:        %s\n", batchScope)
	fmt.Fprintf(os.Stderr, "  Workers:      %d\n", batchConcurrency)
	fmt.Fprintf(os.Stderr, "  Output dir:   %s\n", batchOutputDir)
	fmt.Fprintf(os.Stderr, "  Timeout:      %v\n", batchTimeout)
	fmt.Fprintf(os.Stderr, "  LLM:          %s\n", a.provider.Name())
	fmt.Fprintf(os.Stderr, "\n")

	if err := os.MkdirAll(batchOutputDir, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	processor := pipeline.NewBatchProcessor(a.generator, batchConcurrency)
	results, err := processor.ProcessFile(ctx, file, batchScope, maxLength, batchSubmit)
	if err != nil {
		return fmt.Errorf("process file: %w", err)
	}

	renderer := pipeline.NewRenderer(!batchNoFooter)
	successCount := 0
	failureCount := 0

	for _, result := range results {
		if result.Error != nil {
			failureCount++
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", result.PersonID, result.Error)
			continue
		}

		slug := sanitizeFilename(result.PersonID)
		jsonPath := filepath.Join(batchOutputDir, slug+".json")
		mdPath := filepath.Join(batchOutputDir, slug+".md")

		if err := renderer.RenderJSON(result.Bundle, jsonPath); err != nil {
			failureCount++
			fmt.Fprintf(os.Stderr, "✗ %s: failed to write JSON: %v\n", result.PersonID, err)
			continue
		}
		if err := renderer.RenderMarkdown(result.Bundle, mdPath); err != nil {
			failureCount++
			fmt.Fprintf(os.Stderr, "✗ %s: failed to write Markdown: %v\n", result.PersonID, err)
			continue
		}

		successCount++
		fmt.Fprintf(os.Stderr, "✓ %s %s (%d words, confidence %.2f)\n",
			result.PersonID, result.Bundle.PersonName, result.Bundle.Metadata.WordCount, result.Bundle.Metadata.Confidence)
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Batch Complete\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Total:     %d people\n", len(results))
	fmt.Fprintf(os.Stderr, "  Success:   %d\n", successCount)
	fmt.Fprintf(os.Stderr, "  Failures:  %d\n", failureCount)
	fmt.Fprintf(os.Stderr, "  Output:    %s\n", batchOutputDir)
	fmt.Fprintf(os.Stderr, "\n")

	return nil
}

var filenameReplacer = strings.NewReplacer(
	"/", "_",
	"\\", "_",
	":", "_",
	"*", "_",
	"?", "_",
	"\"", "_",
	"<", "_",
	">", "_",
	"|", "_",
	" ", "-",
)

// sanitizeFilename makes a person id safe to use as a file name
func sanitizeFilename(s string) string {
	s = filenameReplacer.Replace(strings.TrimSpace(s))
	s = strings.Trim(s, ".")
	if s == "" {
		s = "person"
	}
	if len(s) > 100 {
		s = s[:100]
	}
	return s
}
