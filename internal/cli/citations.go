package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

var (
	citePerson string
	citeScope  string
	citeOut    string
)

// citationsCmd groups the stored-text citation commands
var citationsCmd = &cobra.Command{
	Use:   "citations",
	Short: "Check citations in stored biography text",
	Long: `Records can be deleted after a biography was generated. These commands
re-check the citations in stored text against the records that exist now.

No language model is needed.`,
}

var citationsValidateCmd = &cobra.Command{
	Use:   "validate <file|->",
	Short: "Report citations whose records no longer exist",
	Long: `Validate parses [Note:id:label], [Event:id:label] and
[Biography:id:relationship:label] citations and checks each id against the
person's live notes, events and relatives.

Exits non-zero when any citation is stale.

Example:
  kinstory citations validate bio.txt --person p1 --scope tree-1
  cat bio.txt | kinstory citations validate - --person p1 --scope tree-1`,
	Args: cobra.ExactArgs(1),
	RunE: runCitationsValidate,
}

var citationsRepairCmd = &cobra.Command{
	Use:   "repair <file|->",
	Short: "Rewrite stale citations to their plain label",
	Long: `Repair replaces every citation whose record no longer exists with its
bare label and leaves valid citations untouched.

Example:
  kinstory citations repair bio.txt --person p1 --scope tree-1 --out bio.fixed.txt`,
	Args: cobra.ExactArgs(1),
	RunE: runCitationsRepair,
}

func init() {
	rootCmd.AddCommand(citationsCmd)
	citationsCmd.AddCommand(citationsValidateCmd)
	citationsCmd.AddCommand(citationsRepairCmd)

	for _, c := range []*cobra.Command{citationsValidateCmd, citationsRepairCmd} {
		c.Flags().StringVar(&citePerson, "person", "", "person the text is about")
		c.Flags().StringVar(&citeScope, "scope", "", "scope (tree) the person belongs to")
		_ = c.MarkFlagRequired("person")
		_ = c.MarkFlagRequired("scope")
	}
	citationsRepairCmd.Flags().StringVar(&citeOut, "out", "-", "output path (- for stdout)")
}

func readInput(path string) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}

func runCitationsValidate(cmd *cobra.Command, args []string) error {
	text, err := readInput(args[0])
	if err != nil {
		return err
	}

	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = a.Close(context.Background()) }()

	results, err := a.generator.Validate(cmd.Context(), text, citePerson, citeScope)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	stale := 0
	for _, v := range results {
		if v.Valid {
			fmt.Fprintf(out, "✓ %s\n", v.Citation.Raw)
			continue
		}
		stale++
		fmt.Fprintf(out, "✗ %s (%s)\n", v.Citation.Raw, v.Reason)
	}
	fmt.Fprintf(out, "\n%d citations, %d stale\n", len(results), stale)

	if stale > 0 {
		return fmt.Errorf("%d stale citations", stale)
	}
	return nil
}

func runCitationsRepair(cmd *cobra.Command, args []string) error {
	text, err := readInput(args[0])
	if err != nil {
		return err
	}

	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = a.Close(context.Background()) }()

	repaired, repairs, err := a.generator.RepairStale(cmd.Context(), text, citePerson, citeScope)
	if err != nil {
		return err
	}

	if citeOut == "-" {
		if _, err := io.WriteString(cmd.OutOrStdout(), repaired); err != nil {
			return err
		}
	} else if err := os.WriteFile(citeOut, []byte(repaired), 0644); err != nil {
		return fmt.Errorf("write %s: %w", citeOut, err)
	}

	for _, r := range repairs {
		fmt.Fprintf(os.Stderr, "✓ %s -> %s\n", r.Original, r.Replacement)
	}
	fmt.Fprintf(os.Stderr, "%d citations repaired\n", len(repairs))
	return nil
}
