package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/kinstory/internal/store"
)

// importCmd represents the import command
var importCmd = &cobra.Command{
	Use:   "import <fixture.yaml>",
	Short: "Load a family fixture into the configured store",
	Long: `Import validates a YAML family fixture and writes its people, notes,
events and relationships into the configured sqlite, postgres or neo4j
store. Re-importing the same fixture is idempotent.

Example:
  kinstory import family.yaml --store sqlite
  KINSTORY_STORE_DSN=postgres://... kinstory import family.yaml --store postgres`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	fixture, err := store.LoadFixture(args[0])
	if err != nil {
		return err
	}

	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = a.Close(context.Background()) }()

	importer, ok := a.store.(store.Importer)
	if !ok {
		return fmt.Errorf("store driver %q does not support import", a.cfg.Store.Driver)
	}
	if err := importer.Import(cmd.Context(), fixture); err != nil {
		return fmt.Errorf("import: %w", err)
	}

	fmt.Fprintf(os.Stderr, "✓ Imported %d people and %d relationships\n", len(fixture.People), len(fixture.Relationships))
	return nil
}
