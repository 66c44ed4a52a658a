package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nao1215/scrollcrawl/internal/config"
	"github.com/nao1215/scrollcrawl/internal/migrate"
	"github.com/nao1215/scrollcrawl/internal/supervisor"
)

// NewMigrateCmd creates the migrate command.
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Copy stored articles into a deduplicated collection",
		Long: `Migrate reads every article of one collection, recomputes its id from the
site, headline and date, and writes each article once into the target
collection. Records stored with the older author/body list shape are
converted on the way. Running it again only counts duplicates.

Examples:
  # Deduplicate the default SQLite database
  scrollcrawl migrate

  # Count what would be written without writing
  scrollcrawl migrate --dry-run

  # Migrate between Elasticsearch indices
  scrollcrawl migrate --sink elasticsearch --from articles --to unique-articles`,
		Args: cobra.NoArgs,
		RunE: runMigrateCmd,
	}

	cmd.Flags().String("from", config.DefaultArticlesCollection, "Source collection")
	cmd.Flags().String("to", config.DefaultMigrationTarget, "Target collection")
	cmd.Flags().Bool("dry-run", false, "Count records without writing")

	return cmd
}

// runMigrateCmd executes the migrate command.
func runMigrateCmd(cmd *cobra.Command, _ []string) error {
	from, err := cmd.Flags().GetString("from")
	if err != nil {
		return err
	}
	to, err := cmd.Flags().GetString("to")
	if err != nil {
		return err
	}
	dryRun, err := cmd.Flags().GetBool("dry-run")
	if err != nil {
		return err
	}

	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := supervisor.NewFactory(cfg, supervisor.WithFactoryLogger(logger)).OpenSink(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	source, err := migrate.AsScanner(store)
	if err != nil {
		return err
	}

	result, err := migrate.New(source, store,
		migrate.WithCollections(from, to),
		migrate.WithDryRun(dryRun),
		migrate.WithLogger(logger),
	).Run(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if dryRun {
		fmt.Fprintln(out, "Dry run: nothing was written.")
	}
	fmt.Fprintf(out, "Migrated %s -> %s\n", from, to)
	fmt.Fprintf(out, "  scanned:        %d\n", result.Scanned)
	fmt.Fprintf(out, "  written:        %d\n", result.Written)
	fmt.Fprintf(out, "  duplicates:     %d\n", result.Duplicates)
	fmt.Fprintf(out, "  invalid:        %d\n", result.Invalid)
	fmt.Fprintf(out, "  write failures: %d\n", result.WriteFailures)

	return nil
}
