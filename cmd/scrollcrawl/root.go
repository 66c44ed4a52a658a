package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/nao1215/scrollcrawl/internal/config"
	"github.com/nao1215/scrollcrawl/internal/log"
)

// NewRootCmd creates the root command for scrollcrawl.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scrollcrawl",
		Short: "Crawler for infinite-scroll news sites",
		Long: `scrollcrawl crawls news sites whose article listings load more entries
as the reader scrolls. Each configured site gets its own worker that scrolls the
listing, queues new article links and stores the extracted articles.

Every flag can also be set through an environment variable with the
SCROLLCRAWL_ prefix, for example SCROLLCRAWL_SINK=elasticsearch.
Credentials are only read from the environment variables named by the
*-env flags.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	flags := cmd.PersistentFlags()
	flags.BoolP("verbose", "v", false, "Enable verbose logging")
	flags.String("log-format", config.LogText, "Log format: text or json")
	flags.StringP("config", "c", "", "Application config file (yaml, json or toml) with flag values")

	// Sink flags are shared by crawl and migrate
	flags.String("sink", config.SinkSQLite, "Sink backend: memory, sqlite or elasticsearch")
	flags.String("db-dir", "", "SQLite database directory (default: XDG data directory)")
	flags.String("pages-collection", config.DefaultPagesCollection, "Collection for archived article pages")
	flags.String("articles-collection", config.DefaultArticlesCollection, "Collection for extracted articles")
	flags.String("runs-collection", config.DefaultRunsCollection, "Collection for crawl reports")
	flags.StringSlice("elastic-address", []string{config.DefaultElasticAddress}, "Elasticsearch node URL (repeatable)")
	flags.String("elastic-username", "", "Elasticsearch username")
	flags.String("elastic-password-env", config.DefaultElasticPasswordEnv, "Environment variable holding the Elasticsearch password")
	flags.String("elastic-api-key-env", config.DefaultElasticAPIKeyEnv, "Environment variable holding the Elasticsearch API key")
	flags.String("elastic-cloud-id-env", config.DefaultElasticCloudIDEnv, "Environment variable holding the Elastic Cloud id")

	// Add subcommands
	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig builds and validates the configuration from the command's flags,
// SCROLLCRAWL_* environment variables and the optional --config file, and
// creates the logger writing to the command's error output.
func loadConfig(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	configFile, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, nil, err
	}

	v, err := config.NewViper(cmd.Flags(), configFile)
	if err != nil {
		return nil, nil, err
	}

	cfg, err := config.Load(v)
	if err != nil {
		return nil, nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("configuration error: %w", err)
	}

	return cfg, log.New(cmd.ErrOrStderr(), cfg.LogFormat, cfg.Verbose), nil
}
