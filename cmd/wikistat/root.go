package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cognicore/wikistat/internal/logger"
	"github.com/cognicore/wikistat/pkg/wikistat/config"
)

// rootOptions holds the persistent flags shared by every subcommand.
type rootOptions struct {
	configPath string
	logLevel   string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "wikistat",
		Short:         "Extract word rankings and links from wiki dumps",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "YAML config file (defaults apply when empty)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override log level (debug, info, warn, error)")

	cmd.AddCommand(newIngestCommand(opts))
	cmd.AddCommand(newPageCommand(opts))
	return cmd
}

// load reads the config file and builds the logger. Flag overrides are
// applied by the caller before validation.
func (o *rootOptions) load() (config.Config, logger.Logger, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return cfg, nil, err
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		return cfg, nil, fmt.Errorf("create logger: %w", err)
	}
	return cfg, log, nil
}
