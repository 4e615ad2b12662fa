package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cognicore/wikistat/pkg/wikistat/internalerr"
	"github.com/cognicore/wikistat/pkg/wikistat/links"
	"github.com/cognicore/wikistat/pkg/wikistat/store/sqlite"
)

type pageOutput struct {
	ID       int64    `json:"id,omitempty"`
	Title    string   `json:"title"`
	URL      string   `json:"url_ending"`
	Links    []string `json:"links"`
	TopWords []string `json:"top_words"`
}

func newPageCommand(root *rootOptions) *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "page <title>",
		Short: "Print the stored record for a page as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := root.load()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()
			if cmd.Flags().Changed("db") {
				cfg.DBPath = dbPath
			}
			if cfg.DBPath == "" {
				return fmt.Errorf("%w: db_path is required", internalerr.ErrInvalidConfig)
			}

			st, err := sqlite.Open(cmd.Context(), cfg.DBPath, "")
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer st.Close()

			rec, found, err := st.GetPage(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("page %q: %w", args[0], internalerr.ErrNotFound)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(pageOutput{
				ID:       rec.ID,
				Title:    rec.Title,
				URL:      links.URLEnding(rec.Title),
				Links:    rec.Links,
				TopWords: rec.TopWords,
			})
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite database path")
	return cmd
}
