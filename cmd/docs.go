package cmd

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

func newDocsCmd(app *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "docs",
		Short: "List documents in the store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			docs, err := app.store.List(cmd.Context())
			if err != nil {
				return fmt.Errorf("list documents: %w", err)
			}

			sort.Slice(docs, func(i, j int) bool {
				return docs[i].ID < docs[j].ID
			})

			if asJSON {
				encoder := json.NewEncoder(cmd.OutOrStdout())
				encoder.SetIndent("", "  ")
				return encoder.Encode(docs)
			}

			if len(docs) == 0 {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), "No documents in the store.")
				return err
			}

			for _, doc := range docs {
				if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s\tversion %d\t%d bytes\n", doc.ID, doc.Version, len(doc.Content)); err != nil {
					return err
				}
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Render JSON output")

	return cmd
}
