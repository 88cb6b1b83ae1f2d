package main

import (
	"strings"

	"github.com/spf13/cobra"

	"mapagov/internal/catalog"
)

var (
	resolveArea       string
	resolveAuthorName string
	resolveAuthorID   string
)

var resolveCmd = &cobra.Command{
	Use:   "resolve [description]",
	Short: "Resolve a free-text activity description against the catalog",
	Long: `Runs the resolution cascade for the given description: exact match,
then fuzzy match, then semantic search. Prints the resolution envelope as
JSON. When no strategy qualifies, the envelope carries the full hierarchy
for manual selection (origin "dropdown_required").`,
	Args: cobra.MinimumNArgs(1),
	RunE: runResolve,
}

func init() {
	resolveCmd.Flags().StringVarP(&resolveArea, "area", "a", "", "organizational area code (e.g. CGBEN)")
	resolveCmd.Flags().StringVar(&resolveAuthorName, "author", "", "author display name")
	resolveCmd.Flags().StringVar(&resolveAuthorID, "author-id", "", "author identifier")
	resolveCmd.MarkFlagRequired("area")
}

func runResolve(cmd *cobra.Command, args []string) error {
	s, err := openCatalog()
	if err != nil {
		return err
	}
	defer s.Close()

	p := buildPipeline(cmd.Context(), s)
	author := catalog.Author{Name: resolveAuthorName, ID: resolveAuthorID}

	res, err := p.Resolve(cmd.Context(), strings.Join(args, " "), resolveArea, author)
	if err != nil {
		return err
	}
	return printJSON(res)
}
