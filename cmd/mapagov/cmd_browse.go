package main

import (
	"github.com/spf13/cobra"
)

var browseCmd = &cobra.Command{
	Use:   "browse",
	Short: "Print the full catalog hierarchy",
	Long: `Prints the read-only catalog hierarchy (macroprocess -> process ->
subprocess -> activities) as JSON, for manual drill-down when automated
matching is inconclusive.`,
	RunE: runBrowse,
}

func runBrowse(cmd *cobra.Command, args []string) error {
	s, err := openCatalog()
	if err != nil {
		return err
	}
	defer s.Close()

	p := buildPipeline(cmd.Context(), s)
	h, err := p.BrowseHierarchy()
	if err != nil {
		return err
	}
	return printJSON(h)
}
