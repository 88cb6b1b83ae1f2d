package main

import (
	"strings"

	"github.com/spf13/cobra"

	"mapagov/internal/catalog"
)

var (
	anchorMacro string
	anchorProc  string
	anchorSub   string

	finalizeArea       string
	finalizeAuthorName string
	finalizeAuthorID   string
)

var proposeCmd = &cobra.Command{
	Use:   "propose",
	Short: "Anchor a new catalog entry at a hierarchy path (phase A)",
	Long: `Starts the RAG-assisted creation flow: given a hierarchy anchor chosen
from "mapagov browse", returns an envelope with origin
"rag_aguardando_descricao" signaling that a free-text description must be
collected before "mapagov finalize" can mint the entry.`,
	RunE: runPropose,
}

var finalizeCmd = &cobra.Command{
	Use:   "finalize [description]",
	Short: "Mint a new catalog entry from an anchor and description (phase B)",
	Long: `Completes the RAG-assisted creation flow: generates a canonical
activity label for the description, allocates a fresh code from the area's
sequence counter and persists the new entry.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runFinalize,
}

func init() {
	for _, cmd := range []*cobra.Command{proposeCmd, finalizeCmd} {
		cmd.Flags().StringVar(&anchorMacro, "macroprocess", "", "anchor macroprocess")
		cmd.Flags().StringVar(&anchorProc, "process", "", "anchor process")
		cmd.Flags().StringVar(&anchorSub, "subprocess", "", "anchor subprocess")
		cmd.MarkFlagRequired("macroprocess")
		cmd.MarkFlagRequired("process")
		cmd.MarkFlagRequired("subprocess")
	}

	finalizeCmd.Flags().StringVarP(&finalizeArea, "area", "a", "", "organizational area code")
	finalizeCmd.Flags().StringVar(&finalizeAuthorName, "author", "", "author display name")
	finalizeCmd.Flags().StringVar(&finalizeAuthorID, "author-id", "", "author identifier")
	finalizeCmd.MarkFlagRequired("area")
}

func anchorFromFlags() catalog.Anchor {
	return catalog.Anchor{
		Macroprocess: anchorMacro,
		Process:      anchorProc,
		Subprocess:   anchorSub,
	}
}

func runPropose(cmd *cobra.Command, args []string) error {
	s, err := openCatalog()
	if err != nil {
		return err
	}
	defer s.Close()

	p := buildPipeline(cmd.Context(), s)
	res, err := p.ProposeWithAnchor(anchorFromFlags())
	if err != nil {
		return err
	}
	return printJSON(res)
}

func runFinalize(cmd *cobra.Command, args []string) error {
	s, err := openCatalog()
	if err != nil {
		return err
	}
	defer s.Close()

	p := buildPipeline(cmd.Context(), s)
	author := catalog.Author{Name: finalizeAuthorName, ID: finalizeAuthorID}

	res, err := p.FinalizeWithDescription(cmd.Context(), strings.Join(args, " "), anchorFromFlags(), finalizeArea, author)
	if err != nil {
		return err
	}
	return printJSON(res)
}
