package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/helixir/scholar-tools-service/internal/domain"
	"github.com/helixir/scholar-tools-service/internal/papersources"
)

var paperCmd = &cobra.Command{
	Use:   "paper <id>",
	Short: "Look up a single paper by provider id",
	Long: `Paper fetches one record by its provider id. arXiv is the default
source; ids may carry a version suffix or use the old archive/number form.`,
	Args: cobra.ExactArgs(1),
	RunE: runPaper,
}

var referencesCmd = &cobra.Command{
	Use:   "references <paper-id>",
	Short: "List citing and cited papers from Semantic Scholar",
	Args:  cobra.ExactArgs(1),
	RunE:  runReferences,
}

func init() {
	paperCmd.Flags().StringP("source", "s", string(domain.SourceTypeArXiv), "paper source: semantic_scholar, arxiv or core")
	referencesCmd.Flags().IntP("limit", "n", papersources.DefaultLimit, "maximum papers per list")

	rootCmd.AddCommand(paperCmd, referencesCmd)
}

func runPaper(cmd *cobra.Command, args []string) error {
	id := strings.TrimSpace(args[0])
	name, _ := cmd.Flags().GetString("source")

	source, err := enabledSource(name)
	if err != nil {
		return err
	}

	paper, err := source.GetByID(cmd.Context(), id)
	if err != nil {
		return fmt.Errorf("%s lookup: %w", source.Name(), err)
	}
	if paper == nil {
		return fmt.Errorf("no paper found for %s ID: %s", source.Name(), id)
	}
	return printResult(cmd, paper)
}

type graph struct {
	Citations  []*domain.Paper `json:"citations" yaml:"citations"`
	References []*domain.Paper `json:"references" yaml:"references"`
}

func runReferences(cmd *cobra.Command, args []string) error {
	id := strings.TrimSpace(args[0])
	limit, _ := cmd.Flags().GetInt("limit")

	source, err := enabledSource(string(domain.SourceTypeSemanticScholar))
	if err != nil {
		return err
	}
	citationSource, ok := source.(papersources.CitationSource)
	if !ok {
		return fmt.Errorf("%s does not expose citations", source.Name())
	}

	citations, err := citationSource.GetCitations(cmd.Context(), id, limit)
	if err != nil {
		return fmt.Errorf("citations: %w", err)
	}
	references, err := citationSource.GetReferences(cmd.Context(), id, limit)
	if err != nil {
		return fmt.Errorf("references: %w", err)
	}

	return printResult(cmd, graph{
		Citations:  orEmpty(citations),
		References: orEmpty(references),
	})
}

func orEmpty(papers []*domain.Paper) []*domain.Paper {
	if papers == nil {
		return []*domain.Paper{}
	}
	return papers
}
