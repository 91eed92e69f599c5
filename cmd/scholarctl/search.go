package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/helixir/scholar-tools-service/internal/domain"
	"github.com/helixir/scholar-tools-service/internal/papersources"
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search one paper source",
	Long: `Search sends the query to a single provider and prints the uniform
paper records it returns. Limits above 100 are capped.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntP("limit", "n", papersources.DefaultLimit, "maximum number of results")
	searchCmd.Flags().StringP("source", "s", string(domain.SourceTypeSemanticScholar), "paper source: semantic_scholar, arxiv or core")

	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := strings.TrimSpace(strings.Join(args, " "))
	if query == "" {
		return fmt.Errorf("query must not be empty")
	}
	limit, _ := cmd.Flags().GetInt("limit")
	if limit < 1 {
		return fmt.Errorf("limit must be at least 1")
	}
	name, _ := cmd.Flags().GetString("source")

	source, err := enabledSource(name)
	if err != nil {
		return err
	}

	result, err := source.Search(cmd.Context(), papersources.SearchParams{
		Query:      query,
		MaxResults: limit,
	})
	if err != nil {
		return fmt.Errorf("%s search: %w", source.Name(), err)
	}

	papers := result.Papers
	if papers == nil {
		papers = []*domain.Paper{}
	}
	return printResult(cmd, papers)
}

// enabledSource resolves a source name against the registry.
func enabledSource(name string) (papersources.PaperSource, error) {
	st := domain.SourceType(strings.TrimSpace(name))
	if !domain.IsValidSourceType(st) {
		return nil, fmt.Errorf("unknown source %q", name)
	}
	source, ok := registry.Enabled(st)
	if !ok {
		return nil, fmt.Errorf("source %s is not enabled", st)
	}
	return source, nil
}
