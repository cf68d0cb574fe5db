package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dshills/hybridindex/internal/searcher"
	"github.com/dshills/hybridindex/pkg/types"
)

// newSearchCmd creates the search command
func newSearchCmd(a *app) *cobra.Command {
	var limit int
	var focus string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the workspace index",
		Long:  `Hybrid search combining BM25 keyword matching, vector similarity and symbol graph expansion.`,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := a.workspace()
			if err != nil {
				return err
			}
			query := strings.Join(args, " ")
			results, err := rt.Search(cmd.Context(), query, types.SearchOptions{Limit: limit, FocusFile: focus})
			if err != nil {
				return fmt.Errorf("search failed: %w", err)
			}
			if jsonOutput {
				if results == nil {
					results = []types.SemanticSearchResult{}
				}
				return printJSON(cmd.OutOrStdout(), results)
			}
			return writeResults(cmd.OutOrStdout(), results)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", searcher.DefaultLimit, "Maximum number of results")
	cmd.Flags().StringVar(&focus, "focus", "", "File the query is about; seeds graph expansion")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output results as JSON")
	return cmd
}

// newContextCmd creates the context command
func newContextCmd(a *app) *cobra.Command {
	var maxSnippets, maxTokens int
	var focus string

	cmd := &cobra.Command{
		Use:   "context <query>",
		Short: "Print a context bundle for a query as JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := a.workspace()
			if err != nil {
				return err
			}
			bundle, err := rt.GetContext(cmd.Context(), strings.Join(args, " "), types.ContextOptions{
				FocusFile:   focus,
				MaxSnippets: maxSnippets,
				MaxTokens:   maxTokens,
			})
			if err != nil {
				return fmt.Errorf("failed to build context: %w", err)
			}
			return printJSON(cmd.OutOrStdout(), bundle)
		},
	}
	cmd.Flags().IntVar(&maxSnippets, "max-snippets", 0, "Maximum number of snippets (default 8)")
	cmd.Flags().IntVar(&maxTokens, "max-tokens", 0, "Approximate token budget (default 4000)")
	cmd.Flags().StringVar(&focus, "focus", "", "File the query is about")
	return cmd
}

func writeResults(w io.Writer, results []types.SemanticSearchResult) error {
	if len(results) == 0 {
		_, err := fmt.Fprintln(w, "No results")
		return err
	}
	for i, r := range results {
		provenance := make([]string, len(r.Provenance))
		for j, p := range r.Provenance {
			provenance[j] = string(p)
		}
		if _, err := fmt.Fprintf(w, "%2d. %s:%d-%d  %.3f  [%s]\n",
			i+1, r.FilePath, r.Range.StartLine+1, r.Range.EndLine+1, r.Score, strings.Join(provenance, ",")); err != nil {
			return err
		}
	}
	return nil
}
