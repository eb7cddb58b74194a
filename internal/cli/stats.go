package cli

import (
	"context"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"en-words-service/internal/client"
)

// NewStatsCmd prints per-word answer statistics from a running words API.
func NewStatsCmd(configPath, baseURL *string) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show per-word quiz answer statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(cmd.Context(), resolveBaseURL(*configPath, *baseURL))
		},
	}
}

func runStats(ctx context.Context, baseURL string) error {
	api := client.New(baseURL, zap.NewNop())

	stats, err := api.FetchStats(ctx)
	if err != nil {
		return fmt.Errorf("fetching stats from %s: %w", baseURL, err)
	}
	if len(stats) == 0 {
		fmt.Println("No quiz answers recorded yet.")
		return nil
	}

	// Terms are a nicety; stats stay useful with bare ids if the catalog
	// call fails.
	terms := map[string]string{}
	if words, err := api.FetchWords(ctx); err == nil {
		for _, w := range words {
			terms[w.ID] = w.Term
		}
	}

	sort.Slice(stats, func(i, j int) bool {
		return stats[i].Correct+stats[i].Incorrect > stats[j].Correct+stats[j].Incorrect
	})

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "WORD\tCORRECT\tINCORRECT\tRATE")
	for _, s := range stats {
		name := terms[s.WordID]
		if name == "" {
			name = s.WordID
		}
		total := s.Correct + s.Incorrect
		rate := 0.0
		if total > 0 {
			rate = float64(s.Correct) / float64(total) * 100
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%.0f%%\n", name, s.Correct, s.Incorrect, rate)
	}
	return w.Flush()
}
