package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jonathan-kellerai/cass-memory-system-sub003/internal/formatter"
	"github.com/jonathan-kellerai/cass-memory-system-sub003/internal/search"
	"github.com/jonathan-kellerai/cass-memory-system-sub003/internal/types"
)

var (
	similarThreshold float64
	similarLimit     int
)

var similarCmd = &cobra.Command{
	Use:   "similar <text>",
	Short: "Find live bullets that resemble some text",
	Long: `Rank live bullets by token overlap with the given text. Useful to check
whether a rule already exists before adding it; add rejects anything at or
above the configured dedup threshold.

Examples:
  cm similar "run go vet before committing"
  cm similar "database mocks" --threshold 0.2`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSimilar,
}

func init() {
	rootCmd.AddCommand(similarCmd)
	similarCmd.Flags().Float64Var(&similarThreshold, "threshold", 0.3, "Minimum similarity (0-1)")
	similarCmd.Flags().IntVar(&similarLimit, "limit", 10, "Show at most this many matches (0 = all)")
}

// similarMatch is one similar row with its playbook scope.
type similarMatch struct {
	Scope      types.Scope   `json:"scope" yaml:"scope"`
	Similarity float64       `json:"similarity" yaml:"similarity"`
	Bullet     *types.Bullet `json:"bullet" yaml:"bullet"`
}

func runSimilar(cmd *cobra.Command, args []string) error {
	if similarThreshold < 0 || similarThreshold > 1 {
		return fmt.Errorf("--threshold must be between 0 and 1, got %v", similarThreshold)
	}
	text := strings.Join(args, " ")

	var matches []similarMatch
	for _, t := range app.readTargets() {
		pb, err := t.Store.Load()
		if err != nil {
			return err
		}
		for _, m := range search.FindSimilar(nil, pb.Bullets, text, similarThreshold) {
			matches = append(matches, similarMatch{Scope: t.Scope, Similarity: m.Similarity, Bullet: m.Bullet})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})
	if similarLimit > 0 && len(matches) > similarLimit {
		matches = matches[:similarLimit]
	}

	w := cmd.OutOrStdout()
	if ok, err := emit(w, matches); ok {
		return err
	}
	if len(matches) == 0 {
		fmt.Fprintln(w, "No similar bullets")
		return nil
	}
	tbl := formatter.NewTable(w, "SIMILARITY", "ID", "SCOPE", "MATURITY", "CONTENT")
	tbl.SetMaxWidth(4, 70).AlignRight(0)
	for _, m := range matches {
		tbl.AddRow(fmt.Sprintf("%.2f", m.Similarity), m.Bullet.ID, string(m.Scope), string(m.Bullet.Maturity), m.Bullet.Content)
	}
	return tbl.Render()
}
