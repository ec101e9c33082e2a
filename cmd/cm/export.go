package main

import (
	"github.com/spf13/cobra"

	"github.com/jonathan-kellerai/cass-memory-system-sub003/internal/formatter"
	"github.com/jonathan-kellerai/cass-memory-system-sub003/internal/types"
)

var (
	exportTitle  string
	exportLimit  int
	exportScores bool
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Render the live playbook as markdown for agent instructions",
	Long: `Write the live bullets of the playbooks in scope as markdown, best rules
first and grouped by category, followed by the anti-patterns.

Examples:
  cm export > AGENT_RULES.md
  cm export --workspace --limit 25 --scores`,
	Args: cobra.NoArgs,
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVar(&exportTitle, "title", "", "Document title (default: Playbook)")
	exportCmd.Flags().IntVar(&exportLimit, "limit", 0, "At most this many rules and anti-patterns (0 = all)")
	exportCmd.Flags().BoolVar(&exportScores, "scores", false, "Show effective scores")
}

func runExport(cmd *cobra.Command, args []string) error {
	var bullets []*types.Bullet
	for _, t := range app.readTargets() {
		pb, err := t.Store.Load()
		if err != nil {
			return err
		}
		bullets = append(bullets, pb.Bullets...)
	}
	rows := scoredBullets(bullets, app.cfg.ScoringConfig())
	if ok, err := emit(cmd.OutOrStdout(), rows); ok {
		return err
	}
	return formatter.Markdown(cmd.OutOrStdout(), rows, formatter.MarkdownOptions{
		Title:      exportTitle,
		Limit:      exportLimit,
		ShowScores: exportScores,
	})
}
