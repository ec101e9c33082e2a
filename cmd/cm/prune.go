package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan-kellerai/cass-memory-system-sub003/internal/curator"
	"github.com/jonathan-kellerai/cass-memory-system-sub003/internal/storage"
	"github.com/jonathan-kellerai/cass-memory-system-sub003/internal/types"
)

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Demote or retire bullets with negative scores",
	Long: `Sweep the playbooks in scope and act on every bullet whose effective
score has gone negative:

  score < 0                    one maturity step down
  score < -prune threshold     deprecated (rules are inverted into anti-patterns)

Pinned bullets are never touched. Use --dry-run to preview.`,
	Args: cobra.NoArgs,
	RunE: runPrune,
}

func init() {
	rootCmd.AddCommand(pruneCmd)
}

// pruneResult pairs a report with its playbook.
type pruneResult struct {
	Path   string               `json:"path" yaml:"path"`
	Scope  types.Scope          `json:"scope" yaml:"scope"`
	Report *curator.PruneReport `json:"report" yaml:"report"`
}

func runPrune(cmd *cobra.Command, args []string) error {
	c := app.curator()
	var results []pruneResult
	for _, t := range app.readTargets() {
		var report *curator.PruneReport
		err := t.Store.Update(cmd.Context(), func(pb *types.Playbook) error {
			report = c.Prune(pb)
			if report.Demoted == 0 && report.Deprecated == 0 {
				return storage.ErrDiscard
			}
			return nil
		})
		if err != nil {
			return retryHint(fmt.Errorf("prune %s: %w", t.Store.Path(), err))
		}
		results = append(results, pruneResult{Path: t.Store.Path(), Scope: t.Scope, Report: report})
	}

	w := cmd.OutOrStdout()
	if ok, err := emit(w, results); ok {
		return err
	}
	prefix := ""
	if GetDryRun() {
		prefix = "[dry-run] "
	}
	for _, r := range results {
		fmt.Fprintf(w, "%s%s: %d evaluated, %d demoted, %d deprecated\n",
			prefix, r.Path, r.Report.Evaluated, r.Report.Demoted, r.Report.Deprecated)
		for _, d := range r.Report.Decisions {
			fmt.Fprintf(w, "  %s %s: %s -> %s (%s)\n", d.Action, d.BulletID, d.From, d.To, d.Reason)
		}
		for _, inv := range r.Report.Inversions {
			fmt.Fprintf(w, "  ! %s inverted into %s\n", inv.OriginalID, inv.AntiPatternID)
		}
	}
	return nil
}
