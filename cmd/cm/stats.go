package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan-kellerai/cass-memory-system-sub003/internal/formatter"
	"github.com/jonathan-kellerai/cass-memory-system-sub003/internal/ratchet"
	"github.com/jonathan-kellerai/cass-memory-system-sub003/internal/scoring"
	"github.com/jonathan-kellerai/cass-memory-system-sub003/internal/types"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show playbook health",
	Long: `Show, for each playbook in scope, how bullets are spread across maturity
stages, how many are anti-patterns, and when the playbook was last curated.`,
	Args: cobra.NoArgs,
	RunE: runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

// playbookStats summarises one playbook.
type playbookStats struct {
	Path         string                `json:"path" yaml:"path"`
	Scope        types.Scope           `json:"scope" yaml:"scope"`
	Distribution *ratchet.Distribution `json:"distribution" yaml:"distribution"`
	Live         int                   `json:"live" yaml:"live"`
	AntiPatterns int                   `json:"antiPatterns" yaml:"antiPatterns"`
	Negative     int                   `json:"negativeScores" yaml:"negativeScores"`
	MeanScore    float64               `json:"meanScore" yaml:"meanScore"`
	Metadata     types.Metadata        `json:"metadata" yaml:"metadata"`
}

func computeStats(t target, pb *types.Playbook) playbookStats {
	cfg := app.cfg.ScoringConfig()
	now := app.now()
	st := playbookStats{
		Path:         t.Store.Path(),
		Scope:        t.Scope,
		Distribution: ratchet.GetDistribution(pb),
		Metadata:     pb.Metadata,
	}
	sum := 0.0
	for _, b := range pb.Bullets {
		if !b.IsLive() {
			continue
		}
		st.Live++
		if b.Kind == types.KindAntiPattern {
			st.AntiPatterns++
		}
		s := scoring.EffectiveScore(b, cfg, now)
		if s < 0 {
			st.Negative++
		}
		sum += s
	}
	if st.Live > 0 {
		st.MeanScore = sum / float64(st.Live)
	}
	return st
}

func runStats(cmd *cobra.Command, args []string) error {
	var all []playbookStats
	for _, t := range app.readTargets() {
		pb, err := t.Store.Load()
		if err != nil {
			return err
		}
		all = append(all, computeStats(t, pb))
	}
	w := cmd.OutOrStdout()
	if ok, err := emit(w, all); ok {
		return err
	}

	now := app.now()
	for i, st := range all {
		if i > 0 {
			fmt.Fprintln(w)
		}
		d := st.Distribution
		err := formatter.KeyValues(w, [][2]string{
			{"playbook", fmt.Sprintf("%s (%s)", st.Path, st.Scope)},
			{"bullets", fmt.Sprintf("%d total, %d live, %d pinned", d.Total, st.Live, d.Pinned)},
			{"maturity", fmt.Sprintf("%d candidate, %d established, %d proven, %d deprecated",
				d.Candidate, d.Established, d.Proven, d.Deprecated)},
			{"anti-patterns", fmt.Sprintf("%d", st.AntiPatterns)},
			{"mean score", fmt.Sprintf("%.2f (%d negative)", st.MeanScore, st.Negative)},
			{"reflections", fmt.Sprintf("%d over %d sessions", st.Metadata.TotalReflections, st.Metadata.TotalSessionsProcessed)},
			{"last curated", formatter.RelTimePtr(st.Metadata.LastReflection, now)},
		})
		if err != nil {
			return err
		}
	}
	return nil
}
