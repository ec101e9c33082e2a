package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jonathan-kellerai/cass-memory-system-sub003/internal/formatter"
	"github.com/jonathan-kellerai/cass-memory-system-sub003/internal/ratchet"
	"github.com/jonathan-kellerai/cass-memory-system-sub003/internal/scoring"
	"github.com/jonathan-kellerai/cass-memory-system-sub003/internal/types"
)

var showEvents int

var showCmd = &cobra.Command{
	Use:     "show <bullet-id>",
	Aliases: []string{"why"},
	Short:   "Explain a bullet's score and maturity",
	Long: `Show a bullet with the breakdown of its effective score, the maturity the
state machine derives for it, and whether it is due for demotion.

Examples:
  cm show b-1a2b3c4d5e6f
  cm why b-1a2b3c4d5e6f -o yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runShow,
}

func init() {
	rootCmd.AddCommand(showCmd)
	showCmd.Flags().IntVar(&showEvents, "events", 10, "Show at most this many recent feedback events")
}

// bulletReport is the machine-readable form of show.
type bulletReport struct {
	Path     string                    `json:"path" yaml:"path"`
	Scope    types.Scope               `json:"scope" yaml:"scope"`
	Bullet   *types.Bullet             `json:"bullet" yaml:"bullet"`
	Score    scoring.Breakdown         `json:"score" yaml:"score"`
	Maturity *ratchet.TransitionResult `json:"maturity" yaml:"maturity"`
	Demotion ratchet.DemotionDecision  `json:"demotion" yaml:"demotion"`
}

func explainBullet(t target, b *types.Bullet) *bulletReport {
	cfg := app.cfg.ScoringConfig()
	now := app.now()
	return &bulletReport{
		Path:     t.Store.Path(),
		Scope:    t.Scope,
		Bullet:   b,
		Score:    scoring.Explain(b, cfg, now),
		Maturity: ratchet.Evaluate(b, cfg, now),
		Demotion: ratchet.CheckForDemotion(b, cfg, now),
	}
}

func runShow(cmd *cobra.Command, args []string) error {
	t, b, err := app.locate(args[0])
	if err != nil {
		return err
	}
	r := explainBullet(t, b)
	w := cmd.OutOrStdout()
	if ok, err := emit(w, r); ok {
		return err
	}

	now := app.now()
	cfg := app.cfg.ScoringConfig().Normalize()
	pairs := [][2]string{
		{"id", b.ID},
		{"content", b.Content},
		{"playbook", fmt.Sprintf("%s (%s)", r.Path, r.Scope)},
		{"kind", string(b.Kind)},
		{"category", b.Category},
		{"state", string(b.State)},
		{"maturity", fmt.Sprintf("%s (derived %s: %s)", b.Maturity, r.Maturity.NewMaturity, r.Maturity.Reason)},
		{"score", fmt.Sprintf("%.3f = (%.2f helpful - %.0f x %.2f harmful) x %.1f maturity x %.1f state",
			r.Score.Effective, r.Score.DecayedHelpful, cfg.HarmfulMultiplier, r.Score.DecayedHarmful,
			r.Score.MaturityMultiplier, r.Score.StateMultiplier)},
		{"half-life", fmt.Sprintf("%.0f days", r.Score.HalfLifeDays)},
		{"feedback", fmt.Sprintf("%d helpful, %d harmful", b.HelpfulCount, b.HarmfulCount)},
		{"demotion", fmt.Sprintf("%s (%s)", r.Demotion.Action, r.Demotion.Reason)},
		{"created", formatter.RelTime(b.CreatedAt, now)},
		{"updated", formatter.RelTime(b.UpdatedAt, now)},
	}
	if b.PromotedAt != nil {
		pairs = append(pairs, [2]string{"promoted", formatter.RelTimePtr(b.PromotedAt, now)})
	}
	if b.Pinned {
		pairs = append(pairs, [2]string{"pinned", b.PinnedReason})
	}
	if b.IsDeprecated() {
		pairs = append(pairs, [2]string{"deprecated", fmt.Sprintf("%s: %s", formatter.RelTimePtr(b.DeprecatedAt, now), b.DeprecationReason)})
	}
	if b.ReplacedBy != "" {
		pairs = append(pairs, [2]string{"replaced by", b.ReplacedBy})
	}
	if len(b.DerivedFrom) > 0 {
		pairs = append(pairs, [2]string{"derived from", strings.Join(b.DerivedFrom, ", ")})
	}
	if len(b.Tags) > 0 {
		pairs = append(pairs, [2]string{"tags", strings.Join(b.Tags, ", ")})
	}
	if err := formatter.KeyValues(w, pairs); err != nil {
		return err
	}

	events := b.FeedbackEvents
	if showEvents > 0 && len(events) > showEvents {
		events = events[len(events)-showEvents:]
	}
	if len(events) == 0 || showEvents <= 0 {
		return nil
	}
	fmt.Fprintln(w)
	tbl := formatter.NewTable(w, "TYPE", "WHEN", "WEIGHT", "SESSION", "REASON")
	tbl.SetMaxWidth(3, 30).SetMaxWidth(4, 50).AlignRight(2)
	halfLife := scoring.HalfLifeFor(b, cfg.DecayHalfLifeDays)
	for _, ev := range events {
		when := ev.Timestamp
		if ts, ok := ev.Time(); ok {
			when = formatter.RelTime(ts, now)
		}
		tbl.AddRow(string(ev.Type), when,
			fmt.Sprintf("%.2f", scoring.DecayedValue(ev, now, halfLife)),
			ev.SessionPath, ev.Reason)
	}
	return tbl.Render()
}
