package main

import (
	"fmt"
	"io"
	"sort"

	"github.com/jonathan-kellerai/cass-memory-system-sub003/internal/curator"
	"github.com/jonathan-kellerai/cass-memory-system-sub003/internal/formatter"
	"github.com/jonathan-kellerai/cass-memory-system-sub003/internal/scoring"
	"github.com/jonathan-kellerai/cass-memory-system-sub003/internal/types"
)

// emit writes v as a document when the output format is json or yaml and
// reports whether it did.
func emit(w io.Writer, v any) (bool, error) {
	switch GetOutput() {
	case formatter.FormatJSON, formatter.FormatYAML:
		return true, formatter.Encode(w, GetOutput(), v)
	}
	return false, nil
}

// printResult summarises a curation result for humans.
func printResult(w io.Writer, path string, res *curator.Result) {
	prefix := ""
	if GetDryRun() {
		prefix = "[dry-run] "
	}
	fmt.Fprintf(w, "%s%s: %d applied, %d skipped\n", prefix, path, res.Applied, res.Skipped)
	for _, id := range res.Added {
		fmt.Fprintf(w, "  + added %s\n", id)
	}
	for _, p := range res.Promotions {
		fmt.Fprintf(w, "  ↑ %s %s -> %s\n", p.BulletID, p.From, p.To)
	}
	for _, d := range res.Demotions {
		fmt.Fprintf(w, "  ↓ %s %s -> %s\n", d.BulletID, d.From, d.To)
	}
	for _, inv := range res.Inversions {
		fmt.Fprintf(w, "  ! %s inverted into %s: %s\n", inv.OriginalID, inv.AntiPatternID, inv.Content)
	}
	for _, s := range res.Skips {
		id := s.BulletID
		if id == "" {
			id = "-"
		}
		fmt.Fprintf(w, "  - skipped #%d %s %s: %s\n", s.Index, s.Type, id, s.Reason)
	}
}

// scoredBullets pairs bullets with their effective score, highest first.
// Ties are broken by id so output is stable.
func scoredBullets(bullets []*types.Bullet, cfg scoring.Config) []formatter.ScoredBullet {
	now := app.now()
	rows := make([]formatter.ScoredBullet, 0, len(bullets))
	for _, b := range bullets {
		rows = append(rows, formatter.ScoredBullet{Bullet: b, Score: scoring.EffectiveScore(b, cfg, now)})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Score != rows[j].Score {
			return rows[i].Score > rows[j].Score
		}
		return rows[i].Bullet.ID < rows[j].Bullet.ID
	})
	return rows
}
