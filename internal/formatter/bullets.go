package formatter

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/jonathan-kellerai/cass-memory-system-sub003/internal/types"
)

// ScoredBullet is a bullet with its effective score at render time.
type ScoredBullet struct {
	Bullet *types.Bullet `json:"bullet" yaml:"bullet"`
	Score  float64       `json:"score" yaml:"score"`
}

// contentWidth keeps bullet tables inside a typical terminal.
const contentWidth = 60

// BulletTable renders one row per bullet.
func BulletTable(w io.Writer, rows []ScoredBullet, now time.Time) error {
	tbl := NewTable(w, "ID", "KIND", "MATURITY", "STATE", "SCORE", "FEEDBACK", "UPDATED", "CONTENT")
	tbl.SetMaxWidth(7, contentWidth).AlignRight(4)
	for _, r := range rows {
		b := r.Bullet
		tbl.AddRow(
			b.ID,
			string(b.Kind),
			maturityLabel(b),
			string(b.State),
			fmt.Sprintf("%.2f", r.Score),
			fmt.Sprintf("+%d/-%d", b.HelpfulCount, b.HarmfulCount),
			RelTime(b.UpdatedAt, now),
			b.Content,
		)
	}
	return tbl.Render()
}

func maturityLabel(b *types.Bullet) string {
	label := string(b.Maturity)
	if b.Deprecated && b.Maturity != types.MaturityDeprecated {
		label += " (deprecated)"
	}
	if b.Pinned {
		label += " *"
	}
	return label
}

// RelTime renders t relative to now ("3 days ago"). Zero times render as "-".
func RelTime(t, now time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return humanize.RelTime(t, now, "ago", "from now")
}

// RelTimePtr is RelTime for optional timestamps.
func RelTimePtr(t *time.Time, now time.Time) string {
	if t == nil {
		return "-"
	}
	return RelTime(*t, now)
}

// KeyValues renders aligned "key: value" lines, in the order given.
func KeyValues(w io.Writer, pairs [][2]string) error {
	width := 0
	for _, p := range pairs {
		if len(p[0]) > width {
			width = len(p[0])
		}
	}
	var sb strings.Builder
	for _, p := range pairs {
		fmt.Fprintf(&sb, "%-*s  %s\n", width+1, p[0]+":", p[1])
	}
	_, err := io.WriteString(w, sb.String())
	return err
}
