package curator

import (
	"time"

	"go.uber.org/zap"

	"github.com/jonathan-kellerai/cass-memory-system-sub003/internal/playbook"
	"github.com/jonathan-kellerai/cass-memory-system-sub003/internal/types"
)

// invert deprecates b and adds an anti-pattern warning against it. The
// original content is preserved; the two bullets reference each other.
func (c *Curator) invert(pb *types.Playbook, b *types.Bullet, reason, session string, now time.Time, res *Result) *types.Bullet {
	anti, err := playbook.AddBullet(pb, types.BulletDraft{
		Content:    AntiPatternPrefix + b.Content,
		Category:   b.Category,
		Kind:       types.KindAntiPattern,
		Scope:      b.Scope,
		Workspace:  b.Workspace,
		IsNegative: true,
		Reasoning:  "Inverted from " + b.ID + ": " + reason,
		Tags:       b.Tags,
	}, playbook.NewBulletOptions{
		SourceSession: session,
		HalfLifeDays:  b.ConfidenceDecayHalfLifeDays,
		State:         types.StateActive,
		Now:           now,
	})
	if err != nil {
		// Only reachable with empty content, which a stored bullet never has.
		playbook.Deprecate(b, reason, "", now)
		return nil
	}
	anti.DerivedFrom = []string{b.ID}
	anti.SourceSessions = mergeUnique(anti.SourceSessions, b.SourceSessions)

	playbook.Deprecate(b, reason, anti.ID, now)

	res.Inversions = append(res.Inversions, Inversion{
		OriginalID:    b.ID,
		AntiPatternID: anti.ID,
		Content:       anti.Content,
		Reason:        reason,
	})
	c.logger.Info("bullet inverted into anti-pattern",
		zap.String("bullet_id", b.ID),
		zap.String("anti_pattern_id", anti.ID),
		zap.String("reason", reason))
	return anti
}

func mergeUnique(dst, src []string) []string {
	for _, s := range src {
		if !contains(dst, s) {
			dst = append(dst, s)
		}
	}
	return dst
}
