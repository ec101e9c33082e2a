package curator

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jonathan-kellerai/cass-memory-system-sub003/internal/playbook"
	"github.com/jonathan-kellerai/cass-memory-system-sub003/internal/ratchet"
	"github.com/jonathan-kellerai/cass-memory-system-sub003/internal/search"
	"github.com/jonathan-kellerai/cass-memory-system-sub003/internal/types"
)

// apply dispatches one delta and returns the bullets it touched.
func (c *Curator) apply(pb *types.Playbook, d types.Delta, now time.Time, res *Result) ([]*types.Bullet, error) {
	switch v := d.(type) {
	case types.AddDelta:
		return c.applyAdd(pb, v, now, res)
	case types.UpdateDelta:
		return c.applyUpdate(pb, v, now)
	case types.HelpfulDelta:
		return c.applyFeedback(pb, types.FeedbackHelpful, v.BulletID, v.Reason, v.Context, v.SourceSession, now, res)
	case types.HarmfulDelta:
		return c.applyFeedback(pb, types.FeedbackHarmful, v.BulletID, v.Reason, v.Context, v.SourceSession, now, res)
	case types.MergeDelta:
		return c.applyMerge(pb, v, now)
	case types.DeprecateDelta:
		return c.applyDeprecate(pb, v, now)
	case types.InvalidDelta:
		return nil, v.Err
	default:
		return nil, fmt.Errorf("%w: %T", types.ErrUnknownDeltaType, d)
	}
}

func invalid(t types.DeltaType, id string, err error) error {
	return &types.ValidationError{Delta: t, BulletID: id, Err: err}
}

// duplicateOf returns the live bullet most similar to content when that
// similarity reaches the dedup threshold. except is ignored.
func (c *Curator) duplicateOf(pb *types.Playbook, content string, except *types.Bullet) (*types.Bullet, float64) {
	live := playbook.Live(pb)
	candidates := make([]string, 0, len(live))
	bullets := make([]*types.Bullet, 0, len(live))
	for _, b := range live {
		if b == except {
			continue
		}
		candidates = append(candidates, b.Content)
		bullets = append(bullets, b)
	}
	score, idx := search.Max(c.comparator, content, candidates)
	if idx < 0 || score < c.cfg.DedupSimilarityThreshold {
		return nil, score
	}
	return bullets[idx], score
}

func (c *Curator) applyAdd(pb *types.Playbook, d types.AddDelta, now time.Time, res *Result) ([]*types.Bullet, error) {
	content := strings.TrimSpace(d.Bullet.Content)
	if content == "" {
		return nil, invalid(types.DeltaAdd, "", types.ErrEmptyContent)
	}
	if dup, score := c.duplicateOf(pb, content, nil); dup != nil {
		return nil, invalid(types.DeltaAdd, dup.ID,
			fmt.Errorf("%w (similarity %.2f)", types.ErrDuplicate, score))
	}

	b, err := playbook.AddBullet(pb, d.Bullet, playbook.NewBulletOptions{
		SourceSession: d.SourceSession,
		State:         c.cfg.NewBulletState,
		Now:           now,
	})
	if err != nil {
		return nil, invalid(types.DeltaAdd, "", err)
	}
	res.Added = append(res.Added, b.ID)
	return []*types.Bullet{b}, nil
}

func (c *Curator) applyUpdate(pb *types.Playbook, d types.UpdateDelta, now time.Time) ([]*types.Bullet, error) {
	b := playbook.FindBullet(pb, d.BulletID)
	if b == nil {
		return nil, invalid(types.DeltaUpdate, d.BulletID, types.ErrBulletNotFound)
	}
	if b.IsDeprecated() {
		return nil, invalid(types.DeltaUpdate, d.BulletID, types.ErrDeprecatedTarget)
	}

	draft := d.Bullet
	if content := strings.TrimSpace(draft.Content); content != "" && content != b.Content {
		if dup, score := c.duplicateOf(pb, content, b); dup != nil {
			return nil, invalid(types.DeltaUpdate, d.BulletID,
				fmt.Errorf("%w: %s (similarity %.2f)", types.ErrDuplicate, dup.ID, score))
		}
		b.Content = content
	}
	if draft.Category != "" {
		b.Category = draft.Category
	}
	if draft.Kind != "" {
		b.Kind = draft.Kind
	}
	if draft.Scope.Valid() {
		b.Scope = draft.Scope
	}
	if draft.Workspace != "" {
		b.Workspace = draft.Workspace
	}
	if draft.IsNegative {
		b.IsNegative = true
	}
	if draft.Reasoning != "" {
		b.Reasoning = draft.Reasoning
	}
	if len(draft.Tags) > 0 {
		b.Tags = append([]string(nil), draft.Tags...)
	}
	if d.SourceSession != "" && !contains(b.SourceSessions, d.SourceSession) {
		b.SourceSessions = append(b.SourceSessions, d.SourceSession)
	}
	b.UpdatedAt = now
	return []*types.Bullet{b}, nil
}

// applyFeedback records one event. Harmful feedback recomputes maturity and
// may deprecate the bullet, inverting it into an anti-pattern. Feedback on a
// bullet already flagged deprecated is kept in its history but changes
// nothing else. A bullet whose maturity reached deprecated without the flag
// is retired by its next harmful event. Pinned bullets are never demoted.
func (c *Curator) applyFeedback(pb *types.Playbook, kind types.FeedbackType, id, reason, context, session string, now time.Time, res *Result) ([]*types.Bullet, error) {
	dt := types.DeltaType(kind)
	b := playbook.FindBullet(pb, id)
	if b == nil {
		return nil, invalid(dt, id, types.ErrBulletNotFound)
	}
	flagged := b.Deprecated

	ev := types.NewFeedbackEvent(kind, now, session, reason)
	ev.Context = context
	playbook.RecordFeedback(b, ev, now)

	if flagged || kind != types.FeedbackHarmful {
		return []*types.Bullet{b}, nil
	}

	touched := []*types.Bullet{b}
	from := b.Maturity
	next := ratchet.CalculateMaturityState(b, c.cfg.Scoring, now)
	switch {
	case next == types.MaturityDeprecated || from == types.MaturityDeprecated:
		if anti := c.retire(pb, b, "harmful feedback: "+reasonOr(reason, "harmful ratio exceeded"), session, now, res); anti != nil {
			touched = append(touched, anti)
		}
	case next.Rank() < from.Rank():
		if b.Pinned {
			c.logger.Debug("pinned bullet kept despite demotion signal",
				zap.String("bullet_id", b.ID), zap.String("to", string(next)))
			break
		}
		b.Maturity = next
		res.Demotions = append(res.Demotions, Transition{
			BulletID: b.ID, From: from, To: next, Reason: "harmful feedback",
		})
	}
	return touched, nil
}

// retire deprecates b on behalf of an automatic rule. Pinned bullets are
// left alone. Positive rules are inverted; the new anti-pattern is returned.
func (c *Curator) retire(pb *types.Playbook, b *types.Bullet, reason, session string, now time.Time, res *Result) *types.Bullet {
	if b.Pinned {
		c.logger.Info("pinned bullet kept despite deprecation signal",
			zap.String("bullet_id", b.ID), zap.String("reason", reason))
		return nil
	}
	from := b.Maturity
	var anti *types.Bullet
	if b.IsNegative || b.Kind == types.KindAntiPattern {
		playbook.Deprecate(b, reason, "", now)
	} else {
		anti = c.invert(pb, b, reason, session, now, res)
	}
	res.Demotions = append(res.Demotions, Transition{
		BulletID: b.ID, From: from, To: types.MaturityDeprecated, Reason: reason,
	})
	return anti
}

func reasonOr(reason, fallback string) string {
	if strings.TrimSpace(reason) == "" {
		return fallback
	}
	return reason
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
