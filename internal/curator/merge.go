package curator

import (
	"fmt"
	"time"

	"github.com/jonathan-kellerai/cass-memory-system-sub003/internal/playbook"
	"github.com/jonathan-kellerai/cass-memory-system-sub003/internal/scoring"
	"github.com/jonathan-kellerai/cass-memory-system-sub003/internal/types"
)

// applyMerge folds two duplicate bullets into one. The bullet with the
// higher effective score survives and inherits the other's feedback
// history; the loser is deprecated and points at the survivor. A pinned
// bullet always survives.
func (c *Curator) applyMerge(pb *types.Playbook, d types.MergeDelta, now time.Time) ([]*types.Bullet, error) {
	if len(d.BulletIDs) != 2 || d.BulletIDs[0] == d.BulletIDs[1] {
		return nil, invalid(types.DeltaMerge, "", types.ErrInvalidMerge)
	}
	a := playbook.FindBullet(pb, d.BulletIDs[0])
	b := playbook.FindBullet(pb, d.BulletIDs[1])
	for i, x := range []*types.Bullet{a, b} {
		if x == nil {
			return nil, invalid(types.DeltaMerge, d.BulletIDs[i], types.ErrBulletNotFound)
		}
		if x.IsDeprecated() {
			return nil, invalid(types.DeltaMerge, x.ID, types.ErrDeprecatedTarget)
		}
	}
	if a.Pinned && b.Pinned {
		return nil, invalid(types.DeltaMerge, b.ID, types.ErrPinned)
	}
	if sim := c.comparator.Similarity(a.Content, b.Content); sim < c.cfg.DedupSimilarityThreshold {
		return nil, invalid(types.DeltaMerge, a.ID,
			fmt.Errorf("%w: similarity %.2f < %.2f", types.ErrNotDuplicates, sim, c.cfg.DedupSimilarityThreshold))
	}

	winner, loser := a, b
	switch {
	case b.Pinned:
		winner, loser = b, a
	case a.Pinned:
	case scoring.EffectiveScore(b, c.cfg.Scoring, now) > scoring.EffectiveScore(a, c.cfg.Scoring, now):
		winner, loser = b, a
	}

	playbook.MoveFeedback(loser, winner, now)
	winner.DerivedFrom = mergeUnique(winner.DerivedFrom, []string{loser.ID})
	winner.Tags = mergeUnique(winner.Tags, loser.Tags)
	if d.SourceSession != "" {
		winner.SourceSessions = mergeUnique(winner.SourceSessions, []string{d.SourceSession})
	}
	playbook.Deprecate(loser, reasonOr(d.Reason, "merged into "+winner.ID), winner.ID, now)
	return []*types.Bullet{winner}, nil
}

// applyDeprecate retires a bullet by hand. Pinned bullets must be unpinned
// first.
func (c *Curator) applyDeprecate(pb *types.Playbook, d types.DeprecateDelta, now time.Time) ([]*types.Bullet, error) {
	b := playbook.FindBullet(pb, d.BulletID)
	if b == nil {
		return nil, invalid(types.DeltaDeprecate, d.BulletID, types.ErrBulletNotFound)
	}
	if b.IsDeprecated() {
		return nil, invalid(types.DeltaDeprecate, d.BulletID, types.ErrDeprecatedTarget)
	}
	if b.Pinned {
		return nil, invalid(types.DeltaDeprecate, d.BulletID, types.ErrPinned)
	}
	if d.ReplacedBy != "" {
		if d.ReplacedBy == b.ID || playbook.FindBullet(pb, d.ReplacedBy) == nil {
			return nil, invalid(types.DeltaDeprecate, d.ReplacedBy, types.ErrBulletNotFound)
		}
	}
	playbook.Deprecate(b, reasonOr(d.Reason, "deprecated manually"), d.ReplacedBy, now)
	return nil, nil
}
