// Package playbook holds the bullet-level operations shared by the curator
// and the CLI: creation, lookup, feedback bookkeeping and deprecation.
package playbook

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan-kellerai/cass-memory-system-sub003/internal/types"
)

// idPrefix marks bullet identifiers.
const idPrefix = "b-"

// NewBulletID returns an identifier not yet used in pb.
func NewBulletID(pb *types.Playbook) string {
	for {
		raw := strings.ReplaceAll(uuid.NewString(), "-", "")
		id := idPrefix + raw[:12]
		if pb == nil || FindBullet(pb, id) == nil {
			return id
		}
	}
}

// FindBullet returns the bullet with the given id, or nil.
func FindBullet(pb *types.Playbook, id string) *types.Bullet {
	for _, b := range pb.Bullets {
		if b.ID == id {
			return b
		}
	}
	return nil
}

// NewBulletOptions are the curator-controlled defaults applied to a draft.
type NewBulletOptions struct {
	SourceSession string
	HalfLifeDays  float64
	State         types.State
	Now           time.Time
}

// AddBullet appends a new candidate bullet built from draft and returns it.
// Content must be non-empty; scope defaults to global and kind to rule.
func AddBullet(pb *types.Playbook, draft types.BulletDraft, opts NewBulletOptions) (*types.Bullet, error) {
	content := strings.TrimSpace(draft.Content)
	if content == "" {
		return nil, types.ErrEmptyContent
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now().UTC()
	}
	if !opts.State.Valid() {
		opts.State = types.StateDraft
	}

	scope := draft.Scope
	if !scope.Valid() {
		scope = types.ScopeGlobal
	}
	kind := draft.Kind
	if kind == "" {
		kind = types.KindRule
	}
	if draft.IsNegative && kind == types.KindRule {
		kind = types.KindAntiPattern
	}

	b := &types.Bullet{
		ID:                          NewBulletID(pb),
		Scope:                       scope,
		Workspace:                   draft.Workspace,
		Category:                    draft.Category,
		Content:                     content,
		Kind:                        kind,
		IsNegative:                  draft.IsNegative || kind == types.KindAntiPattern,
		State:                       opts.State,
		Maturity:                    types.MaturityCandidate,
		FeedbackEvents:              []types.FeedbackEvent{},
		ConfidenceDecayHalfLifeDays: opts.HalfLifeDays,
		CreatedAt:                   opts.Now,
		UpdatedAt:                   opts.Now,
		Reasoning:                   draft.Reasoning,
		Tags:                        append([]string(nil), draft.Tags...),
	}
	if b.Category == "" {
		b.Category = "general"
	}
	if opts.SourceSession != "" {
		b.SourceSessions = []string{opts.SourceSession}
	}

	pb.Bullets = append(pb.Bullets, b)
	pb.Metadata.UpdatedAt = opts.Now
	return b, nil
}

// RecordFeedback appends an event to b and resynchronises its counters.
func RecordFeedback(b *types.Bullet, ev types.FeedbackEvent, now time.Time) {
	b.FeedbackEvents = append(b.FeedbackEvents, ev)
	if ev.SessionPath != "" {
		b.SourceSessions = appendUnique(b.SourceSessions, ev.SessionPath)
	}
	SyncCounts(b)
	b.UpdatedAt = now
}

// SyncCounts recomputes HelpfulCount and HarmfulCount from the event log.
func SyncCounts(b *types.Bullet) {
	helpful, harmful := 0, 0
	for _, ev := range b.FeedbackEvents {
		switch ev.Type {
		case types.FeedbackHelpful:
			helpful++
		case types.FeedbackHarmful:
			harmful++
		}
	}
	b.HelpfulCount = helpful
	b.HarmfulCount = harmful
}

// SyncAll resynchronises the counters of every bullet in pb.
func SyncAll(pb *types.Playbook) {
	for _, b := range pb.Bullets {
		SyncCounts(b)
	}
}

// MoveFeedback transfers every event of from onto to, keeping the merged
// log in timestamp order. Events with unparseable timestamps sort first.
func MoveFeedback(from, to *types.Bullet, now time.Time) {
	merged := make([]types.FeedbackEvent, 0, len(from.FeedbackEvents)+len(to.FeedbackEvents))
	merged = append(merged, to.FeedbackEvents...)
	merged = append(merged, from.FeedbackEvents...)
	sort.SliceStable(merged, func(i, j int) bool {
		ti, _ := merged[i].Time()
		tj, _ := merged[j].Time()
		return ti.Before(tj)
	})
	to.FeedbackEvents = merged
	from.FeedbackEvents = []types.FeedbackEvent{}
	for _, s := range from.SourceSessions {
		to.SourceSessions = appendUnique(to.SourceSessions, s)
	}
	SyncCounts(to)
	SyncCounts(from)
	to.UpdatedAt = now
	from.UpdatedAt = now
}

// Deprecate marks b deprecated. Content is left untouched.
func Deprecate(b *types.Bullet, reason, replacedBy string, now time.Time) {
	b.Deprecated = true
	b.Maturity = types.MaturityDeprecated
	b.DeprecatedAt = &now
	b.DeprecationReason = reason
	if replacedBy != "" {
		b.ReplacedBy = replacedBy
	}
	b.UpdatedAt = now
}

// Live returns the bullets that are neither deprecated nor retired.
func Live(pb *types.Playbook) []*types.Bullet {
	live := make([]*types.Bullet, 0, len(pb.Bullets))
	for _, b := range pb.Bullets {
		if b.IsLive() {
			live = append(live, b)
		}
	}
	return live
}

// Pin exempts b from automatic demotion and deprecation.
func Pin(b *types.Bullet, reason string, now time.Time) error {
	if b.IsDeprecated() {
		return fmt.Errorf("pin %s: %w", b.ID, types.ErrDeprecatedTarget)
	}
	b.Pinned = true
	b.PinnedReason = reason
	b.UpdatedAt = now
	return nil
}

// Unpin clears the pin on b.
func Unpin(b *types.Bullet, now time.Time) {
	b.Pinned = false
	b.PinnedReason = ""
	b.UpdatedAt = now
}

func appendUnique(list []string, s string) []string {
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}
