// Package ratchet implements the bullet maturity state machine.
//
// Maturity is derived from decayed feedback counts. Promotion only ever
// moves a bullet forward (the ratchet); demotion is a separate, score-driven
// decision that callers choose whether to act on.
package ratchet

import (
	"fmt"
	"time"

	"github.com/jonathan-kellerai/cass-memory-system-sub003/internal/scoring"
	"github.com/jonathan-kellerai/cass-memory-system-sub003/internal/types"
)

// TransitionResult contains the result of a maturity evaluation.
type TransitionResult struct {
	// BulletID is the identifier of the bullet.
	BulletID string `json:"bullet_id" yaml:"bullet_id"`

	// OldMaturity is the maturity before evaluation.
	OldMaturity types.Maturity `json:"old_maturity" yaml:"old_maturity"`

	// NewMaturity is the maturity the state machine derives.
	NewMaturity types.Maturity `json:"new_maturity" yaml:"new_maturity"`

	// Transitioned indicates the derived maturity differs from the current one.
	Transitioned bool `json:"transitioned" yaml:"transitioned"`

	// Reason explains which rule decided the outcome.
	Reason string `json:"reason" yaml:"reason"`

	DecayedHelpful float64 `json:"decayed_helpful" yaml:"decayed_helpful"`
	DecayedHarmful float64 `json:"decayed_harmful" yaml:"decayed_harmful"`
	HarmfulRatio   float64 `json:"harmful_ratio" yaml:"harmful_ratio"`

	// Score is the effective score at evaluation time.
	Score float64 `json:"score" yaml:"score"`
}

// Evaluate derives the maturity of b and explains why.
//
// Rules, checked in order:
//   - deprecated flag or maturity → deprecated (absorbing)
//   - harmful ratio > DeprecateHarmfulRatio and total > DeprecateMinFeedback → deprecated
//   - total < MinFeedbackForActive → candidate
//   - helpful >= MinHelpfulForProven and ratio < MaxHarmfulRatioForProven → proven
//   - otherwise → established
func Evaluate(b *types.Bullet, cfg scoring.Config, now time.Time) *TransitionResult {
	cfg = cfg.Normalize()
	helpful, harmful := scoring.DecayedCounts(b, now, cfg.DecayHalfLifeDays)
	total := helpful + harmful
	ratio := 0.0
	if total > 0 {
		ratio = harmful / total
	}

	result := &TransitionResult{
		BulletID:       b.ID,
		OldMaturity:    b.Maturity,
		DecayedHelpful: helpful,
		DecayedHarmful: harmful,
		HarmfulRatio:   ratio,
		Score:          scoring.EffectiveScore(b, cfg, now),
	}

	switch {
	case b.IsDeprecated():
		result.NewMaturity = types.MaturityDeprecated
		result.Reason = "deprecated is terminal"
	case ratio > cfg.DeprecateHarmfulRatio && total > cfg.DeprecateMinFeedback:
		result.NewMaturity = types.MaturityDeprecated
		result.Reason = fmt.Sprintf("harmful ratio %.2f > %.2f with %.2f decayed events > %.0f",
			ratio, cfg.DeprecateHarmfulRatio, total, cfg.DeprecateMinFeedback)
	case total < cfg.MinFeedbackForActive:
		result.NewMaturity = types.MaturityCandidate
		result.Reason = fmt.Sprintf("%.2f decayed events < %.0f needed to leave candidate",
			total, cfg.MinFeedbackForActive)
	case helpful >= cfg.MinHelpfulForProven && ratio < cfg.MaxHarmfulRatioForProven:
		result.NewMaturity = types.MaturityProven
		result.Reason = fmt.Sprintf("decayed helpful %.2f >= %.0f and harmful ratio %.2f < %.2f",
			helpful, cfg.MinHelpfulForProven, ratio, cfg.MaxHarmfulRatioForProven)
	default:
		result.NewMaturity = types.MaturityEstablished
		result.Reason = "enough feedback, not yet proven"
	}

	result.Transitioned = result.NewMaturity != result.OldMaturity
	return result
}

// CalculateMaturityState is the pure transition function of the state machine.
func CalculateMaturityState(b *types.Bullet, cfg scoring.Config, now time.Time) types.Maturity {
	return Evaluate(b, cfg, now).NewMaturity
}

// CheckForPromotion returns the maturity b should move to, accepting only
// forward moves. Proven and deprecated bullets are returned unchanged, and
// the result never ranks below the current maturity.
func CheckForPromotion(b *types.Bullet, cfg scoring.Config, now time.Time) types.Maturity {
	current := b.Maturity
	if current == "" {
		current = types.MaturityCandidate
	}
	if current == types.MaturityProven || b.IsDeprecated() {
		return current
	}

	next := CalculateMaturityState(b, cfg, now)
	if next == types.MaturityDeprecated {
		return current
	}
	if next.Rank() > current.Rank() {
		return next
	}
	return current
}

// DemotionAction is what CheckForDemotion recommends.
type DemotionAction string

const (
	// DemotionNone leaves the bullet as it is.
	DemotionNone DemotionAction = "none"

	// DemotionStep moves the bullet one maturity step down.
	DemotionStep DemotionAction = "demote"

	// DemotionAutoDeprecate recommends deprecating the bullet.
	DemotionAutoDeprecate DemotionAction = "auto-deprecate"
)

// DemotionDecision is a recommendation; CheckForDemotion never mutates the bullet.
type DemotionDecision struct {
	BulletID string         `json:"bullet_id" yaml:"bullet_id"`
	Action   DemotionAction `json:"action" yaml:"action"`
	From     types.Maturity `json:"from" yaml:"from"`
	To       types.Maturity `json:"to" yaml:"to"`
	Score    float64        `json:"score" yaml:"score"`
	Reason   string         `json:"reason" yaml:"reason"`
}

// CheckForDemotion decides, from the effective score alone, whether b should
// be demoted. Pinned bullets are never demoted.
func CheckForDemotion(b *types.Bullet, cfg scoring.Config, now time.Time) DemotionDecision {
	cfg = cfg.Normalize()
	decision := DemotionDecision{
		BulletID: b.ID,
		Action:   DemotionNone,
		From:     b.Maturity,
		To:       b.Maturity,
	}
	if b.Pinned {
		decision.Reason = "pinned"
		return decision
	}
	if b.IsDeprecated() {
		decision.Reason = "already deprecated"
		return decision
	}

	score := scoring.EffectiveScore(b, cfg, now)
	decision.Score = score

	switch {
	case score < -cfg.PruneHarmfulThreshold:
		decision.Action = DemotionAutoDeprecate
		decision.To = types.MaturityDeprecated
		decision.Reason = fmt.Sprintf("score %.2f < -%.2f", score, cfg.PruneHarmfulThreshold)
	case score < 0:
		to := stepDown(b.Maturity)
		if to == b.Maturity {
			decision.Reason = fmt.Sprintf("score %.2f < 0 but %s has no lower stage", score, b.Maturity)
			return decision
		}
		decision.Action = DemotionStep
		decision.To = to
		decision.Reason = fmt.Sprintf("score %.2f < 0", score)
	default:
		decision.Reason = "score is not negative"
	}
	return decision
}

func stepDown(m types.Maturity) types.Maturity {
	switch m {
	case types.MaturityProven:
		return types.MaturityEstablished
	case types.MaturityEstablished:
		return types.MaturityCandidate
	default:
		return m
	}
}

// Distribution represents the count of bullets at each maturity level.
type Distribution struct {
	Candidate   int `json:"candidate" yaml:"candidate"`
	Established int `json:"established" yaml:"established"`
	Proven      int `json:"proven" yaml:"proven"`
	Deprecated  int `json:"deprecated" yaml:"deprecated"`
	Unknown     int `json:"unknown" yaml:"unknown"`
	Pinned      int `json:"pinned" yaml:"pinned"`
	Total       int `json:"total" yaml:"total"`
}

// GetDistribution returns the distribution of bullets across maturity levels.
func GetDistribution(pb *types.Playbook) *Distribution {
	dist := &Distribution{}
	for _, b := range pb.Bullets {
		dist.Total++
		if b.Pinned {
			dist.Pinned++
		}
		if b.IsDeprecated() {
			dist.Deprecated++
			continue
		}
		switch b.Maturity {
		case types.MaturityCandidate:
			dist.Candidate++
		case types.MaturityEstablished:
			dist.Established++
		case types.MaturityProven:
			dist.Proven++
		default:
			dist.Unknown++
		}
	}
	return dist
}
