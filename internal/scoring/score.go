package scoring

import (
	"time"

	"github.com/jonathan-kellerai/cass-memory-system-sub003/internal/types"
)

var maturityMultiplier = map[types.Maturity]float64{
	types.MaturityCandidate:   0.5,
	types.MaturityEstablished: 1.0,
	types.MaturityProven:      1.5,
	types.MaturityDeprecated:  0,
}

var stateMultiplier = map[types.State]float64{
	types.StateDraft:   0.8,
	types.StateActive:  1.0,
	types.StateRetired: 0.1,
}

// MaturityMultiplier returns the score multiplier for m. Unknown values
// score like a candidate.
func MaturityMultiplier(m types.Maturity) float64 {
	if v, ok := maturityMultiplier[m]; ok {
		return v
	}
	return maturityMultiplier[types.MaturityCandidate]
}

// StateMultiplier returns the score multiplier for s. Unknown values
// score like a draft.
func StateMultiplier(s types.State) float64 {
	if v, ok := stateMultiplier[s]; ok {
		return v
	}
	return stateMultiplier[types.StateDraft]
}

// RawScore is decayedHelpful - harmfulMultiplier*decayedHarmful.
func RawScore(b *types.Bullet, cfg Config, now time.Time) float64 {
	cfg = cfg.withDefaults()
	helpful, harmful := DecayedCounts(b, now, cfg.DecayHalfLifeDays)
	return helpful - cfg.HarmfulMultiplier*harmful
}

// EffectiveScore weights the raw score by maturity and state. A deprecated
// bullet always scores 0, whatever feedback it still carries.
func EffectiveScore(b *types.Bullet, cfg Config, now time.Time) float64 {
	if b.IsDeprecated() {
		return 0
	}
	return RawScore(b, cfg, now) * MaturityMultiplier(b.Maturity) * StateMultiplier(b.State)
}

// Breakdown is the per-component view of an effective score, used when
// explaining a bullet.
type Breakdown struct {
	DecayedHelpful     float64 `json:"decayed_helpful" yaml:"decayed_helpful"`
	DecayedHarmful     float64 `json:"decayed_harmful" yaml:"decayed_harmful"`
	HalfLifeDays       float64 `json:"half_life_days" yaml:"half_life_days"`
	Raw                float64 `json:"raw" yaml:"raw"`
	MaturityMultiplier float64 `json:"maturity_multiplier" yaml:"maturity_multiplier"`
	StateMultiplier    float64 `json:"state_multiplier" yaml:"state_multiplier"`
	Effective          float64 `json:"effective" yaml:"effective"`
}

// Explain computes the full breakdown for b.
func Explain(b *types.Bullet, cfg Config, now time.Time) Breakdown {
	cfg = cfg.withDefaults()
	helpful, harmful := DecayedCounts(b, now, cfg.DecayHalfLifeDays)
	bd := Breakdown{
		DecayedHelpful:     helpful,
		DecayedHarmful:     harmful,
		HalfLifeDays:       HalfLifeFor(b, cfg.DecayHalfLifeDays),
		Raw:                helpful - cfg.HarmfulMultiplier*harmful,
		MaturityMultiplier: MaturityMultiplier(b.Maturity),
		StateMultiplier:    StateMultiplier(b.State),
	}
	bd.Effective = EffectiveScore(b, cfg, now)
	return bd
}
