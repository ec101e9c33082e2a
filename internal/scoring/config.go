// Package scoring turns a bullet's feedback history into a present-day
// weight. Feedback decays exponentially with a configurable half-life and
// harmful events weigh more than helpful ones.
package scoring

// Defaults for the scoring thresholds. They are heuristics, so every one
// is exposed through Config and can be overridden.
const (
	DefaultHarmfulMultiplier        = 4.0
	DefaultDecayHalfLifeDays        = 90.0
	DefaultMinFeedbackForActive     = 3.0
	DefaultMinHelpfulForProven      = 10.0
	DefaultMaxHarmfulRatioForProven = 0.1
	DefaultDeprecateHarmfulRatio    = 0.3
	DefaultDeprecateMinFeedback     = 2.0
	DefaultPruneHarmfulThreshold    = 3.0
)

// Config holds the knobs used by scoring and by the maturity state machine.
type Config struct {
	// HarmfulMultiplier is the weight of one harmful event relative to one helpful event.
	HarmfulMultiplier float64

	// DecayHalfLifeDays is the age at which an event counts half.
	DecayHalfLifeDays float64

	// MinFeedbackForActive is the decayed event total below which a bullet stays a candidate.
	MinFeedbackForActive float64

	// MinHelpfulForProven is the decayed helpful total needed for proven.
	MinHelpfulForProven float64

	// MaxHarmfulRatioForProven caps the harmful share of a proven bullet (exclusive).
	MaxHarmfulRatioForProven float64

	// DeprecateHarmfulRatio is the harmful share above which a bullet is deprecated.
	DeprecateHarmfulRatio float64

	// DeprecateMinFeedback is the decayed total that must be exceeded before
	// the harmful ratio can deprecate a bullet.
	DeprecateMinFeedback float64

	// PruneHarmfulThreshold is the negated score below which demotion
	// recommends auto-deprecation.
	PruneHarmfulThreshold float64
}

// DefaultConfig returns the stock thresholds.
func DefaultConfig() Config {
	return Config{
		HarmfulMultiplier:        DefaultHarmfulMultiplier,
		DecayHalfLifeDays:        DefaultDecayHalfLifeDays,
		MinFeedbackForActive:     DefaultMinFeedbackForActive,
		MinHelpfulForProven:      DefaultMinHelpfulForProven,
		MaxHarmfulRatioForProven: DefaultMaxHarmfulRatioForProven,
		DeprecateHarmfulRatio:    DefaultDeprecateHarmfulRatio,
		DeprecateMinFeedback:     DefaultDeprecateMinFeedback,
		PruneHarmfulThreshold:    DefaultPruneHarmfulThreshold,
	}
}

// withDefaults fills zero values so a partially populated Config behaves sanely.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.HarmfulMultiplier <= 0 {
		c.HarmfulMultiplier = d.HarmfulMultiplier
	}
	if c.DecayHalfLifeDays <= 0 {
		c.DecayHalfLifeDays = d.DecayHalfLifeDays
	}
	if c.MinFeedbackForActive <= 0 {
		c.MinFeedbackForActive = d.MinFeedbackForActive
	}
	if c.MinHelpfulForProven <= 0 {
		c.MinHelpfulForProven = d.MinHelpfulForProven
	}
	if c.MaxHarmfulRatioForProven <= 0 {
		c.MaxHarmfulRatioForProven = d.MaxHarmfulRatioForProven
	}
	if c.DeprecateHarmfulRatio <= 0 {
		c.DeprecateHarmfulRatio = d.DeprecateHarmfulRatio
	}
	if c.DeprecateMinFeedback <= 0 {
		c.DeprecateMinFeedback = d.DeprecateMinFeedback
	}
	if c.PruneHarmfulThreshold <= 0 {
		c.PruneHarmfulThreshold = d.PruneHarmfulThreshold
	}
	return c
}

// Normalize returns c with every unset threshold replaced by its default.
func (c Config) Normalize() Config {
	return c.withDefaults()
}
