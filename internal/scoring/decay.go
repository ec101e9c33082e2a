package scoring

import (
	"math"
	"time"

	"github.com/jonathan-kellerai/cass-memory-system-sub003/internal/types"
)

const day = 24 * time.Hour

// DecayedValue returns the present-day weight of one feedback event:
//
//	0.5 ^ (max(0, ageDays) / halfLifeDays)
//
// Future timestamps clamp to age zero so they never weigh more than 1.
// An unparseable timestamp weighs 0.
func DecayedValue(event types.FeedbackEvent, now time.Time, halfLifeDays float64) float64 {
	ts, ok := event.Time()
	if !ok {
		return 0
	}
	if halfLifeDays <= 0 {
		halfLifeDays = DefaultDecayHalfLifeDays
	}
	ageDays := now.Sub(ts).Hours() / 24
	if ageDays < 0 {
		ageDays = 0
	}
	return math.Pow(0.5, ageDays/halfLifeDays)
}

// HalfLifeFor returns the half-life that applies to b: its own override
// when set, otherwise fallback.
func HalfLifeFor(b *types.Bullet, fallback float64) float64 {
	if b.ConfidenceDecayHalfLifeDays > 0 {
		return b.ConfidenceDecayHalfLifeDays
	}
	if fallback <= 0 {
		return DefaultDecayHalfLifeDays
	}
	return fallback
}

// DecayedCounts sums the decayed value of b's events per feedback type.
func DecayedCounts(b *types.Bullet, now time.Time, halfLifeDays float64) (helpful, harmful float64) {
	hl := HalfLifeFor(b, halfLifeDays)
	for _, ev := range b.FeedbackEvents {
		v := DecayedValue(ev, now, hl)
		switch ev.Type {
		case types.FeedbackHelpful:
			helpful += v
		case types.FeedbackHarmful:
			harmful += v
		}
	}
	return helpful, harmful
}

// AgeDays is the age of t relative to now in fractional days, clamped at zero.
func AgeDays(t, now time.Time) float64 {
	age := now.Sub(t)
	if age < 0 {
		return 0
	}
	return float64(age) / float64(day)
}
