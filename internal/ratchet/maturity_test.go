package ratchet

import (
	"strings"
	"testing"
	"time"

	"github.com/jonathan-kellerai/cass-memory-system-sub003/internal/scoring"
	"github.com/jonathan-kellerai/cass-memory-system-sub003/internal/types"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// noDecay keeps every event at full weight for the duration of a test.
func noDecay() scoring.Config {
	cfg := scoring.DefaultConfig()
	cfg.DecayHalfLifeDays = 1e9
	return cfg
}

// newBullet is a test helper that builds a bullet with n helpful and m harmful events.
func newBullet(t *testing.T, maturity types.Maturity, helpful, harmful int) *types.Bullet {
	t.Helper()
	b := &types.Bullet{ID: "b-1", Maturity: maturity, State: types.StateActive}
	for i := 0; i < helpful; i++ {
		b.FeedbackEvents = append(b.FeedbackEvents,
			types.NewFeedbackEvent(types.FeedbackHelpful, now, "s", ""))
	}
	for i := 0; i < harmful; i++ {
		b.FeedbackEvents = append(b.FeedbackEvents,
			types.NewFeedbackEvent(types.FeedbackHarmful, now, "s", ""))
	}
	return b
}

func TestCalculateMaturityState(t *testing.T) {
	tests := []struct {
		name    string
		helpful int
		harmful int
		want    types.Maturity
	}{
		{name: "no feedback", want: types.MaturityCandidate},
		{name: "below active threshold", helpful: 2, want: types.MaturityCandidate},
		{name: "exactly active threshold", helpful: 3, want: types.MaturityEstablished},
		{name: "three harmful deprecates", harmful: 3, want: types.MaturityDeprecated},
		{name: "two harmful is not enough total", harmful: 2, want: types.MaturityCandidate},
		{name: "ratio at 0.3 does not deprecate", helpful: 7, harmful: 3, want: types.MaturityEstablished},
		{name: "ratio above 0.3 deprecates", helpful: 6, harmful: 3, want: types.MaturityDeprecated},
		{name: "proven", helpful: 10, want: types.MaturityProven},
		{name: "proven blocked by harm ratio", helpful: 10, harmful: 2, want: types.MaturityEstablished},
		{name: "proven with small harm", helpful: 19, harmful: 1, want: types.MaturityProven},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newBullet(t, types.MaturityCandidate, tt.helpful, tt.harmful)
			if got := CalculateMaturityState(b, noDecay(), now); got != tt.want {
				t.Errorf("CalculateMaturityState() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestCalculateMaturityState_DeprecatedIsAbsorbing(t *testing.T) {
	b := newBullet(t, types.MaturityProven, 20, 0)
	b.Deprecated = true
	if got := CalculateMaturityState(b, noDecay(), now); got != types.MaturityDeprecated {
		t.Errorf("CalculateMaturityState() = %s, want deprecated", got)
	}

	b2 := newBullet(t, types.MaturityDeprecated, 20, 0)
	if got := CalculateMaturityState(b2, noDecay(), now); got != types.MaturityDeprecated {
		t.Errorf("CalculateMaturityState() = %s, want deprecated", got)
	}
}

func TestCalculateMaturityState_DecayLowersTotal(t *testing.T) {
	cfg := scoring.DefaultConfig()
	b := &types.Bullet{ID: "b-old", Maturity: types.MaturityEstablished}
	for i := 0; i < 4; i++ {
		b.FeedbackEvents = append(b.FeedbackEvents,
			types.NewFeedbackEvent(types.FeedbackHelpful, now.AddDate(0, 0, -180), "s", ""))
	}
	// 4 events at two half-lives count as 1.0 in total.
	if got := CalculateMaturityState(b, cfg, now); got != types.MaturityCandidate {
		t.Errorf("CalculateMaturityState() = %s, want candidate", got)
	}
}

func TestCheckForPromotion_NeverDowngrades(t *testing.T) {
	maturities := []types.Maturity{
		types.MaturityCandidate, types.MaturityEstablished, types.MaturityProven,
	}
	mixes := [][2]int{{0, 0}, {2, 0}, {3, 0}, {12, 0}, {0, 5}, {5, 5}, {10, 2}}

	for _, m := range maturities {
		for _, mix := range mixes {
			b := newBullet(t, m, mix[0], mix[1])
			got := CheckForPromotion(b, noDecay(), now)
			if got.Rank() < m.Rank() {
				t.Errorf("CheckForPromotion(%s, %v) = %s, ranks lower", m, mix, got)
			}
		}
	}
}

func TestCheckForPromotion(t *testing.T) {
	tests := []struct {
		name     string
		maturity types.Maturity
		helpful  int
		harmful  int
		want     types.Maturity
	}{
		{"candidate to established", types.MaturityCandidate, 3, 0, types.MaturityEstablished},
		{"candidate straight to proven", types.MaturityCandidate, 10, 0, types.MaturityProven},
		{"established to proven", types.MaturityEstablished, 11, 0, types.MaturityProven},
		{"proven is a no-op", types.MaturityProven, 0, 0, types.MaturityProven},
		{"deprecated is a no-op", types.MaturityDeprecated, 20, 0, types.MaturityDeprecated},
		{"harmful does not deprecate through promotion", types.MaturityEstablished, 0, 5, types.MaturityEstablished},
		{"empty maturity treated as candidate", "", 0, 0, types.MaturityCandidate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newBullet(t, tt.maturity, tt.helpful, tt.harmful)
			if got := CheckForPromotion(b, noDecay(), now); got != tt.want {
				t.Errorf("CheckForPromotion() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestCheckForDemotion(t *testing.T) {
	tests := []struct {
		name       string
		maturity   types.Maturity
		helpful    int
		harmful    int
		pinned     bool
		wantAction DemotionAction
		wantTo     types.Maturity
	}{
		{"positive score keeps maturity", types.MaturityProven, 5, 0, false, DemotionNone, types.MaturityProven},
		// established: raw = 3 - 4 = -1, x1.0
		{"slightly negative established steps down", types.MaturityEstablished, 3, 1, false, DemotionStep, types.MaturityCandidate},
		// proven: raw = 3 - 4 = -1, x1.5
		{"slightly negative proven steps down", types.MaturityProven, 3, 1, false, DemotionStep, types.MaturityEstablished},
		{"candidate has no lower stage", types.MaturityCandidate, 0, 1, false, DemotionNone, types.MaturityCandidate},
		// established: raw = 0 - 4 = -4 < -3
		{"very negative auto-deprecates", types.MaturityEstablished, 0, 1, false, DemotionAutoDeprecate, types.MaturityDeprecated},
		{"pinned is exempt", types.MaturityEstablished, 0, 5, true, DemotionNone, types.MaturityEstablished},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newBullet(t, tt.maturity, tt.helpful, tt.harmful)
			b.Pinned = tt.pinned
			before := b.Maturity

			got := CheckForDemotion(b, noDecay(), now)
			if got.Action != tt.wantAction {
				t.Errorf("Action = %s, want %s (reason %q)", got.Action, tt.wantAction, got.Reason)
			}
			if got.To != tt.wantTo {
				t.Errorf("To = %s, want %s", got.To, tt.wantTo)
			}
			if b.Maturity != before {
				t.Errorf("CheckForDemotion mutated maturity to %s", b.Maturity)
			}
		})
	}
}

func TestEvaluate_Reason(t *testing.T) {
	b := newBullet(t, types.MaturityCandidate, 0, 3)
	res := Evaluate(b, noDecay(), now)
	if !res.Transitioned {
		t.Fatal("expected transition")
	}
	if !strings.Contains(res.Reason, "harmful ratio") {
		t.Errorf("reason %q should mention harmful ratio", res.Reason)
	}
	if res.HarmfulRatio != 1 {
		t.Errorf("HarmfulRatio = %v, want 1", res.HarmfulRatio)
	}
}

func TestGetDistribution(t *testing.T) {
	pb := &types.Playbook{Bullets: []*types.Bullet{
		{ID: "a", Maturity: types.MaturityCandidate},
		{ID: "b", Maturity: types.MaturityEstablished, Pinned: true},
		{ID: "c", Maturity: types.MaturityProven},
		{ID: "d", Maturity: types.MaturityEstablished, Deprecated: true},
		{ID: "e", Maturity: types.MaturityDeprecated},
		{ID: "f", Maturity: "weird"},
	}}
	dist := GetDistribution(pb)
	if dist.Total != 6 || dist.Candidate != 1 || dist.Established != 1 || dist.Proven != 1 ||
		dist.Deprecated != 2 || dist.Unknown != 1 || dist.Pinned != 1 {
		t.Errorf("unexpected distribution: %+v", dist)
	}
}
