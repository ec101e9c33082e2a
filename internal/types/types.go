// Package types defines the data structures shared by the cass-memory
// curation engine: bullets, feedback events, playbooks and deltas.
package types

import "time"

// Scope identifies which playbook a bullet belongs to.
type Scope string

const (
	// ScopeGlobal bullets live in the per-user playbook and apply everywhere.
	ScopeGlobal Scope = "global"

	// ScopeWorkspace bullets live in a repository's playbook.
	ScopeWorkspace Scope = "workspace"
)

// Valid reports whether s is a known scope.
func (s Scope) Valid() bool {
	return s == ScopeGlobal || s == ScopeWorkspace
}

// Kind classifies what a bullet expresses.
type Kind string

const (
	KindRule              Kind = "rule"
	KindAntiPattern       Kind = "anti_pattern"
	KindProjectConvention Kind = "project_convention"
	KindStackPattern      Kind = "stack_pattern"
	KindWorkflowRule      Kind = "workflow_rule"
)

// State is the editorial lifecycle of a bullet. It is independent of
// Maturity and acts as a multiplier on the effective score.
type State string

const (
	// StateDraft is a bullet that has not been confirmed by a human or by feedback.
	StateDraft State = "draft"

	// StateActive is a confirmed bullet.
	StateActive State = "active"

	// StateRetired is a bullet kept for history only.
	StateRetired State = "retired"
)

// Valid reports whether s is a known state.
func (s State) Valid() bool {
	return s == StateDraft || s == StateActive || s == StateRetired
}

// Maturity is the feedback-derived lifecycle stage of a bullet.
//
// Bullets move candidate -> established -> proven as helpful feedback
// accumulates. Deprecated is absorbing: once reached it is never left.
type Maturity string

const (
	// MaturityCandidate is the initial stage for new bullets.
	MaturityCandidate Maturity = "candidate"

	// MaturityEstablished bullets have enough feedback to be trusted.
	MaturityEstablished Maturity = "established"

	// MaturityProven bullets have consistent helpful feedback and almost no harm.
	MaturityProven Maturity = "proven"

	// MaturityDeprecated bullets were judged harmful and no longer influence behavior.
	MaturityDeprecated Maturity = "deprecated"
)

// Rank orders maturities for forward-only comparisons. Deprecated ranks
// below candidate so that no promotion can ever leave it.
func (m Maturity) Rank() int {
	switch m {
	case MaturityCandidate:
		return 1
	case MaturityEstablished:
		return 2
	case MaturityProven:
		return 3
	default:
		return 0
	}
}

// Valid reports whether m is a known maturity.
func (m Maturity) Valid() bool {
	switch m {
	case MaturityCandidate, MaturityEstablished, MaturityProven, MaturityDeprecated:
		return true
	}
	return false
}

// FeedbackType is the polarity of a feedback event.
type FeedbackType string

const (
	FeedbackHelpful FeedbackType = "helpful"
	FeedbackHarmful FeedbackType = "harmful"
)

// FeedbackEvent records one helpful or harmful observation about a bullet.
// The event log is the source of truth for every score.
type FeedbackEvent struct {
	Type FeedbackType `yaml:"type" json:"type"`

	// Timestamp is kept as RFC 3339 text. A value that does not parse
	// contributes nothing to the score instead of failing the document load.
	Timestamp string `yaml:"timestamp" json:"timestamp"`

	SessionPath string `yaml:"sessionPath,omitempty" json:"sessionPath,omitempty"`
	Reason      string `yaml:"reason,omitempty" json:"reason,omitempty"`
	Context     string `yaml:"context,omitempty" json:"context,omitempty"`

	// DecayedValue is an informational cache written by reporting code.
	// Scoring always recomputes it.
	DecayedValue *float64 `yaml:"decayedValue,omitempty" json:"decayedValue,omitempty"`
}

// NewFeedbackEvent builds an event stamped at ts.
func NewFeedbackEvent(kind FeedbackType, ts time.Time, sessionPath, reason string) FeedbackEvent {
	return FeedbackEvent{
		Type:        kind,
		Timestamp:   ts.UTC().Format(time.RFC3339Nano),
		SessionPath: sessionPath,
		Reason:      reason,
	}
}

// Time parses the event timestamp.
func (e FeedbackEvent) Time() (time.Time, bool) {
	if e.Timestamp == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, e.Timestamp)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Bullet is a single persisted rule or pattern.
type Bullet struct {
	ID        string `yaml:"id" json:"id"`
	Scope     Scope  `yaml:"scope" json:"scope"`
	Workspace string `yaml:"workspace,omitempty" json:"workspace,omitempty"`
	Category  string `yaml:"category" json:"category"`
	Content   string `yaml:"content" json:"content"`
	Kind      Kind   `yaml:"kind" json:"kind"`

	IsNegative bool `yaml:"isNegative" json:"isNegative"`

	State      State      `yaml:"state" json:"state"`
	Maturity   Maturity   `yaml:"maturity" json:"maturity"`
	PromotedAt *time.Time `yaml:"promotedAt,omitempty" json:"promotedAt,omitempty"`

	FeedbackEvents []FeedbackEvent `yaml:"feedbackEvents" json:"feedbackEvents"`

	// HelpfulCount and HarmfulCount mirror FeedbackEvents and are only
	// written by playbook.SyncCounts.
	HelpfulCount int `yaml:"helpfulCount" json:"helpfulCount"`
	HarmfulCount int `yaml:"harmfulCount" json:"harmfulCount"`

	// ConfidenceDecayHalfLifeDays overrides the configured half-life when > 0.
	ConfidenceDecayHalfLifeDays float64 `yaml:"confidenceDecayHalfLifeDays,omitempty" json:"confidenceDecayHalfLifeDays,omitempty"`

	Pinned       bool   `yaml:"pinned,omitempty" json:"pinned,omitempty"`
	PinnedReason string `yaml:"pinnedReason,omitempty" json:"pinnedReason,omitempty"`

	Deprecated        bool       `yaml:"deprecated,omitempty" json:"deprecated,omitempty"`
	DeprecatedAt      *time.Time `yaml:"deprecatedAt,omitempty" json:"deprecatedAt,omitempty"`
	DeprecationReason string     `yaml:"deprecationReason,omitempty" json:"deprecationReason,omitempty"`
	ReplacedBy        string     `yaml:"replacedBy,omitempty" json:"replacedBy,omitempty"`

	// DerivedFrom lists the bullets this one was inverted or merged from.
	DerivedFrom []string `yaml:"derivedFrom,omitempty" json:"derivedFrom,omitempty"`

	CreatedAt time.Time `yaml:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `yaml:"updatedAt" json:"updatedAt"`

	SourceSessions []string `yaml:"sourceSessions,omitempty" json:"sourceSessions,omitempty"`
	SourceAgents   []string `yaml:"sourceAgents,omitempty" json:"sourceAgents,omitempty"`
	Reasoning      string   `yaml:"reasoning,omitempty" json:"reasoning,omitempty"`
	Tags           []string `yaml:"tags,omitempty" json:"tags,omitempty"`
}

// IsDeprecated reports whether either deprecation marker is set.
func (b *Bullet) IsDeprecated() bool {
	return b.Deprecated || b.Maturity == MaturityDeprecated
}

// IsLive reports whether the bullet still takes part in dedup and scoring
// decisions: not deprecated and not retired.
func (b *Bullet) IsLive() bool {
	return !b.IsDeprecated() && b.State != StateRetired
}

// Metadata tracks playbook-level bookkeeping.
type Metadata struct {
	CreatedAt              time.Time  `yaml:"createdAt" json:"createdAt"`
	UpdatedAt              time.Time  `yaml:"updatedAt" json:"updatedAt"`
	LastReflection         *time.Time `yaml:"lastReflection,omitempty" json:"lastReflection,omitempty"`
	TotalReflections       int        `yaml:"totalReflections" json:"totalReflections"`
	TotalSessionsProcessed int        `yaml:"totalSessionsProcessed" json:"totalSessionsProcessed"`
}

// CurrentSchemaVersion is written into every saved playbook.
const CurrentSchemaVersion = 2

// Playbook is the persisted collection of bullets for one scope.
type Playbook struct {
	SchemaVersion int       `yaml:"schemaVersion" json:"schemaVersion"`
	Name          string    `yaml:"name" json:"name"`
	Description   string    `yaml:"description,omitempty" json:"description,omitempty"`
	Metadata      Metadata  `yaml:"metadata" json:"metadata"`
	Bullets       []*Bullet `yaml:"bullets" json:"bullets"`
}

// NewPlaybook returns an empty playbook stamped at now.
func NewPlaybook(name string, now time.Time) *Playbook {
	return &Playbook{
		SchemaVersion: CurrentSchemaVersion,
		Name:          name,
		Metadata: Metadata{
			CreatedAt: now,
			UpdatedAt: now,
		},
		Bullets: []*Bullet{},
	}
}
