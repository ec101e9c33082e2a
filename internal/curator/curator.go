// Package curator folds batches of deltas into a playbook.
//
// Deltas are applied one at a time, in the order given. A delta that fails
// validation is recorded as skipped and never aborts the batch. After every
// applied delta the touched bullets are offered a forward-only promotion.
package curator

import (
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/jonathan-kellerai/cass-memory-system-sub003/internal/ratchet"
	"github.com/jonathan-kellerai/cass-memory-system-sub003/internal/scoring"
	"github.com/jonathan-kellerai/cass-memory-system-sub003/internal/search"
	"github.com/jonathan-kellerai/cass-memory-system-sub003/internal/types"
)

const (
	// DefaultDedupSimilarityThreshold is the similarity at which two bullets
	// count as duplicates.
	DefaultDedupSimilarityThreshold = 0.85

	// AntiPatternPrefix starts the content of every inverted bullet.
	AntiPatternPrefix = "AVOID: "
)

// Config holds the curation policy.
type Config struct {
	Scoring scoring.Config

	// DedupSimilarityThreshold suppresses adds at or above this similarity.
	DedupSimilarityThreshold float64

	// NewBulletState is the state given to bullets created by add deltas.
	NewBulletState types.State
}

// DefaultConfig returns the default curation policy.
func DefaultConfig() Config {
	return Config{
		Scoring:                  scoring.DefaultConfig(),
		DedupSimilarityThreshold: DefaultDedupSimilarityThreshold,
		NewBulletState:           types.StateDraft,
	}
}

func (c Config) withDefaults() Config {
	c.Scoring = c.Scoring.Normalize()
	if c.DedupSimilarityThreshold <= 0 || c.DedupSimilarityThreshold > 1 {
		c.DedupSimilarityThreshold = DefaultDedupSimilarityThreshold
	}
	if !c.NewBulletState.Valid() {
		c.NewBulletState = types.StateDraft
	}
	return c
}

// Curator applies deltas under a fixed policy.
type Curator struct {
	cfg        Config
	comparator search.Comparator
	now        func() time.Time
	logger     *zap.Logger
}

// Option configures a Curator.
type Option func(*Curator)

// WithConfig sets the curation policy.
func WithConfig(cfg Config) Option {
	return func(c *Curator) {
		c.cfg = cfg
	}
}

// WithComparator replaces the token-overlap similarity.
func WithComparator(cmp search.Comparator) Option {
	return func(c *Curator) {
		if cmp != nil {
			c.comparator = cmp
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Curator) {
		if now != nil {
			c.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Curator) {
		if l != nil {
			c.logger = l
		}
	}
}

// New builds a Curator.
func New(opts ...Option) *Curator {
	c := &Curator{
		cfg:        DefaultConfig(),
		comparator: search.TokenComparator{},
		now:        func() time.Time { return time.Now().UTC() },
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.cfg = c.cfg.withDefaults()
	return c
}

// Config returns the effective policy.
func (c *Curator) Config() Config { return c.cfg }

// Transition is a maturity change made during curation.
type Transition struct {
	BulletID string         `json:"bulletId" yaml:"bulletId"`
	From     types.Maturity `json:"from" yaml:"from"`
	To       types.Maturity `json:"to" yaml:"to"`
	Reason   string         `json:"reason,omitempty" yaml:"reason,omitempty"`
}

// Inversion records a harmful bullet replaced by an anti-pattern.
type Inversion struct {
	OriginalID    string `json:"originalId" yaml:"originalId"`
	AntiPatternID string `json:"antiPatternId" yaml:"antiPatternId"`
	Content       string `json:"content" yaml:"content"`
	Reason        string `json:"reason,omitempty" yaml:"reason,omitempty"`
}

// Skip explains a delta that was not applied.
type Skip struct {
	Index    int             `json:"index" yaml:"index"`
	Type     types.DeltaType `json:"type" yaml:"type"`
	BulletID string          `json:"bulletId,omitempty" yaml:"bulletId,omitempty"`
	Reason   string          `json:"reason" yaml:"reason"`
	Err      error           `json:"-" yaml:"-"`
}

// Result summarises one Curate call.
type Result struct {
	Applied    int          `json:"applied" yaml:"applied"`
	Skipped    int          `json:"skipped" yaml:"skipped"`
	Added      []string     `json:"added,omitempty" yaml:"added,omitempty"`
	Inversions []Inversion  `json:"inversions" yaml:"inversions"`
	Promotions []Transition `json:"promotions" yaml:"promotions"`
	Demotions  []Transition `json:"demotions" yaml:"demotions"`
	Skips      []Skip       `json:"skips,omitempty" yaml:"skips,omitempty"`

	Playbook *types.Playbook `json:"-" yaml:"-"`
}

// Curate applies deltas to pb with a Curator built from opts.
func Curate(pb *types.Playbook, deltas []types.Delta, opts ...Option) *Result {
	return New(opts...).Curate(pb, deltas)
}

// Curate applies deltas to pb in order and returns what happened. pb is
// modified in place and returned in Result.Playbook.
func (c *Curator) Curate(pb *types.Playbook, deltas []types.Delta) *Result {
	res := &Result{
		Inversions: []Inversion{},
		Promotions: []Transition{},
		Demotions:  []Transition{},
		Playbook:   pb,
	}
	now := c.now()
	sessions := make(map[string]bool)

	for i, d := range deltas {
		touched, err := c.apply(pb, d, now, res)
		if err != nil {
			c.skip(res, i, d, err)
			continue
		}
		res.Applied++
		if s := d.Session(); s != "" {
			sessions[s] = true
		}
		for _, b := range touched {
			c.promote(b, now, res)
		}
	}

	if res.Applied > 0 {
		pb.Metadata.UpdatedAt = now
		pb.Metadata.LastReflection = &now
		pb.Metadata.TotalReflections++
		pb.Metadata.TotalSessionsProcessed += len(sessions)
	}
	return res
}

func (c *Curator) skip(res *Result, index int, d types.Delta, err error) {
	s := Skip{Index: index, Type: d.Type(), Reason: err.Error(), Err: err}
	var ve *types.ValidationError
	if errors.As(err, &ve) {
		s.BulletID = ve.BulletID
	}
	res.Skipped++
	res.Skips = append(res.Skips, s)
	c.logger.Debug("delta skipped",
		zap.Int("index", index),
		zap.String("type", string(d.Type())),
		zap.String("bullet_id", s.BulletID),
		zap.Error(err))
}

// promote applies a forward-only maturity move to b. Draft bullets that
// leave candidate become active.
func (c *Curator) promote(b *types.Bullet, now time.Time, res *Result) {
	if b.IsDeprecated() {
		return
	}
	if b.Maturity == "" {
		b.Maturity = types.MaturityCandidate
	}
	from := b.Maturity
	next := ratchet.CheckForPromotion(b, c.cfg.Scoring, now)
	if next.Rank() <= from.Rank() {
		return
	}
	b.Maturity = next
	b.PromotedAt = &now
	b.UpdatedAt = now
	if b.State == types.StateDraft && next.Rank() > types.MaturityCandidate.Rank() {
		b.State = types.StateActive
	}
	res.Promotions = append(res.Promotions, Transition{BulletID: b.ID, From: from, To: next})
}
