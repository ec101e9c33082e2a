package curator

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/jonathan-kellerai/cass-memory-system-sub003/internal/playbook"
	"github.com/jonathan-kellerai/cass-memory-system-sub003/internal/storage"
	"github.com/jonathan-kellerai/cass-memory-system-sub003/internal/types"
)

// OutcomeStatus is how a session that used some bullets ended.
type OutcomeStatus string

const (
	OutcomeSuccess OutcomeStatus = "success"
	OutcomeFailure OutcomeStatus = "failure"
	OutcomeMixed   OutcomeStatus = "mixed"
)

// Outcome reports the bullets a session relied on and how it went.
type Outcome struct {
	SessionPath string        `json:"sessionPath" yaml:"sessionPath"`
	Status      OutcomeStatus `json:"status" yaml:"status"`
	BulletIDs   []string      `json:"bulletIds" yaml:"bulletIds"`
	Reason      string        `json:"reason,omitempty" yaml:"reason,omitempty"`
}

// feedback maps the status to a feedback polarity. Mixed outcomes carry
// no signal.
func (o Outcome) feedback() (types.FeedbackType, bool) {
	switch OutcomeStatus(strings.ToLower(string(o.Status))) {
	case OutcomeSuccess:
		return types.FeedbackHelpful, true
	case OutcomeFailure:
		return types.FeedbackHarmful, true
	default:
		return "", false
	}
}

// DecodeOutcomes parses a JSON or YAML list of outcomes, or a mapping with
// an "outcomes" list.
func DecodeOutcomes(data []byte) ([]Outcome, error) {
	if strings.TrimSpace(string(data)) == "" {
		return nil, nil
	}
	var list []Outcome
	if err := yaml.Unmarshal(data, &list); err == nil {
		return list, nil
	}
	var envelope struct {
		Outcomes []Outcome `yaml:"outcomes"`
	}
	if err := yaml.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("parse outcomes: %w", err)
	}
	return envelope.Outcomes, nil
}

// StoreOutcome is the curation result for one store.
type StoreOutcome struct {
	Path   string  `json:"path" yaml:"path"`
	Result *Result `json:"result" yaml:"result"`
}

// OutcomeReport summarises RecordOutcomes.
type OutcomeReport struct {
	Stores []StoreOutcome `json:"stores" yaml:"stores"`

	// Ignored counts outcomes without a feedback signal.
	Ignored int `json:"ignored" yaml:"ignored"`

	// Unmatched lists bullet ids found in none of the stores.
	Unmatched []string `json:"unmatched,omitempty" yaml:"unmatched,omitempty"`
}

// RecordOutcomes turns session outcomes into helpful or harmful feedback.
// Each store is locked, loaded and saved at most once; a store that holds
// none of the referenced bullets is not written. Stores are processed one
// at a time so no two locks are ever held together.
func (c *Curator) RecordOutcomes(ctx context.Context, stores []storage.Storage, outcomes []Outcome) (*OutcomeReport, error) {
	report := &OutcomeReport{Stores: []StoreOutcome{}}

	var signals []Outcome
	for _, o := range outcomes {
		if _, ok := o.feedback(); !ok {
			report.Ignored++
			continue
		}
		signals = append(signals, o)
	}
	if len(signals) == 0 {
		return report, nil
	}

	matched := make(map[string]bool)
	for _, st := range stores {
		var res *Result
		err := st.Update(ctx, func(pb *types.Playbook) error {
			deltas := outcomeDeltas(pb, signals, matched)
			if len(deltas) == 0 {
				return storage.ErrDiscard
			}
			res = c.Curate(pb, deltas)
			return nil
		})
		if err != nil {
			return report, fmt.Errorf("record outcomes in %s: %w", st.Path(), err)
		}
		if res != nil {
			report.Stores = append(report.Stores, StoreOutcome{Path: st.Path(), Result: res})
			c.logger.Info("outcomes recorded",
				zap.String("path", st.Path()),
				zap.Int("applied", res.Applied),
				zap.Int("inversions", len(res.Inversions)))
		}
	}

	seen := make(map[string]bool)
	for _, o := range signals {
		for _, id := range o.BulletIDs {
			if !matched[id] && !seen[id] {
				seen[id] = true
				report.Unmatched = append(report.Unmatched, id)
			}
		}
	}
	return report, nil
}

// RecordOutcomes runs Curator.RecordOutcomes with a Curator built from opts.
func RecordOutcomes(ctx context.Context, stores []storage.Storage, outcomes []Outcome, opts ...Option) (*OutcomeReport, error) {
	return New(opts...).RecordOutcomes(ctx, stores, outcomes)
}

func outcomeDeltas(pb *types.Playbook, outcomes []Outcome, matched map[string]bool) []types.Delta {
	var deltas []types.Delta
	for _, o := range outcomes {
		kind, _ := o.feedback()
		reason := reasonOr(o.Reason, "session "+string(o.Status))
		for _, id := range o.BulletIDs {
			if playbook.FindBullet(pb, id) == nil {
				continue
			}
			matched[id] = true
			if kind == types.FeedbackHelpful {
				deltas = append(deltas, types.HelpfulDelta{BulletID: id, Reason: reason, SourceSession: o.SessionPath})
			} else {
				deltas = append(deltas, types.HarmfulDelta{BulletID: id, Reason: reason, SourceSession: o.SessionPath})
			}
		}
	}
	return deltas
}
