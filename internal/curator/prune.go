package curator

import (
	"github.com/jonathan-kellerai/cass-memory-system-sub003/internal/playbook"
	"github.com/jonathan-kellerai/cass-memory-system-sub003/internal/ratchet"
	"github.com/jonathan-kellerai/cass-memory-system-sub003/internal/types"
)

// PruneReport summarises a demotion sweep.
type PruneReport struct {
	Evaluated  int                        `json:"evaluated" yaml:"evaluated"`
	Decisions  []ratchet.DemotionDecision `json:"decisions" yaml:"decisions"`
	Demoted    int                        `json:"demoted" yaml:"demoted"`
	Deprecated int                        `json:"deprecated" yaml:"deprecated"`
	Inversions []Inversion                `json:"inversions" yaml:"inversions"`

	Playbook *types.Playbook `json:"-" yaml:"-"`
}

// Prune sweeps pb with a Curator built from opts.
func Prune(pb *types.Playbook, opts ...Option) *PruneReport {
	return New(opts...).Prune(pb)
}

// Prune runs CheckForDemotion over every live bullet and acts on the
// recommendations: a single step down for slightly negative scores, and
// deprecation (with inversion for positive rules) below the prune
// threshold. Only decisions other than "none" are reported.
func (c *Curator) Prune(pb *types.Playbook) *PruneReport {
	now := c.now()
	report := &PruneReport{
		Decisions:  []ratchet.DemotionDecision{},
		Inversions: []Inversion{},
		Playbook:   pb,
	}
	// Inversions append to pb.Bullets; sweep a snapshot.
	res := &Result{}
	for _, b := range playbook.Live(pb) {
		report.Evaluated++
		d := ratchet.CheckForDemotion(b, c.cfg.Scoring, now)
		switch d.Action {
		case ratchet.DemotionStep:
			b.Maturity = d.To
			b.UpdatedAt = now
			report.Demoted++
		case ratchet.DemotionAutoDeprecate:
			c.retire(pb, b, "auto-deprecated: "+d.Reason, "", now, res)
			report.Deprecated++
		default:
			continue
		}
		report.Decisions = append(report.Decisions, d)
	}
	report.Inversions = append(report.Inversions, res.Inversions...)
	if len(report.Decisions) > 0 {
		pb.Metadata.UpdatedAt = now
	}
	return report
}
