package types

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// DeltaType is the discriminator carried by serialized deltas.
type DeltaType string

const (
	DeltaAdd       DeltaType = "add"
	DeltaUpdate    DeltaType = "update"
	DeltaHelpful   DeltaType = "helpful"
	DeltaHarmful   DeltaType = "harmful"
	DeltaMerge     DeltaType = "merge"
	DeltaDeprecate DeltaType = "deprecate"
)

// Delta is a proposed mutation to a playbook. The set of implementations
// is closed; consumers switch over the concrete types.
type Delta interface {
	Type() DeltaType
	Session() string
	isDelta()
}

// BulletDraft carries the caller-supplied fields of a bullet. Empty fields
// mean "not provided".
type BulletDraft struct {
	Content    string   `yaml:"content,omitempty" json:"content,omitempty"`
	Category   string   `yaml:"category,omitempty" json:"category,omitempty"`
	Kind       Kind     `yaml:"kind,omitempty" json:"kind,omitempty"`
	Scope      Scope    `yaml:"scope,omitempty" json:"scope,omitempty"`
	Workspace  string   `yaml:"workspace,omitempty" json:"workspace,omitempty"`
	IsNegative bool     `yaml:"isNegative,omitempty" json:"isNegative,omitempty"`
	Reasoning  string   `yaml:"reasoning,omitempty" json:"reasoning,omitempty"`
	Tags       []string `yaml:"tags,omitempty" json:"tags,omitempty"`
}

// AddDelta proposes a new bullet.
type AddDelta struct {
	Bullet        BulletDraft
	Reason        string
	SourceSession string
}

// UpdateDelta merges the non-empty fields of Bullet into an existing bullet.
type UpdateDelta struct {
	BulletID      string
	Bullet        BulletDraft
	Reason        string
	SourceSession string
}

// HelpfulDelta records helpful feedback on a bullet.
type HelpfulDelta struct {
	BulletID      string
	Reason        string
	Context       string
	SourceSession string
}

// HarmfulDelta records harmful feedback on a bullet.
type HarmfulDelta struct {
	BulletID      string
	Reason        string
	Context       string
	SourceSession string
}

// MergeDelta reconciles two bullets detected as duplicates after the fact.
type MergeDelta struct {
	BulletIDs     []string
	Reason        string
	SourceSession string
}

// DeprecateDelta retires a bullet by hand.
type DeprecateDelta struct {
	BulletID      string
	Reason        string
	ReplacedBy    string
	SourceSession string
}

// InvalidDelta stands in for a serialized delta that could not be mapped
// to a known variant. Curation counts it as skipped.
type InvalidDelta struct {
	RawType       string
	Err           error
	SourceSession string
}

func (AddDelta) Type() DeltaType       { return DeltaAdd }
func (UpdateDelta) Type() DeltaType    { return DeltaUpdate }
func (HelpfulDelta) Type() DeltaType   { return DeltaHelpful }
func (HarmfulDelta) Type() DeltaType   { return DeltaHarmful }
func (MergeDelta) Type() DeltaType     { return DeltaMerge }
func (DeprecateDelta) Type() DeltaType { return DeltaDeprecate }
func (d InvalidDelta) Type() DeltaType { return DeltaType(d.RawType) }

func (d AddDelta) Session() string       { return d.SourceSession }
func (d UpdateDelta) Session() string    { return d.SourceSession }
func (d HelpfulDelta) Session() string   { return d.SourceSession }
func (d HarmfulDelta) Session() string   { return d.SourceSession }
func (d MergeDelta) Session() string     { return d.SourceSession }
func (d DeprecateDelta) Session() string { return d.SourceSession }
func (d InvalidDelta) Session() string   { return d.SourceSession }

func (AddDelta) isDelta()       {}
func (UpdateDelta) isDelta()    {}
func (HelpfulDelta) isDelta()   {}
func (HarmfulDelta) isDelta()   {}
func (MergeDelta) isDelta()     {}
func (DeprecateDelta) isDelta() {}
func (InvalidDelta) isDelta()   {}

// deltaWire is the serialized form shared by every variant.
type deltaWire struct {
	Type          string       `yaml:"type" json:"type"`
	Bullet        *BulletDraft `yaml:"bullet,omitempty" json:"bullet,omitempty"`
	BulletID      string       `yaml:"bulletId,omitempty" json:"bulletId,omitempty"`
	BulletIDs     []string     `yaml:"bulletIds,omitempty" json:"bulletIds,omitempty"`
	Reason        string       `yaml:"reason,omitempty" json:"reason,omitempty"`
	Context       string       `yaml:"context,omitempty" json:"context,omitempty"`
	ReplacedBy    string       `yaml:"replacedBy,omitempty" json:"replacedBy,omitempty"`
	SourceSession string       `yaml:"sourceSession,omitempty" json:"sourceSession,omitempty"`
}

func (w deltaWire) toDelta() Delta {
	draft := BulletDraft{}
	if w.Bullet != nil {
		draft = *w.Bullet
	}
	switch DeltaType(strings.ToLower(strings.TrimSpace(w.Type))) {
	case DeltaAdd:
		return AddDelta{Bullet: draft, Reason: w.Reason, SourceSession: w.SourceSession}
	case DeltaUpdate:
		return UpdateDelta{BulletID: w.BulletID, Bullet: draft, Reason: w.Reason, SourceSession: w.SourceSession}
	case DeltaHelpful:
		return HelpfulDelta{BulletID: w.BulletID, Reason: w.Reason, Context: w.Context, SourceSession: w.SourceSession}
	case DeltaHarmful:
		return HarmfulDelta{BulletID: w.BulletID, Reason: w.Reason, Context: w.Context, SourceSession: w.SourceSession}
	case DeltaMerge:
		return MergeDelta{BulletIDs: w.BulletIDs, Reason: w.Reason, SourceSession: w.SourceSession}
	case DeltaDeprecate:
		return DeprecateDelta{BulletID: w.BulletID, Reason: w.Reason, ReplacedBy: w.ReplacedBy, SourceSession: w.SourceSession}
	default:
		return InvalidDelta{
			RawType:       w.Type,
			Err:           fmt.Errorf("%w: %q", ErrUnknownDeltaType, w.Type),
			SourceSession: w.SourceSession,
		}
	}
}

func toWire(d Delta) deltaWire {
	switch v := d.(type) {
	case AddDelta:
		draft := v.Bullet
		return deltaWire{Type: string(DeltaAdd), Bullet: &draft, Reason: v.Reason, SourceSession: v.SourceSession}
	case UpdateDelta:
		draft := v.Bullet
		return deltaWire{Type: string(DeltaUpdate), BulletID: v.BulletID, Bullet: &draft, Reason: v.Reason, SourceSession: v.SourceSession}
	case HelpfulDelta:
		return deltaWire{Type: string(DeltaHelpful), BulletID: v.BulletID, Reason: v.Reason, Context: v.Context, SourceSession: v.SourceSession}
	case HarmfulDelta:
		return deltaWire{Type: string(DeltaHarmful), BulletID: v.BulletID, Reason: v.Reason, Context: v.Context, SourceSession: v.SourceSession}
	case MergeDelta:
		return deltaWire{Type: string(DeltaMerge), BulletIDs: v.BulletIDs, Reason: v.Reason, SourceSession: v.SourceSession}
	case DeprecateDelta:
		return deltaWire{Type: string(DeltaDeprecate), BulletID: v.BulletID, Reason: v.Reason, ReplacedBy: v.ReplacedBy, SourceSession: v.SourceSession}
	case InvalidDelta:
		return deltaWire{Type: v.RawType, SourceSession: v.SourceSession}
	default:
		return deltaWire{}
	}
}

// DecodeDeltas parses a JSON or YAML document holding either a list of
// deltas or a mapping with a "deltas" list. Entries that cannot be mapped to
// a known variant become InvalidDelta values; only an unreadable document is
// an error.
func DecodeDeltas(data []byte) ([]Delta, error) {
	if strings.TrimSpace(string(data)) == "" {
		return nil, nil
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse deltas: %w", err)
	}
	root := &doc
	if root.Kind == yaml.DocumentNode && len(root.Content) > 0 {
		root = root.Content[0]
	}

	var items []*yaml.Node
	switch root.Kind {
	case yaml.SequenceNode:
		items = root.Content
	case yaml.MappingNode:
		var envelope struct {
			Deltas yaml.Node `yaml:"deltas"`
		}
		if err := root.Decode(&envelope); err != nil {
			return nil, fmt.Errorf("decode delta envelope: %w", err)
		}
		switch envelope.Deltas.Kind {
		case 0:
		case yaml.SequenceNode:
			items = envelope.Deltas.Content
		default:
			return nil, ErrMalformedDeltas
		}
	default:
		return nil, ErrMalformedDeltas
	}

	deltas := make([]Delta, 0, len(items))
	for _, item := range items {
		deltas = append(deltas, decodeDelta(item))
	}
	return deltas, nil
}

// decodeDelta maps one list entry. A wrongly shaped entry keeps whatever
// type and session it names so the skip report can point at it.
func decodeDelta(node *yaml.Node) Delta {
	var w deltaWire
	if err := node.Decode(&w); err != nil {
		var head struct {
			Type          any `yaml:"type"`
			SourceSession any `yaml:"sourceSession"`
		}
		_ = node.Decode(&head)
		return InvalidDelta{
			RawType:       scalarString(head.Type),
			Err:           fmt.Errorf("%w: %v", ErrMalformedDelta, err),
			SourceSession: scalarString(head.SourceSession),
		}
	}
	return w.toDelta()
}

func scalarString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int, int64, float64, bool:
		return fmt.Sprint(x)
	default:
		return ""
	}
}

// EncodeDeltas renders deltas in the same wire format DecodeDeltas reads.
func EncodeDeltas(deltas []Delta) ([]byte, error) {
	wires := make([]deltaWire, 0, len(deltas))
	for _, d := range deltas {
		wires = append(wires, toWire(d))
	}
	out, err := yaml.Marshal(map[string]any{"deltas": wires})
	if err != nil {
		return nil, fmt.Errorf("encode deltas: %w", err)
	}
	return out, nil
}
