package model

import (
	"hearsay.ai/internal/sim/world/kernel/kind"
	"hearsay.ai/internal/sim/world/logic/predicate"
)

// Fact is either a canonical master or an agent-owned derived copy of one.
// Copies carry their own mask; the predicate of a copy is always read from
// its master.
type Fact struct {
	FactID      string
	Predicate   predicate.Predicate
	Owner       string
	CreatedTick uint64
	Query       bool
	Mask        predicate.Mask

	Master   bool
	MasterID string
	// Copies maps owning agent id to derived copy id (masters only).
	Copies map[string]string
}

func (f *Fact) ID() string      { return f.FactID }
func (f *Fact) Kind() kind.Kind { return kind.Fact }

// Action is the fact's kind tag.
func (f *Fact) Action() string { return f.Predicate.Shape.String() }

type TermView struct {
	Field  string `json:"field"`
	Type   string `json:"type"`
	Hidden bool   `json:"hidden,omitempty"`
	Value  any    `json:"value,omitempty"`
}

type FactView struct {
	ID          string     `json:"id"`
	Master      string     `json:"master,omitempty"`
	Action      string     `json:"action"`
	Query       bool       `json:"query,omitempty"`
	CreatedTick uint64     `json:"created_tick"`
	Terms       []TermView `json:"terms"`
}

// Serialize renders the fact through its own mask. A master rendered for a
// viewer (which the change tracker never asks for) fails closed: every field
// is hidden.
func (f *Fact) Serialize(ctx SerializeContext) any {
	mask := f.Mask
	if ctx.Viewer != "" && (f.Master || f.Owner != ctx.Viewer) {
		mask = predicate.FullMask(f.Predicate.Shape)
	}
	v := FactView{
		ID:          f.FactID,
		Action:      f.Action(),
		Query:       f.Query,
		CreatedTick: f.CreatedTick,
	}
	if ctx.Viewer == "" {
		v.Master = f.MasterID
	}
	fields := f.Predicate.Shape.Fields()
	terms := f.Predicate.Masked(mask)
	v.Terms = make([]TermView, 0, len(terms))
	for i, t := range terms {
		if i >= len(fields) {
			break
		}
		tv := TermView{Field: fields[i].Name, Type: fields[i].Type.String()}
		switch t.Kind {
		case predicate.TermValue:
			tv.Value = t.Value
		case predicate.TermEntity:
			tv.Value = t.Ref.ID
		case predicate.TermFact:
			id := t.Fact.ID
			if ctx.Viewer != "" {
				id = ""
				if ctx.Facts != nil {
					id = ctx.Facts.CopyIDFor(t.Fact.ID, ctx.Viewer)
				}
			}
			if id == "" {
				tv.Hidden = true
			} else {
				tv.Value = id
			}
		default:
			tv.Hidden = true
		}
		v.Terms = append(v.Terms, tv)
	}
	return v
}
