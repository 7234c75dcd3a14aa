package predicate

import "hearsay.ai/internal/sim/world/kernel/kind"

type TermKind uint8

const (
	TermInvalid TermKind = iota
	TermHidden
	TermValue
	TermEntity
	TermFact
)

// FactRef points at a master fact. Mask is the view of that fact the
// embedding fact conveys (e.g. what a speaker actually said).
type FactRef struct {
	ID   string
	Mask Mask
}

// Term is one predicate position: a primitive, an entity reference, a nested
// fact reference, or the hidden sentinel.
type Term struct {
	Kind  TermKind
	Value int64
	Ref   kind.Ref
	Fact  FactRef
}

func Hidden() Term { return Term{Kind: TermHidden} }
func Value(v int64) Term { return Term{Kind: TermValue, Value: v} }
func Entity(k kind.Kind, id string) Term { return Term{Kind: TermEntity, Ref: kind.Ref{Kind: k, ID: id}} }
func FactTerm(id string, mask Mask) Term { return Term{Kind: TermFact, Fact: FactRef{ID: id, Mask: mask}} }

func (t Term) IsHidden() bool { return t.Kind == TermHidden }

// Equal compares structurally: entities by kind and id, facts by referenced
// id, primitives by value. The mask carried by a fact reference is not part
// of its identity.
func (t Term) Equal(o Term) bool {
	if t.Kind != o.Kind {
		return false
	}
	switch t.Kind {
	case TermValue:
		return t.Value == o.Value
	case TermEntity:
		return t.Ref == o.Ref
	case TermFact:
		return t.Fact.ID == o.Fact.ID
	case TermHidden:
		return true
	default:
		return false
	}
}

func (t Term) matches(f Field) bool {
	switch t.Kind {
	case TermHidden:
		return true
	case TermValue:
		return f.Type == FieldTime
	case TermFact:
		return f.Type == FieldFact && t.Fact.ID != ""
	case TermEntity:
		k, ok := f.Type.EntityKind()
		return ok && t.Ref.Kind == k && t.Ref.ID != ""
	default:
		return false
	}
}
