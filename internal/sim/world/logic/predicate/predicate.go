package predicate

import (
	"fmt"

	"hearsay.ai/internal/sim/world/kernel/kind"
)

// Predicate is the typed argument tuple attached to a fact.
type Predicate struct {
	Shape Shape
	Terms []Term
}

// New validates arity and per-position types. Hidden terms are allowed at any
// position; they mark values unknown to whoever created the predicate (questions).
func New(s Shape, terms ...Term) (Predicate, error) {
	if !s.Valid() {
		return Predicate{}, fmt.Errorf("unknown shape %d", uint8(s))
	}
	fields := s.Fields()
	if len(terms) != len(fields) {
		return Predicate{}, fmt.Errorf("%s takes %d terms, got %d", s, len(fields), len(terms))
	}
	for i, t := range terms {
		if !t.matches(fields[i]) {
			return Predicate{}, fmt.Errorf("%s.%s: term does not match %s", s, fields[i].Name, fields[i].Type)
		}
	}
	out := make([]Term, len(terms))
	copy(out, terms)
	return Predicate{Shape: s, Terms: out}, nil
}

func must(p Predicate, err error) Predicate {
	if err != nil {
		panic(err)
	}
	return p
}

func Located(t uint64, agentID, roomID string) Predicate {
	return must(New(ShapeLocated, Value(int64(t)), Entity(kind.Agent, agentID), Entity(kind.Room, roomID)))
}

func Move(t uint64, agentID, fromRoom, toRoom string) Predicate {
	return must(New(ShapeMove, Value(int64(t)), Entity(kind.Agent, agentID), Entity(kind.Room, fromRoom), Entity(kind.Room, toRoom)))
}

func Pickup(t uint64, agentID, itemID, roomID string) Predicate {
	return must(New(ShapePickup, Value(int64(t)), Entity(kind.Agent, agentID), Entity(kind.Item, itemID), Entity(kind.Room, roomID)))
}

func Drop(t uint64, agentID, itemID, roomID string) Predicate {
	return must(New(ShapeDrop, Value(int64(t)), Entity(kind.Agent, agentID), Entity(kind.Item, itemID), Entity(kind.Room, roomID)))
}

func Told(t uint64, speakerID, listenerID string, fact FactRef) Predicate {
	return must(New(ShapeTold, Value(int64(t)), Entity(kind.Agent, speakerID), Entity(kind.Agent, listenerID), FactTerm(fact.ID, fact.Mask)))
}

func Traded(t uint64, agentID, otherID string) Predicate {
	return must(New(ShapeTraded, Value(int64(t)), Entity(kind.Agent, agentID), Entity(kind.Agent, otherID)))
}

func (p Predicate) Valid() bool {
	return p.Shape.Valid() && len(p.Terms) == p.Shape.Arity()
}

// Field returns the raw term stored under name.
func (p Predicate) Field(name string) (Term, bool) {
	i, ok := p.Shape.FieldIndex(name)
	if !ok || i >= len(p.Terms) {
		return Term{}, false
	}
	return p.Terms[i], true
}

// Masked returns the terms with every position hidden by m replaced by the
// hidden sentinel.
func (p Predicate) Masked(m Mask) []Term {
	out := make([]Term, len(p.Terms))
	for i, t := range p.Terms {
		if m.Hidden(i) {
			out[i] = Hidden()
			continue
		}
		out[i] = t
	}
	return out
}

func (p Predicate) visible(i int, m Mask) bool {
	return !m.Hidden(i) && !p.Terms[i].IsHidden()
}

// Visible counts positions neither masked nor intrinsically unknown.
func (p Predicate) Visible(m Mask) int {
	n := 0
	for i := range p.Terms {
		if p.visible(i, m) {
			n++
		}
	}
	return n
}

// EmbeddedRef is a nested fact reference together with its position.
type EmbeddedRef struct {
	Index int
	Ref   FactRef
}

// Embedded returns every known fact-typed term, regardless of masking. The
// disclosure engine decides how masked each embedded fact becomes.
func (p Predicate) Embedded() []EmbeddedRef {
	var out []EmbeddedRef
	for _, i := range p.Shape.Embedded() {
		if i >= len(p.Terms) {
			continue
		}
		t := p.Terms[i]
		if t.Kind != TermFact {
			continue
		}
		out = append(out, EmbeddedRef{Index: i, Ref: t.Fact})
	}
	return out
}

// EntityRefs returns entity terms visible under m.
func (p Predicate) EntityRefs(m Mask) []kind.Ref {
	var out []kind.Ref
	for i, t := range p.Terms {
		if t.Kind != TermEntity || !p.visible(i, m) {
			continue
		}
		out = append(out, t.Ref)
	}
	return out
}

// Compare is Compare(p, self, other, otherMask).
func (p Predicate) Compare(other Predicate, self, otherMask Mask) Relation {
	return Compare(p, self, other, otherMask)
}
