package predicate

import (
	"fmt"
	"strconv"
	"strings"

	"hearsay.ai/internal/sim/world/kernel/kind"
)

// FieldType is the declared type of one predicate position.
type FieldType uint8

const (
	FieldTime FieldType = iota + 1
	FieldAgent
	FieldRoom
	FieldItem
	FieldFact
)

func (t FieldType) String() string {
	switch t {
	case FieldTime:
		return "time"
	case FieldAgent:
		return "agent"
	case FieldRoom:
		return "room"
	case FieldItem:
		return "item"
	case FieldFact:
		return "fact"
	default:
		return "unknown"
	}
}

// EntityKind reports which addressable kind an entity-typed field refers to.
func (t FieldType) EntityKind() (kind.Kind, bool) {
	switch t {
	case FieldAgent:
		return kind.Agent, true
	case FieldRoom:
		return kind.Room, true
	case FieldItem:
		return kind.Item, true
	default:
		return kind.Unknown, false
	}
}

type Field struct {
	Name string
	Type FieldType
}

// Shape is a fixed predicate form. Every fact of a shape carries exactly
// len(Fields()) terms in declaration order.
type Shape uint8

const (
	ShapeLocated Shape = iota + 1 // time, agent, room
	ShapeMove                     // time, agent, from, to
	ShapePickup                   // time, agent, item, room
	ShapeDrop                     // time, agent, item, room
	ShapeTold                     // time, speaker, listener, fact
	ShapeTraded                   // time, agent, other
)

// MaxFields bounds shape arity so a Mask fits every shape.
const MaxFields = 16

type shapeDef struct {
	name   string
	fields []Field
}

var shapeDefs = map[Shape]shapeDef{
	ShapeLocated: {name: "LOCATED", fields: []Field{
		{"time", FieldTime}, {"agent", FieldAgent}, {"room", FieldRoom},
	}},
	ShapeMove: {name: "MOVE", fields: []Field{
		{"time", FieldTime}, {"agent", FieldAgent}, {"from", FieldRoom}, {"to", FieldRoom},
	}},
	ShapePickup: {name: "PICKUP", fields: []Field{
		{"time", FieldTime}, {"agent", FieldAgent}, {"item", FieldItem}, {"room", FieldRoom},
	}},
	ShapeDrop: {name: "DROP", fields: []Field{
		{"time", FieldTime}, {"agent", FieldAgent}, {"item", FieldItem}, {"room", FieldRoom},
	}},
	ShapeTold: {name: "TOLD", fields: []Field{
		{"time", FieldTime}, {"speaker", FieldAgent}, {"listener", FieldAgent}, {"fact", FieldFact},
	}},
	ShapeTraded: {name: "TRADED", fields: []Field{
		{"time", FieldTime}, {"agent", FieldAgent}, {"other", FieldAgent},
	}},
}

func (s Shape) String() string {
	if d, ok := shapeDefs[s]; ok {
		return d.name
	}
	return fmt.Sprintf("SHAPE(%d)", uint8(s))
}

func (s Shape) Valid() bool {
	_, ok := shapeDefs[s]
	return ok
}

// Fields returns the shape's positions in order.
func (s Shape) Fields() []Field {
	return shapeDefs[s].fields
}

func (s Shape) Arity() int { return len(shapeDefs[s].fields) }

func (s Shape) FieldIndex(name string) (int, bool) {
	for i, f := range shapeDefs[s].fields {
		if f.Name == name {
			return i, true
		}
	}
	return -1, false
}

// Embedded lists the positions whose terms are references to other facts.
func (s Shape) Embedded() []int {
	var out []int
	for i, f := range shapeDefs[s].fields {
		if f.Type == FieldFact {
			out = append(out, i)
		}
	}
	return out
}

func ParseShape(raw string) (Shape, bool) {
	name := strings.ToUpper(strings.TrimSpace(raw))
	for s, d := range shapeDefs {
		if d.name == name {
			return s, true
		}
	}
	return 0, false
}

// ParseTerm converts a wire value into a term for the given field.
func ParseTerm(f Field, raw string) (Term, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Term{}, fmt.Errorf("empty value for %s", f.Name)
	}
	switch f.Type {
	case FieldTime:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n < 0 {
			return Term{}, fmt.Errorf("bad time %q", raw)
		}
		return Value(n), nil
	case FieldFact:
		return FactTerm(raw, 0), nil
	default:
		k, ok := f.Type.EntityKind()
		if !ok {
			return Term{}, fmt.Errorf("unsupported field type %s", f.Type)
		}
		return Entity(k, raw), nil
	}
}
