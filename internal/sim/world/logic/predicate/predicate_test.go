package predicate

import (
	"testing"

	"hearsay.ai/internal/sim/world/kernel/kind"
)

func TestNew_RejectsWrongArityAndTypes(t *testing.T) {
	if _, err := New(ShapeMove, Value(1), Entity(kind.Agent, "A1")); err == nil {
		t.Fatalf("expected arity error")
	}
	if _, err := New(ShapeLocated, Value(1), Entity(kind.Room, "R1"), Entity(kind.Room, "R1")); err == nil {
		t.Fatalf("expected type error for room in agent position")
	}
	if _, err := New(ShapeLocated, Value(1), Hidden(), Entity(kind.Room, "R1")); err != nil {
		t.Fatalf("hidden term should be accepted anywhere: %v", err)
	}
	if _, err := New(Shape(99)); err == nil {
		t.Fatalf("expected unknown shape error")
	}
}

func TestMasked_ReplacesHiddenFields(t *testing.T) {
	p := Move(7, "A1", "R1", "R2")
	m, err := MaskOf(ShapeMove, "time", "to")
	if err != nil {
		t.Fatalf("MaskOf: %v", err)
	}
	terms := p.Masked(m)
	if !terms[0].IsHidden() || !terms[3].IsHidden() {
		t.Fatalf("expected time and to hidden: %+v", terms)
	}
	if terms[1].Ref.ID != "A1" || terms[2].Ref.ID != "R1" {
		t.Fatalf("unmasked fields changed: %+v", terms)
	}
	if got := m.Names(ShapeMove); len(got) != 2 || got[0] != "time" || got[1] != "to" {
		t.Fatalf("Names=%v", got)
	}
	if _, err := MaskOf(ShapeMove, "speaker"); err == nil {
		t.Fatalf("expected unknown field error")
	}
}

func TestMask_IntersectOnlyReveals(t *testing.T) {
	a, _ := MaskOf(ShapeMove, "time", "from")
	b, _ := MaskOf(ShapeMove, "from", "to")
	got := a.Intersect(b)
	if got.Hidden(0) || got.Hidden(3) || !got.Hidden(2) {
		t.Fatalf("intersect=%b", got)
	}
	if !a.Covers(got) || !b.Covers(got) {
		t.Fatalf("intersection must be covered by both inputs")
	}
	if FullMask(ShapeMove) != Mask(0b1111) {
		t.Fatalf("FullMask=%b", FullMask(ShapeMove))
	}
	if Mask(0xFFFF).Clamp(ShapeTraded) != Mask(0b111) {
		t.Fatalf("Clamp did not drop out-of-shape bits")
	}
}

func TestCompare(t *testing.T) {
	move := Move(7, "A1", "R1", "R2")
	hideTo, _ := MaskOf(ShapeMove, "to")
	hideTime, _ := MaskOf(ShapeMove, "time")
	question := must(New(ShapeMove, Value(7), Entity(kind.Agent, "A1"), Entity(kind.Room, "R1"), Hidden()))
	otherAgent := Move(7, "A2", "R1", "R2")

	cases := []struct {
		name string
		a    Predicate
		ma   Mask
		b    Predicate
		mb   Mask
		want Relation
	}{
		{"identical", move, 0, move, 0, RelEqual},
		{"same mask", move, hideTo, move, hideTo, RelEqual},
		{"more visible is superset", move, 0, move, hideTo, RelSuperset},
		{"fewer visible is subset", move, hideTo, move, 0, RelSubset},
		{"answer over question", move, 0, question, 0, RelSuperset},
		{"disjoint visibility", move, hideTo, move, hideTime, RelNotEqual},
		{"mismatched agent", otherAgent, 0, question, 0, RelNotEqual},
		{"mismatch masked but visibility disjoint", otherAgent, mustMask(ShapeMove, "agent"), question, 0, RelNotEqual},
		{"different shapes", Traded(1, "A1", "A2"), 0, move, 0, RelNotEqual},
		{"invalid", Predicate{Shape: ShapeMove}, 0, move, 0, RelError},
	}
	for _, tc := range cases {
		if got := Compare(tc.a, tc.ma, tc.b, tc.mb); got != tc.want {
			t.Fatalf("%s: got %s want %s", tc.name, got, tc.want)
		}
	}
}

func TestAnswers(t *testing.T) {
	question := must(New(ShapeMove, Value(7), Entity(kind.Agent, "A1"), Hidden(), Hidden()))
	if !Answers(Move(7, "A1", "R1", "R2"), 0, question, 0) {
		t.Fatalf("expected full move to answer question")
	}
	if Answers(Move(7, "A2", "R1", "R2"), 0, question, 0) {
		t.Fatalf("expected mismatched agent rejected")
	}
	if Answers(Traded(7, "A1", "A2"), 0, question, 0) {
		t.Fatalf("expected other shape rejected")
	}
}

func TestEmbeddedAndEntityRefs(t *testing.T) {
	told := Told(3, "A1", "A2", FactRef{ID: "F000001", Mask: mustMask(ShapeMove, "time")})
	emb := told.Embedded()
	if len(emb) != 1 || emb[0].Index != 3 || emb[0].Ref.ID != "F000001" {
		t.Fatalf("Embedded=%+v", emb)
	}
	if !emb[0].Ref.Mask.Hidden(0) {
		t.Fatalf("embedded mask lost")
	}
	refs := told.EntityRefs(mustMask(ShapeTold, "listener"))
	if len(refs) != 1 || refs[0] != (kind.Ref{Kind: kind.Agent, ID: "A1"}) {
		t.Fatalf("EntityRefs=%+v", refs)
	}
}

func TestParseTerm(t *testing.T) {
	f := ShapeMove.Fields()
	if term, err := ParseTerm(f[0], "12"); err != nil || term.Value != 12 {
		t.Fatalf("time term=%+v err=%v", term, err)
	}
	if _, err := ParseTerm(f[0], "soon"); err == nil {
		t.Fatalf("expected bad time")
	}
	if term, err := ParseTerm(f[2], "R1"); err != nil || term.Ref != (kind.Ref{Kind: kind.Room, ID: "R1"}) {
		t.Fatalf("room term=%+v err=%v", term, err)
	}
	if s, ok := ParseShape(" move "); !ok || s != ShapeMove {
		t.Fatalf("ParseShape failed")
	}
}

func mustMask(s Shape, names ...string) Mask {
	m, err := MaskOf(s, names...)
	if err != nil {
		panic(err)
	}
	return m
}
