package delta

import (
	"errors"
	"testing"

	"hearsay.ai/internal/sim/world/feature/knowledge"
	"hearsay.ai/internal/sim/world/kernel/arena"
	"hearsay.ai/internal/sim/world/kernel/kind"
	"hearsay.ai/internal/sim/world/kernel/model"
	"hearsay.ai/internal/sim/world/logic/predicate"
)

type world struct {
	agents   map[string]*model.Agent
	rooms    map[string]*model.Room
	factions map[string]*model.Faction
}

func (w *world) AgentByID(id string) *model.Agent { return w.agents[id] }

func (w *world) Entity(r kind.Ref) model.Entity {
	switch r.Kind {
	case kind.Agent:
		if a := w.agents[r.ID]; a != nil {
			return a
		}
	case kind.Room:
		if rm := w.rooms[r.ID]; rm != nil {
			return rm
		}
	case kind.Faction:
		if f := w.factions[r.ID]; f != nil {
			return f
		}
	}
	return nil
}

type fixture struct {
	w     *world
	facts *knowledge.Store
	tr    *Tracker
	got   map[string]Payload
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	w := &world{
		agents:   map[string]*model.Agent{},
		rooms:    map[string]*model.Room{"R1": model.NewRoom("R1", "Hall", []string{"R2"}), "R2": model.NewRoom("R2", "Cellar", []string{"R1"})},
		factions: map[string]*model.Faction{"guild": {FactionID: "guild", Name: "Guild", Members: model.NewSet("A")}},
	}
	for _, id := range []string{"A", "B", "C"} {
		w.agents[id] = model.NewAgent(id, id)
	}
	w.agents["A"].FactionID = "guild"
	w.agents["A"].Currency = 50
	f := &fixture{w: w, got: map[string]Payload{}}
	f.tr = NewTracker(w, nil)
	f.facts = knowledge.NewStore(arena.New[*model.Fact]("F", 6), w, f.tr)
	f.tr.SetFacts(f.facts)
	return f
}

func (f *fixture) flush(t *testing.T) {
	t.Helper()
	err := f.tr.Flush(SinkFunc(func(agentID string, p Payload) error {
		f.got[agentID] = p
		return nil
	}))
	if err != nil {
		t.Fatalf("Flush: %v", err)
	}
}

func factViews(p Payload) []model.FactView {
	var out []model.FactView
	for _, v := range p[kind.Fact.Bucket()] {
		out = append(out, v.(model.FactView))
	}
	return out
}

func TestRecordChange_AgentAddsFaction(t *testing.T) {
	f := newFixture(t)
	f.tr.RecordChange("B", f.w.agents["A"])
	if f.tr.Pending("B") != 2 {
		t.Fatalf("pending=%d, want agent+faction", f.tr.Pending("B"))
	}
	f.flush(t)
	p := f.got["B"]
	if len(p["agents"]) != 1 || len(p["factions"]) != 1 {
		t.Fatalf("payload=%v", p)
	}
	if v := p["agents"][0].(model.AgentView); v.Currency != 0 {
		t.Fatalf("currency leaked to other agent")
	}
	if f.tr.Pending("B") != 0 || len(f.tr.Agents()) != 0 {
		t.Fatalf("pending not cleared")
	}
}

func TestFlush_FactsSerializeThroughViewerMask(t *testing.T) {
	f := newFixture(t)
	m, _ := f.facts.Record(predicate.Move(3, "A", "R1", "R2"), 3)
	hide, _ := predicate.MaskOf(predicate.ShapeMove, "agent", "time")
	f.facts.Disclose(m, "B", hide)
	f.facts.Disclose(m, "C", 0)
	f.flush(t)

	bf := factViews(f.got["B"])
	if len(bf) != 1 || bf[0].Master != "" {
		t.Fatalf("B facts=%+v", bf)
	}
	for _, tv := range bf[0].Terms {
		if (tv.Field == "agent" || tv.Field == "time") && !tv.Hidden {
			t.Fatalf("B sees masked field %s", tv.Field)
		}
	}
	if len(f.got["B"]["agents"]) != 0 {
		t.Fatalf("hidden agent term expanded for B: %v", f.got["B"]["agents"])
	}
	if len(f.got["B"]["rooms"]) != 2 {
		t.Fatalf("visible rooms not expanded: %v", f.got["B"]["rooms"])
	}
	if len(f.got["C"]["agents"]) != 1 || len(f.got["C"]["factions"]) != 1 {
		t.Fatalf("C expansion=%v", f.got["C"])
	}
	if len(f.got) != 2 {
		t.Fatalf("unexpected recipients: %v", f.got)
	}
}

func TestFlush_MasterWithoutCopyIsDropped(t *testing.T) {
	f := newFixture(t)
	m, _ := f.facts.Record(predicate.Located(1, "A", "R1"), 1)
	f.tr.RecordChange("B", m)
	f.flush(t)
	if got := factViews(f.got["B"]); len(got) != 0 {
		t.Fatalf("master leaked to agent without a copy: %+v", got)
	}
}

func TestFlush_EmbeddedFactsUseViewerCopyIDs(t *testing.T) {
	f := newFixture(t)
	inner, _ := f.facts.Record(predicate.Located(1, "A", "R1"), 1)
	told, _ := f.facts.Record(predicate.Told(2, "A", "B", predicate.FactRef{ID: inner.FactID}), 2)
	cp := f.facts.Disclose(told, "B", 0)
	f.flush(t)

	innerCopy := f.facts.AgentCopy(inner, "B")
	views := factViews(f.got["B"])
	if len(views) != 2 {
		t.Fatalf("expected told and embedded copies, got %+v", views)
	}
	for _, v := range views {
		if v.ID != cp.FactID {
			continue
		}
		for _, tv := range v.Terms {
			if tv.Field == "fact" && tv.Value != innerCopy.FactID {
				t.Fatalf("embedded ref=%v want %s", tv.Value, innerCopy.FactID)
			}
		}
	}
}

func TestFlush_EmbeddedCopyResentWithEveryTold(t *testing.T) {
	f := newFixture(t)
	inner, _ := f.facts.Record(predicate.Located(1, "A", "R1"), 1)
	f.facts.Disclose(inner, "B", 0)
	f.facts.Disclose(inner, "C", 0)
	f.flush(t)
	f.got = map[string]Payload{}

	told, _ := f.facts.Record(predicate.Told(2, "A", "B", predicate.FactRef{ID: inner.FactID}), 2)
	f.facts.Disclose(told, "B", 0)
	hideFact, _ := predicate.MaskOf(predicate.ShapeTold, "fact")
	f.facts.Disclose(told, "C", hideFact)
	f.flush(t)

	innerCopy := f.facts.AgentCopy(inner, "B")
	var sawInner bool
	for _, v := range factViews(f.got["B"]) {
		if v.ID == innerCopy.FactID {
			sawInner = true
		}
	}
	if !sawInner {
		t.Fatalf("B payload lacks embedded copy %s: %+v", innerCopy.FactID, factViews(f.got["B"]))
	}
	if got := factViews(f.got["C"]); len(got) != 1 {
		t.Fatalf("hidden embedded fact expanded for C: %+v", got)
	}
}

func TestFlush_CollectsDeliveryErrors(t *testing.T) {
	f := newFixture(t)
	f.tr.RecordChange("A", f.w.rooms["R1"])
	f.tr.RecordChange("B", f.w.rooms["R1"])
	boom := errors.New("closed")
	var delivered []string
	err := f.tr.Flush(SinkFunc(func(agentID string, p Payload) error {
		delivered = append(delivered, agentID)
		if agentID == "A" {
			return boom
		}
		return nil
	}))
	var de *DeliveryError
	if !errors.As(err, &de) || de.AgentID != "A" || !errors.Is(err, boom) {
		t.Fatalf("err=%v", err)
	}
	if len(delivered) != 2 || delivered[0] != "A" || delivered[1] != "B" {
		t.Fatalf("delivery order=%v", delivered)
	}
	if f.tr.Pending("A") != 0 {
		t.Fatalf("failed delivery was kept for retry")
	}
}
