package world

import (
	"encoding/json"
	"testing"

	"hearsay.ai/internal/protocol"
	"hearsay.ai/internal/sim/tuning"
	"hearsay.ai/internal/sim/world/kernel/model"
	"hearsay.ai/internal/sim/world/logic/predicate"
)

func newTestWorld(t *testing.T) *World {
	t.Helper()
	cfg := ConfigFromTuning(tuning.Defaults())
	cfg.RateLimits = RateLimitConfig{}
	w, err := New(cfg)
	if err != nil {
		t.Fatalf("new world: %v", err)
	}
	return w
}

type testClient struct {
	id  string
	out chan []byte
}

func joinAgent(t *testing.T, w *World, name string) *testClient {
	t.Helper()
	out := make(chan []byte, 256)
	resp := make(chan JoinResponse, 1)
	w.StepOnce([]JoinRequest{{Name: name, Out: out, Resp: resp}}, nil, nil)
	r := <-resp
	if r.Welcome.AgentID == "" {
		t.Fatalf("join %s: empty welcome", name)
	}
	return &testClient{id: r.Welcome.AgentID, out: out}
}

func act(w *World, agentID string, insts ...protocol.InstantReq) {
	w.StepOnce(nil, nil, []ActionEnvelope{{
		AgentID: agentID,
		Act:     protocol.ActMsg{Type: protocol.TypeAct, ProtocolVersion: protocol.Version, AgentID: agentID, Instants: insts},
	}})
}

// drain decodes every DELTA queued for the client.
func (c *testClient) drain(t *testing.T) []protocol.DeltaMsg {
	t.Helper()
	var out []protocol.DeltaMsg
	for {
		select {
		case b := <-c.out:
			var msg protocol.DeltaMsg
			if err := json.Unmarshal(b, &msg); err != nil {
				t.Fatalf("decode delta: %v", err)
			}
			out = append(out, msg)
		default:
			return out
		}
	}
}

// result returns the ACTION_RESULT for ref among queued deltas.
func (c *testClient) result(t *testing.T, ref string) protocol.Event {
	t.Helper()
	for _, msg := range c.drain(t) {
		for _, ev := range msg.Events {
			if ev["type"] == "ACTION_RESULT" && ev["ref"] == ref {
				return ev
			}
		}
	}
	t.Fatalf("no ACTION_RESULT for %s", ref)
	return nil
}

func (c *testClient) mustOK(t *testing.T, ref string) protocol.Event {
	t.Helper()
	ev := c.result(t, ref)
	if ev["ok"] != true {
		t.Fatalf("%s failed: %v %v", ref, ev["code"], ev["message"])
	}
	return ev
}

func (c *testClient) mustFail(t *testing.T, ref, code string) {
	t.Helper()
	ev := c.result(t, ref)
	if ev["ok"] != false || ev["code"] != code {
		t.Fatalf("%s: ok=%v code=%v want code %s (%v)", ref, ev["ok"], ev["code"], code, ev["message"])
	}
}

// converse puts a and b into one conversation.
func converse(t *testing.T, w *World, a, b *testClient) {
	t.Helper()
	act(w, a.id, protocol.InstantReq{ID: "cr", Type: protocol.InstantConverseRequest, To: b.id})
	a.mustOK(t, "cr")
	act(w, b.id, protocol.InstantReq{ID: "ca", Type: protocol.InstantConverseAccept, To: a.id})
	b.mustOK(t, "ca")
	a.drain(t)
}

// openTrade opens a trade initiated by a and returns its id.
func openTrade(t *testing.T, w *World, a, b *testClient) string {
	t.Helper()
	act(w, a.id, protocol.InstantReq{ID: "tr", Type: protocol.InstantTradeRequest, To: b.id})
	a.mustOK(t, "tr")
	act(w, b.id, protocol.InstantReq{ID: "ta", Type: protocol.InstantTradeAccept, To: a.id})
	ev := b.mustOK(t, "ta")
	a.drain(t)
	id, _ := ev["trade_id"].(string)
	if id == "" {
		t.Fatalf("no trade id in %v", ev)
	}
	return id
}

// knownOf returns agentID's copy of the first master matching shape and match.
func knownOf(w *World, agentID string, shape predicate.Shape, match func(p predicate.Predicate) bool) *model.Fact {
	for _, f := range w.facts.KnownBy(w.AgentByID(agentID)) {
		m := w.facts.MasterOf(f)
		if m.Predicate.Shape == shape && (match == nil || match(m.Predicate)) {
			return f
		}
	}
	return nil
}

func aboutAgent(id string) func(p predicate.Predicate) bool {
	return func(p predicate.Predicate) bool {
		t, ok := p.Field("agent")
		return ok && t.Ref.ID == id
	}
}

func firstItem(w *World, agentID string) string {
	ids := w.AgentByID(agentID).Items.Sorted()
	if len(ids) == 0 {
		return ""
	}
	return ids[0]
}
