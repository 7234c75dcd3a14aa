package world

import (
	"context"
	"testing"
	"time"

	"hearsay.ai/internal/protocol"
	"hearsay.ai/internal/sim/tuning"
	"hearsay.ai/internal/sim/world/logic/predicate"
)

func TestJoin_SendsFullDeltaWithLocatedFact(t *testing.T) {
	w := newTestWorld(t)
	a := joinAgent(t, w, "alice")

	msgs := a.drain(t)
	if len(msgs) == 0 {
		t.Fatalf("expected a delta after join")
	}
	first := msgs[0]
	if !first.Full || first.Seq != 1 || first.AgentID != a.id {
		t.Fatalf("first delta full=%v seq=%d agent=%s", first.Full, first.Seq, first.AgentID)
	}
	for _, bucket := range []string{"agents", "rooms", "items", "facts"} {
		if len(first.Entities[bucket]) == 0 {
			t.Fatalf("full delta missing %s: %v", bucket, first.Entities)
		}
	}
	if knownOf(w, a.id, predicate.ShapeLocated, aboutAgent(a.id)) == nil {
		t.Fatalf("agent should know where it joined")
	}
	ag := w.AgentByID(a.id)
	if ag.Currency != w.cfg.StartingCurrency || len(ag.Items) != 1 || ag.RoomID != "square" {
		t.Fatalf("agent=%+v", ag)
	}
}

func TestDelta_CurrencyZeroedForOthers(t *testing.T) {
	w := newTestWorld(t)
	b := joinAgent(t, w, "bob")
	b.drain(t)

	c := joinAgent(t, w, "carol")
	seen := false
	for _, msg := range b.drain(t) {
		for _, raw := range msg.Entities["agents"] {
			m := raw.(map[string]any)
			if m["id"] != c.id {
				continue
			}
			seen = true
			if m["currency"] != float64(0) {
				t.Fatalf("bob sees carol's currency: %v", m["currency"])
			}
		}
	}
	if !seen {
		t.Fatalf("bob should be told carol arrived")
	}
}

func TestMove_DispersesMoveFactToBothRooms(t *testing.T) {
	w := newTestWorld(t)
	a := joinAgent(t, w, "alice")
	b := joinAgent(t, w, "bob")
	c := joinAgent(t, w, "carol")

	act(w, c.id, protocol.InstantReq{ID: "m1", Type: protocol.InstantMove, Room: "tavern"})
	c.mustOK(t, "m1")
	act(w, a.id, protocol.InstantReq{ID: "m2", Type: protocol.InstantMove, Room: "tavern"})
	a.mustOK(t, "m2")

	moved := func(p predicate.Predicate) bool {
		ag, _ := p.Field("agent")
		to, _ := p.Field("to")
		return ag.Ref.ID == a.id && to.Ref.ID == "tavern"
	}
	for _, id := range []string{a.id, b.id, c.id} {
		if knownOf(w, id, predicate.ShapeMove, moved) == nil {
			t.Fatalf("%s should have seen alice move", id)
		}
	}
	if !w.RoomByID("tavern").Occupants.Has(a.id) || w.RoomByID("square").Occupants.Has(a.id) {
		t.Fatalf("occupants not updated")
	}

	act(w, a.id, protocol.InstantReq{ID: "m3", Type: protocol.InstantMove, Room: "market"})
	a.mustFail(t, "m3", protocol.ErrInvalidTarget)
}

func TestPickupAndDrop(t *testing.T) {
	w := newTestWorld(t)
	a := joinAgent(t, w, "alice")
	act(w, a.id, protocol.InstantReq{ID: "m", Type: protocol.InstantMove, Room: "market"})
	a.mustOK(t, "m")

	room := w.RoomByID("market")
	ring := room.Items.Sorted()[0]
	act(w, a.id, protocol.InstantReq{ID: "p", Type: protocol.InstantPickup, ItemID: ring})
	a.mustOK(t, "p")
	if w.ItemByID(ring).Holder != a.id || room.Items.Has(ring) {
		t.Fatalf("ring not picked up")
	}
	if knownOf(w, a.id, predicate.ShapePickup, nil) == nil {
		t.Fatalf("pickup fact missing")
	}

	act(w, a.id, protocol.InstantReq{ID: "p2", Type: protocol.InstantPickup, ItemID: ring})
	a.mustFail(t, "p2", protocol.ErrInvalidTarget)

	act(w, a.id, protocol.InstantReq{ID: "d", Type: protocol.InstantDrop, ItemID: ring})
	a.mustOK(t, "d")
	if w.ItemByID(ring).Holder != "market" || w.AgentByID(a.id).Items.Has(ring) {
		t.Fatalf("ring not dropped")
	}
}

func TestTell_ListenerAndBystanderShareTheTellersMask(t *testing.T) {
	w := newTestWorld(t)
	a := joinAgent(t, w, "alice")
	b := joinAgent(t, w, "bob")
	c := joinAgent(t, w, "carol")
	converse(t, w, a, b)
	converse(t, w, c, a)
	if !w.sameConversation(w.AgentByID(b.id), w.AgentByID(c.id)) {
		t.Fatalf("expected one three-way conversation")
	}

	located := knownOf(w, a.id, predicate.ShapeLocated, aboutAgent(a.id))
	act(w, a.id, protocol.InstantReq{ID: "t", Type: protocol.InstantTell, To: b.id, FactID: located.FactID, Hide: []string{"time"}})
	a.mustOK(t, "t")

	timeHidden, _ := predicate.MaskOf(predicate.ShapeLocated, "time")
	for _, id := range []string{b.id, c.id} {
		cp := knownOf(w, id, predicate.ShapeLocated, aboutAgent(a.id))
		if cp == nil {
			t.Fatalf("%s should hold alice's LOCATED", id)
		}
		if cp.Mask != timeHidden {
			t.Fatalf("%s mask=%b want %b", id, cp.Mask, timeHidden)
		}
		if knownOf(w, id, predicate.ShapeTold, nil) == nil {
			t.Fatalf("%s should know something was told", id)
		}
	}

	// Telling it again unmasked only ever narrows the hidden set.
	act(w, a.id, protocol.InstantReq{ID: "t2", Type: protocol.InstantTell, To: b.id, FactID: located.FactID})
	a.mustOK(t, "t2")
	if cp := knownOf(w, b.id, predicate.ShapeLocated, aboutAgent(a.id)); cp.Mask != 0 {
		t.Fatalf("bob mask=%b want 0", cp.Mask)
	}
}

func TestTell_Rejections(t *testing.T) {
	w := newTestWorld(t)
	a := joinAgent(t, w, "alice")
	b := joinAgent(t, w, "bob")
	located := knownOf(w, a.id, predicate.ShapeLocated, aboutAgent(a.id))

	act(w, a.id, protocol.InstantReq{ID: "t1", Type: protocol.InstantTell, To: b.id, FactID: located.FactID})
	a.mustFail(t, "t1", protocol.ErrNoPermission)

	converse(t, w, a, b)
	bobs := knownOf(w, b.id, predicate.ShapeLocated, aboutAgent(b.id))
	act(w, a.id, protocol.InstantReq{ID: "t2", Type: protocol.InstantTell, To: b.id, FactID: bobs.FactID})
	a.mustFail(t, "t2", protocol.ErrInvalidTarget)

	act(w, a.id, protocol.InstantReq{ID: "t3", Type: protocol.InstantTell, To: b.id, FactID: located.FactID, Hide: []string{"color"}})
	a.mustFail(t, "t3", protocol.ErrBadRequest)
}

func TestTell_RateLimited(t *testing.T) {
	w := newTestWorld(t)
	w.cfg.RateLimits.TellWindowTicks = 100
	w.cfg.RateLimits.TellMax = 1
	a := joinAgent(t, w, "alice")
	b := joinAgent(t, w, "bob")
	converse(t, w, a, b)
	located := knownOf(w, a.id, predicate.ShapeLocated, aboutAgent(a.id))

	act(w, a.id, protocol.InstantReq{ID: "t1", Type: protocol.InstantTell, To: b.id, FactID: located.FactID})
	a.mustOK(t, "t1")
	act(w, a.id, protocol.InstantReq{ID: "t2", Type: protocol.InstantTell, To: b.id, FactID: located.FactID})
	a.mustFail(t, "t2", protocol.ErrRateLimit)
}

func TestAsk_CreatesQuestionWithHiddenFields(t *testing.T) {
	w := newTestWorld(t)
	a := joinAgent(t, w, "alice")

	act(w, a.id, protocol.InstantReq{ID: "q", Type: protocol.InstantAsk, Shape: "pickup", Known: map[string]string{"room": "cellar"}})
	ev := a.mustOK(t, "q")
	qid, _ := ev["question_id"].(string)
	q := w.facts.Get(qid)
	if q == nil || q.Owner != a.id || !q.Query {
		t.Fatalf("question copy=%+v", q)
	}
	m := w.facts.MasterOf(q)
	if m.Predicate.Visible(q.Mask) != 1 {
		t.Fatalf("question should state exactly one field, got %d", m.Predicate.Visible(q.Mask))
	}

	act(w, a.id, protocol.InstantReq{ID: "q2", Type: protocol.InstantAsk, Shape: "pickup", Known: map[string]string{"room": "attic"}})
	a.mustFail(t, "q2", protocol.ErrInvalidTarget)
	act(w, a.id, protocol.InstantReq{ID: "q3", Type: protocol.InstantAsk, Shape: "dance"})
	a.mustFail(t, "q3", protocol.ErrBadRequest)
}

func TestUnknownInstant(t *testing.T) {
	w := newTestWorld(t)
	a := joinAgent(t, w, "alice")
	act(w, a.id, protocol.InstantReq{ID: "x", Type: "FLY"})
	a.mustFail(t, "x", protocol.ErrBadRequest)
}

func TestInvariantViolation_ReportsInternalAndKeepsRunning(t *testing.T) {
	w := newTestWorld(t)
	a := joinAgent(t, w, "alice")
	b := joinAgent(t, w, "bob")
	converse(t, w, a, b)

	located := knownOf(w, a.id, predicate.ShapeLocated, aboutAgent(a.id))
	located.MasterID = "F999999"
	act(w, a.id, protocol.InstantReq{ID: "t", Type: protocol.InstantTell, To: b.id, FactID: located.FactID})
	a.mustFail(t, "t", protocol.ErrInternal)

	act(w, a.id, protocol.InstantReq{ID: "m", Type: protocol.InstantMove, Room: "tavern"})
	a.mustOK(t, "m")
}

func TestConversation_EndsWhenOneParticipantRemains(t *testing.T) {
	w := newTestWorld(t)
	a := joinAgent(t, w, "alice")
	b := joinAgent(t, w, "bob")
	converse(t, w, a, b)
	cid := w.AgentByID(a.id).ConversationID

	act(w, b.id, protocol.InstantReq{ID: "l", Type: protocol.InstantLeaveConversation})
	b.mustOK(t, "l")
	if w.ConversationByID(cid) != nil || w.AgentByID(a.id).ConversationID != "" {
		t.Fatalf("conversation should have ended")
	}
	act(w, b.id, protocol.InstantReq{ID: "l2", Type: protocol.InstantLeaveConversation})
	b.mustFail(t, "l2", protocol.ErrConflict)
}

func TestConverseAccept_RequiresPendingRequest(t *testing.T) {
	w := newTestWorld(t)
	a := joinAgent(t, w, "alice")
	b := joinAgent(t, w, "bob")
	act(w, b.id, protocol.InstantReq{ID: "ca", Type: protocol.InstantConverseAccept, To: a.id})
	b.mustFail(t, "ca", protocol.ErrInvalidTarget)

	// Moving away clears requests in both directions.
	act(w, a.id, protocol.InstantReq{ID: "cr", Type: protocol.InstantConverseRequest, To: b.id})
	a.mustOK(t, "cr")
	act(w, a.id, protocol.InstantReq{ID: "m", Type: protocol.InstantMove, Room: "tavern"})
	a.mustOK(t, "m")
	if hasPending(w.convRequests, b.id, a.id) {
		t.Fatalf("request should be cleared after move")
	}
}

func TestLeaveConversation_ClearsPendingRequests(t *testing.T) {
	w := newTestWorld(t)
	a := joinAgent(t, w, "alice")
	b := joinAgent(t, w, "bob")
	c := joinAgent(t, w, "carol")
	converse(t, w, a, b)

	act(w, a.id, protocol.InstantReq{ID: "cr2", Type: protocol.InstantConverseRequest, To: c.id})
	a.mustOK(t, "cr2")
	act(w, a.id, protocol.InstantReq{ID: "l", Type: protocol.InstantLeaveConversation})
	a.mustOK(t, "l")
	if hasPending(w.convRequests, c.id, a.id) {
		t.Fatalf("request to carol should be cleared after leaving")
	}

	act(w, c.id, protocol.InstantReq{ID: "ca2", Type: protocol.InstantConverseAccept, To: a.id})
	c.mustFail(t, "ca2", protocol.ErrInvalidTarget)
	if w.AgentByID(c.id).ConversationID != "" {
		t.Fatalf("carol should not be in a conversation")
	}
}

func TestAttach_RotatesResumeToken(t *testing.T) {
	w := newTestWorld(t)
	a := joinAgent(t, w, "alice")
	w.StepOnce(nil, []string{a.id}, nil)
	if _, ok := w.clients[a.id]; ok {
		t.Fatalf("client should be detached")
	}

	token := w.AgentByID(a.id).ResumeToken
	out := make(chan []byte, 16)
	resp := make(chan JoinResponse, 1)
	w.handleAttach(AttachRequest{ResumeToken: token, Out: out, Resp: resp})
	r := <-resp
	if r.Welcome.AgentID != a.id {
		t.Fatalf("resume agent=%q want %s", r.Welcome.AgentID, a.id)
	}
	if r.Welcome.ResumeToken == token {
		t.Fatalf("token should rotate")
	}

	w.handleAttach(AttachRequest{ResumeToken: token, Out: out, Resp: resp})
	if r := <-resp; r.Welcome.AgentID != "" {
		t.Fatalf("old token must not resume")
	}
}

func TestLeave_StaleSessionIgnoredAfterResume(t *testing.T) {
	w := newTestWorld(t)
	a := joinAgent(t, w, "alice")

	out := make(chan []byte, 16)
	resp := make(chan JoinResponse, 1)
	w.handleAttach(AttachRequest{ResumeToken: w.AgentByID(a.id).ResumeToken, Out: out, Resp: resp})
	<-resp

	w.step(nil, []LeaveRequest{{AgentID: a.id, Out: a.out}}, nil, nil)
	if cl := w.clients[a.id]; cl == nil || cl.Out != out {
		t.Fatalf("the resumed session must survive the old session's leave")
	}
	w.step(nil, []LeaveRequest{{AgentID: a.id, Out: out}}, nil, nil)
	if _, ok := w.clients[a.id]; ok {
		t.Fatalf("the current session's leave should detach")
	}
}

func TestDelta_CBOREncoding(t *testing.T) {
	w := newTestWorld(t)
	out := make(chan []byte, 16)
	resp := make(chan JoinResponse, 1)
	w.StepOnce([]JoinRequest{{Name: "cbor", Encoding: protocol.EncodingCBOR, Out: out, Resp: resp}}, nil, nil)
	r := <-resp
	if r.Welcome.Encoding != protocol.EncodingCBOR {
		t.Fatalf("encoding=%q", r.Welcome.Encoding)
	}
	b := <-out
	var msg map[string]any
	if err := protocol.Unmarshal(protocol.EncodingCBOR, b, &msg); err != nil {
		t.Fatalf("decode cbor: %v", err)
	}
	if msg["type"] != protocol.TypeDelta || msg["agent_id"] != r.Welcome.AgentID {
		t.Fatalf("msg=%v", msg)
	}
}

func TestFlush_FullQueueIsReportedNotBlocking(t *testing.T) {
	w := newTestWorld(t)
	out := make(chan []byte) // unbuffered, nobody reading
	resp := make(chan JoinResponse, 1)
	w.StepOnce([]JoinRequest{{Name: "slow", Out: out, Resp: resp}}, nil, nil)
	id := (<-resp).Welcome.AgentID
	if w.clients[id].Seq == 0 {
		t.Fatalf("delivery should have been attempted")
	}
}

func TestStats_PublishedByRunLoop(t *testing.T) {
	cfg := ConfigFromTuning(tuning.Defaults())
	cfg.TickRateHz = 50
	w, err := New(cfg)
	if err != nil {
		t.Fatalf("new world: %v", err)
	}
	if s := w.Stats(); s.Agents != 0 || s.Tick != 0 {
		t.Fatalf("stats before first step=%+v", s)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	for _, name := range []string{"alice", "bob"} {
		resp := make(chan JoinResponse, 1)
		w.Join() <- JoinRequest{Name: name, Out: make(chan []byte, 64), Resp: resp}
		<-resp
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		s := w.Stats()
		if s.Agents == 2 && s.Clients == 2 && s.Facts > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("stats never caught up: %+v", s)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
