package world

import (
	"sort"

	"hearsay.ai/internal/protocol"
	"hearsay.ai/internal/sim/world/kernel/kind"
	"hearsay.ai/internal/sim/world/kernel/model"
	"hearsay.ai/internal/sim/world/logic/predicate"
)

// target resolves inst.To to another agent in a's room.
func (w *World) target(a *model.Agent, inst protocol.InstantReq) (*model.Agent, error) {
	if inst.To == "" {
		return nil, reject(protocol.ErrBadRequest, "missing to")
	}
	if inst.To == a.AgentID {
		return nil, reject(protocol.ErrInvalidTarget, "cannot target yourself")
	}
	to := w.AgentByID(inst.To)
	if to == nil {
		return nil, reject(protocol.ErrInvalidTarget, "unknown agent %s", inst.To)
	}
	if to.RoomID != a.RoomID {
		return nil, reject(protocol.ErrInvalidTarget, "%s is not here", to.AgentID)
	}
	return to, nil
}

func handleInstantConverseRequest(w *World, a *model.Agent, inst protocol.InstantReq, nowTick uint64) (protocol.Event, error) {
	to, err := w.target(a, inst)
	if err != nil {
		return nil, err
	}
	if w.sameConversation(a, to) {
		return nil, reject(protocol.ErrConflict, "already talking to %s", to.AgentID)
	}
	addPending(w.convRequests, to.AgentID, a.AgentID)
	w.addEvent(to.AgentID, protocol.Event{"t": nowTick, "type": "CONVERSE_REQUEST", "from": a.AgentID})
	return nil, nil
}

func handleInstantConverseAccept(w *World, a *model.Agent, inst protocol.InstantReq, nowTick uint64) (protocol.Event, error) {
	from, err := w.target(a, inst)
	if err != nil {
		return nil, err
	}
	if !hasPending(w.convRequests, a.AgentID, from.AgentID) {
		return nil, reject(protocol.ErrInvalidTarget, "no conversation request from %s", from.AgentID)
	}
	removePending(w.convRequests, a.AgentID, from.AgentID)

	var c *model.Conversation
	switch {
	case w.conversationOf(from) != nil:
		c = w.conversationOf(from)
		w.joinConversation(a, c, nowTick)
	case w.conversationOf(a) != nil:
		c = w.conversationOf(a)
		w.joinConversation(from, c, nowTick)
	default:
		c = w.startConversation(a.RoomID, nowTick, from, a)
	}
	w.addEvent(from.AgentID, protocol.Event{"t": nowTick, "type": "CONVERSE_ACCEPTED", "by": a.AgentID, "conversation": c.ConversationID})
	return protocol.Event{"conversation": c.ConversationID}, nil
}

func handleInstantLeaveConversation(w *World, a *model.Agent, _ protocol.InstantReq, nowTick uint64) (protocol.Event, error) {
	if !w.leaveConversation(a, "left the conversation", nowTick) {
		return nil, reject(protocol.ErrConflict, "not in a conversation")
	}
	return nil, nil
}

// handleInstantTell passes a known fact to another participant. The listener
// learns the fact as the teller sees it, minus the hidden fields, and every
// participant learns that it was told.
func handleInstantTell(w *World, a *model.Agent, inst protocol.InstantReq, nowTick uint64) (protocol.Event, error) {
	to, err := w.target(a, inst)
	if err != nil {
		return nil, err
	}
	if !w.sameConversation(a, to) {
		return nil, reject(protocol.ErrNoPermission, "not in a conversation with %s", to.AgentID)
	}
	if inst.FactID == "" {
		return nil, reject(protocol.ErrBadRequest, "missing fact_id")
	}
	if err := rateLimited(a, "TELL", nowTick, w.cfg.RateLimits.TellWindowTicks, w.cfg.RateLimits.TellMax); err != nil {
		return nil, err
	}
	f := w.facts.Get(inst.FactID)
	if f == nil || !w.facts.Knows(a.AgentID, inst.FactID) {
		return nil, reject(protocol.ErrInvalidTarget, "unknown fact %s", inst.FactID)
	}
	master := w.facts.MasterOf(f)
	hide, err := predicate.MaskOf(master.Predicate.Shape, inst.Hide...)
	if err != nil {
		return nil, reject(protocol.ErrBadRequest, "hide: %v", err)
	}
	said := w.facts.EffectiveMask(master, a.AgentID).Union(hide)

	told, err := w.facts.Record(predicate.Told(nowTick, a.AgentID, to.AgentID, predicate.FactRef{ID: master.FactID, Mask: said}), nowTick)
	if err != nil {
		return nil, err
	}
	w.facts.Disclose(master, to.AgentID, said)
	w.facts.GiveToAgents(told, w.participants(w.conversationOf(a)), 0)
	return protocol.Event{"fact_id": w.facts.CopyIDFor(told.FactID, a.AgentID)}, nil
}

// handleInstantAsk creates a question: a query fact whose unstated fields are
// what the asker wants to learn.
func handleInstantAsk(w *World, a *model.Agent, inst protocol.InstantReq, nowTick uint64) (protocol.Event, error) {
	shape, ok := predicate.ParseShape(inst.Shape)
	if !ok {
		return nil, reject(protocol.ErrBadRequest, "unknown shape %q", inst.Shape)
	}
	if err := rateLimited(a, "ASK", nowTick, w.cfg.RateLimits.AskWindowTicks, w.cfg.RateLimits.AskMax); err != nil {
		return nil, err
	}
	fields := shape.Fields()
	terms := make([]predicate.Term, len(fields))
	for i := range terms {
		terms[i] = predicate.Hidden()
	}
	names := make([]string, 0, len(inst.Known))
	for name := range inst.Known {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		i, ok := shape.FieldIndex(name)
		if !ok {
			return nil, reject(protocol.ErrBadRequest, "%s has no field %q", shape, name)
		}
		t, err := predicate.ParseTerm(fields[i], inst.Known[name])
		if err != nil {
			return nil, reject(protocol.ErrBadRequest, "%s: %v", name, err)
		}
		t, err = w.resolveAskTerm(a, t)
		if err != nil {
			return nil, err
		}
		terms[i] = t
	}
	p, err := predicate.New(shape, terms...)
	if err != nil {
		return nil, reject(protocol.ErrBadRequest, "%v", err)
	}
	q, err := w.facts.Ask(p, nowTick)
	if err != nil {
		return nil, reject(protocol.ErrInvalidTarget, "%v", err)
	}
	cp := w.facts.GiveToAgent(q, a, 0)
	return protocol.Event{"question_id": cp.FactID}, nil
}

// resolveAskTerm checks that a stated value names something the asker can
// refer to. Fact references carry the asker's own view of that fact.
func (w *World) resolveAskTerm(a *model.Agent, t predicate.Term) (predicate.Term, error) {
	switch t.Kind {
	case predicate.TermEntity:
		if w.Entity(t.Ref) == nil {
			return t, reject(protocol.ErrInvalidTarget, "unknown %s %s", t.Ref.Kind, t.Ref.ID)
		}
	case predicate.TermFact:
		f := w.facts.Get(t.Fact.ID)
		if f == nil || !w.facts.Knows(a.AgentID, t.Fact.ID) {
			return t, reject(protocol.ErrInvalidTarget, "unknown %s %s", kind.Fact, t.Fact.ID)
		}
		m := w.facts.MasterOf(f)
		return predicate.FactTerm(m.FactID, w.facts.EffectiveMask(m, a.AgentID)), nil
	}
	return t, nil
}
