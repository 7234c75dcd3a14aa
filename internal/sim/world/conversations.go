package world

import (
	"hearsay.ai/internal/sim/world/kernel/model"
)

func (w *World) conversationOf(a *model.Agent) *model.Conversation {
	if a == nil || a.ConversationID == "" {
		return nil
	}
	return w.ConversationByID(a.ConversationID)
}

func (w *World) participants(c *model.Conversation) []*model.Agent {
	out := make([]*model.Agent, 0, len(c.Participants))
	for _, id := range c.Participants.Sorted() {
		if a := w.AgentByID(id); a != nil {
			out = append(out, a)
		}
	}
	return out
}

// sameConversation reports whether a and b currently talk to each other.
func (w *World) sameConversation(a, b *model.Agent) bool {
	return a != nil && b != nil && a.ConversationID != "" && a.ConversationID == b.ConversationID
}

func (w *World) startConversation(roomID string, nowTick uint64, members ...*model.Agent) *model.Conversation {
	c := &model.Conversation{
		ConversationID: w.conversations.NextID(),
		RoomID:         roomID,
		Participants:   model.Set{},
		CreatedTick:    nowTick,
	}
	w.conversations.Put(c.ConversationID, c)
	for _, m := range members {
		w.joinConversation(m, c, nowTick)
	}
	return c
}

func (w *World) joinConversation(a *model.Agent, c *model.Conversation, nowTick uint64) {
	if a.ConversationID == c.ConversationID {
		return
	}
	w.leaveConversation(a, "joined another conversation", nowTick)
	c.Participants.Add(a.AgentID)
	a.ConversationID = c.ConversationID
	ps := w.participants(c)
	w.recordFor(ps, c, a)
	for _, p := range ps {
		w.changes.RecordChange(a.AgentID, p)
	}
}

// leaveConversation takes a out of its conversation, cancels every trade it
// negotiates and drops its pending requests. A conversation left with a
// single participant ends.
func (w *World) leaveConversation(a *model.Agent, reason string, nowTick uint64) bool {
	c := w.conversationOf(a)
	if c == nil {
		a.ConversationID = ""
		return false
	}
	w.trades.CancelAll(a.AgentID, reason, nowTick)

	before := w.participants(c)
	c.Participants.Remove(a.AgentID)
	a.ConversationID = ""
	w.recordFor(before, c, a)
	w.clearRequests(a.AgentID)

	if len(c.Participants) < 2 {
		for _, p := range w.participants(c) {
			w.trades.CancelAll(p.AgentID, "conversation ended", nowTick)
			c.Participants.Remove(p.AgentID)
			p.ConversationID = ""
			w.clearRequests(p.AgentID)
			w.changes.RecordChange(p.AgentID, c, p)
		}
		w.conversations.Delete(c.ConversationID)
	}
	return true
}

// clearRequests drops every pending conversation and trade request made by
// or against agentID.
func (w *World) clearRequests(agentID string) {
	clearPending(w.convRequests, agentID)
	clearPending(w.tradeRequests, agentID)
}

func clearPending(m map[string]model.Set, agentID string) {
	delete(m, agentID)
	for target, from := range m {
		from.Remove(agentID)
		if len(from) == 0 {
			delete(m, target)
		}
	}
}

func addPending(m map[string]model.Set, target, from string) {
	s := m[target]
	if s == nil {
		s = model.Set{}
		m[target] = s
	}
	s.Add(from)
}

func hasPending(m map[string]model.Set, target, from string) bool {
	return m[target].Has(from)
}

func removePending(m map[string]model.Set, target, from string) {
	if s := m[target]; s != nil {
		s.Remove(from)
		if len(s) == 0 {
			delete(m, target)
		}
	}
}
