package world

import (
	"strings"

	"github.com/google/uuid"

	"hearsay.ai/internal/protocol"
	"hearsay.ai/internal/sim/world/kernel/model"
	"hearsay.ai/internal/sim/world/logic/predicate"
)

func (w *World) handleJoin(req JoinRequest, nowTick uint64) {
	resp := w.joinAgent(req.Name, req.Encoding, req.Out, nowTick)
	if req.Resp != nil {
		req.Resp <- resp
	}
}

func (w *World) joinAgent(name, encoding string, out chan []byte, nowTick uint64) JoinResponse {
	id := w.agents.NextID()
	name = strings.TrimSpace(name)
	if name == "" {
		name = id
	}
	a := model.NewAgent(id, name)
	a.RoomID = w.cfg.SpawnRoom
	a.Currency = w.cfg.StartingCurrency
	a.JoinedTick = nowTick
	a.ResumeToken = uuid.NewString()
	w.agents.Put(id, a)

	if fids := w.factions.IDs(); len(fids) > 0 {
		// Round-robin by join order.
		fid := fids[int(w.agents.Counter()-1)%len(fids)]
		f := w.FactionByID(fid)
		f.Members.Add(id)
		a.FactionID = fid
		w.recordFor(w.factionMembers(f), f)
	}
	for _, itemName := range w.cfg.StarterItems {
		if strings.TrimSpace(itemName) == "" {
			continue
		}
		it := w.newItem(itemName, id)
		a.Items.Add(it.ItemID)
	}

	room := w.RoomByID(a.RoomID)
	room.Occupants.Add(id)
	w.recordFor(w.occupants(room), room, a)

	// Agents know where they woke up.
	if f, err := w.facts.Record(predicate.Located(nowTick, id, room.RoomID), nowTick); err == nil {
		w.facts.GiveToAgent(f, a, 0)
	}

	if out != nil {
		w.clients[id] = &clientState{Out: out, Encoding: encoding}
	}
	w.queueFullView(id)
	w.auditEvent(nowTick, id, "JOIN", "", true, "", name)
	return JoinResponse{Welcome: w.buildWelcome(a, encoding)}
}

func (w *World) handleAttach(req AttachRequest) {
	token := strings.TrimSpace(req.ResumeToken)
	if token == "" || req.Out == nil {
		if req.Resp != nil {
			req.Resp <- JoinResponse{}
		}
		return
	}
	var a *model.Agent
	w.agents.Each(func(_ string, aa *model.Agent) bool {
		if aa.ResumeToken == token {
			a = aa
			return false
		}
		return true
	})
	if a == nil {
		if req.Resp != nil {
			req.Resp <- JoinResponse{}
		}
		return
	}

	w.clients[a.AgentID] = &clientState{Out: req.Out, Encoding: req.Encoding}
	// Rotate token on successful resume.
	a.ResumeToken = uuid.NewString()
	w.queueFullView(a.AgentID)

	if req.Resp != nil {
		req.Resp <- JoinResponse{Welcome: w.buildWelcome(a, req.Encoding)}
	}
}

// handleLeave detaches a disconnected client. The agent stays in the world
// for resume but drops out of its conversation. A leave from a session that
// was already replaced by a resume is ignored.
func (w *World) handleLeave(req LeaveRequest, nowTick uint64) {
	agentID := req.AgentID
	if cl := w.clients[agentID]; cl != nil && req.Out != nil && cl.Out != req.Out {
		return
	}
	delete(w.clients, agentID)
	delete(w.events, agentID)
	w.fullSync.Remove(agentID)
	w.changes.Discard(agentID)

	a := w.AgentByID(agentID)
	if a == nil {
		return
	}
	w.leaveConversation(a, "disconnected", nowTick)
	w.clearRequests(agentID)
	w.auditEvent(nowTick, agentID, "LEAVE", "", true, "", "disconnected")
}

func (w *World) buildWelcome(a *model.Agent, encoding string) protocol.WelcomeMsg {
	if encoding == "" {
		encoding = protocol.EncodingJSON
	}
	return protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       uuid.NewString(),
		AgentID:         a.AgentID,
		ResumeToken:     a.ResumeToken,
		Encoding:        encoding,
		WorldParams: protocol.WorldParams{
			WorldID:             w.cfg.ID,
			TickRateHz:          w.cfg.TickRateHz,
			MinActionIntervalMs: w.cfg.MinActionIntervalMs,
			StartingCurrency:    w.cfg.StartingCurrency,
		},
	}
}

// queueFullView records everything agentID can currently see; the next flush
// sends it as a full DELTA.
func (w *World) queueFullView(agentID string) {
	a := w.AgentByID(agentID)
	if a == nil {
		return
	}
	ents := []model.Entity{a}
	if r := w.RoomByID(a.RoomID); r != nil {
		ents = append(ents, r)
		for _, o := range w.occupants(r) {
			ents = append(ents, o)
		}
		for _, id := range r.Items.Sorted() {
			if it := w.ItemByID(id); it != nil {
				ents = append(ents, it)
			}
		}
	}
	for _, id := range a.Items.Sorted() {
		if it := w.ItemByID(id); it != nil {
			ents = append(ents, it)
		}
	}
	if c := w.ConversationByID(a.ConversationID); c != nil {
		ents = append(ents, c)
	}
	for _, tr := range w.trades.Active(agentID) {
		ents = append(ents, tr)
	}
	for _, f := range w.facts.KnownBy(a) {
		ents = append(ents, f)
	}
	w.changes.RecordChange(agentID, ents...)
	w.fullSync.Add(agentID)
}

func (w *World) factionMembers(f *model.Faction) []*model.Agent {
	out := make([]*model.Agent, 0, len(f.Members))
	for _, id := range f.Members.Sorted() {
		if a := w.AgentByID(id); a != nil {
			out = append(out, a)
		}
	}
	return out
}
