package world

import (
	"hearsay.ai/internal/protocol"
	"hearsay.ai/internal/sim/world/kernel/model"
	"hearsay.ai/internal/sim/world/logic/predicate"
)

func handleInstantMove(w *World, a *model.Agent, inst protocol.InstantReq, nowTick uint64) (protocol.Event, error) {
	if inst.Room == "" {
		return nil, reject(protocol.ErrBadRequest, "missing room")
	}
	from := w.RoomByID(a.RoomID)
	if from == nil {
		return nil, reject(protocol.ErrInternal, "agent %s has no room", a.AgentID)
	}
	to := w.RoomByID(inst.Room)
	if to == nil {
		return nil, reject(protocol.ErrInvalidTarget, "unknown room %s", inst.Room)
	}
	if to == from {
		return nil, reject(protocol.ErrBadRequest, "already in %s", to.RoomID)
	}
	if !from.IsAdjacent(to.RoomID) {
		return nil, reject(protocol.ErrInvalidTarget, "%s is not adjacent to %s", to.RoomID, from.RoomID)
	}

	// Conversations are bound to a room.
	w.leaveConversation(a, "left the room", nowTick)
	w.clearRequests(a.AgentID)

	from.Occupants.Remove(a.AgentID)
	w.recordFor(w.occupants(from), from, a)
	to.Occupants.Add(a.AgentID)
	a.RoomID = to.RoomID
	w.recordFor(w.occupants(to), to, a)
	w.recordRoomView(a, to)
	w.changes.RecordChange(a.AgentID, from)

	f, err := w.facts.Record(predicate.Move(nowTick, a.AgentID, from.RoomID, to.RoomID), nowTick)
	if err != nil {
		return nil, err
	}
	w.facts.DisperseToRoom(f, from)
	w.facts.DisperseToRoom(f, to)
	return protocol.Event{"room": to.RoomID}, nil
}

func handleInstantPickup(w *World, a *model.Agent, inst protocol.InstantReq, nowTick uint64) (protocol.Event, error) {
	if inst.ItemID == "" {
		return nil, reject(protocol.ErrBadRequest, "missing item_id")
	}
	room := w.RoomByID(a.RoomID)
	it := w.ItemByID(inst.ItemID)
	if it == nil || room == nil || it.Holder != room.RoomID || !room.Items.Has(it.ItemID) {
		return nil, reject(protocol.ErrInvalidTarget, "no item %s here", inst.ItemID)
	}
	if it.Locked() {
		return nil, reject(protocol.ErrConflict, "item %s is in a trade", it.ItemID)
	}
	room.Items.Remove(it.ItemID)
	a.Items.Add(it.ItemID)
	it.Holder = a.AgentID
	w.recordFor(w.occupants(room), room, a, it)

	f, err := w.facts.Record(predicate.Pickup(nowTick, a.AgentID, it.ItemID, room.RoomID), nowTick)
	if err != nil {
		return nil, err
	}
	w.facts.DisperseToRoom(f, room)
	return nil, nil
}

func handleInstantDrop(w *World, a *model.Agent, inst protocol.InstantReq, nowTick uint64) (protocol.Event, error) {
	if inst.ItemID == "" {
		return nil, reject(protocol.ErrBadRequest, "missing item_id")
	}
	it := w.ItemByID(inst.ItemID)
	if it == nil || it.Holder != a.AgentID || !a.Items.Has(it.ItemID) {
		return nil, reject(protocol.ErrInvalidTarget, "not holding %s", inst.ItemID)
	}
	if it.Locked() {
		return nil, reject(protocol.ErrConflict, "item %s is in a trade", it.ItemID)
	}
	room := w.RoomByID(a.RoomID)
	if room == nil {
		return nil, reject(protocol.ErrInternal, "agent %s has no room", a.AgentID)
	}
	a.Items.Remove(it.ItemID)
	room.Items.Add(it.ItemID)
	it.Holder = room.RoomID
	w.recordFor(w.occupants(room), room, a, it)

	f, err := w.facts.Record(predicate.Drop(nowTick, a.AgentID, it.ItemID, room.RoomID), nowTick)
	if err != nil {
		return nil, err
	}
	w.facts.DisperseToRoom(f, room)
	return nil, nil
}

// recordRoomView queues what an agent sees on entering a room.
func (w *World) recordRoomView(a *model.Agent, r *model.Room) {
	ents := []model.Entity{r}
	for _, o := range w.occupants(r) {
		ents = append(ents, o)
	}
	for _, id := range r.Items.Sorted() {
		if it := w.ItemByID(id); it != nil {
			ents = append(ents, it)
		}
	}
	w.changes.RecordChange(a.AgentID, ents...)
}
