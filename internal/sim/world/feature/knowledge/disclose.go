package knowledge

import (
	"hearsay.ai/internal/sim/world/kernel/model"
	"hearsay.ai/internal/sim/world/logic/predicate"
)

// GiveToAgent discloses f to a under mask. An existing copy only ever gets
// less masked: its mask becomes the intersection with the incoming one. Every
// fact embedded in f is disclosed to a as well, with the mask the embedding
// term carries, or fully masked when the embedding position itself is hidden.
func (s *Store) GiveToAgent(f *model.Fact, a *model.Agent, mask predicate.Mask) *model.Fact {
	if f == nil || a == nil {
		return nil
	}
	return s.give(f, a, mask, map[string]bool{})
}

// Disclose is GiveToAgent addressed by agent id. Unknown agents are a no-op.
func (s *Store) Disclose(f *model.Fact, agentID string, mask predicate.Mask) *model.Fact {
	if s.agents == nil {
		return nil
	}
	return s.GiveToAgent(f, s.agents.AgentByID(agentID), mask)
}

func (s *Store) GiveToAgents(f *model.Fact, agents []*model.Agent, mask predicate.Mask) {
	for _, a := range agents {
		s.GiveToAgent(f, a, mask)
	}
}

// DisperseToRoom gives f, unmasked, to every occupant of room.
func (s *Store) DisperseToRoom(f *model.Fact, room *model.Room) {
	if room == nil {
		return
	}
	for _, id := range room.Occupants.Sorted() {
		s.Disclose(f, id, 0)
	}
}

func (s *Store) give(f *model.Fact, a *model.Agent, mask predicate.Mask, visiting map[string]bool) *model.Fact {
	master := s.MasterOf(f)
	shape := master.Predicate.Shape
	mask = mask.Clamp(shape)

	if visiting[master.FactID] {
		return s.AgentCopy(master, a.AgentID)
	}
	visiting[master.FactID] = true

	cp := s.AgentCopy(master, a.AgentID)
	created, changed := false, false
	if cp != nil {
		narrowed := cp.Mask.Intersect(mask)
		changed = narrowed != cp.Mask
		cp.Mask = narrowed
	} else {
		id := s.facts.NextID()
		cp = &model.Fact{
			FactID:      id,
			Predicate:   master.Predicate,
			Owner:       a.AgentID,
			CreatedTick: master.CreatedTick,
			Query:       master.Query,
			Mask:        mask,
			MasterID:    master.FactID,
		}
		s.facts.Put(id, cp)
		master.Copies[a.AgentID] = id
		a.InitDefaults()
		a.Knowledge.Add(id)
		created = true
	}

	for _, emb := range master.Predicate.Embedded() {
		inner := s.Get(emb.Ref.ID)
		if inner == nil {
			invariant(master.FactID, "embedded fact %s missing", emb.Ref.ID)
		}
		innerMask := emb.Ref.Mask
		if mask.Hidden(emb.Index) {
			innerMask = predicate.FullMask(s.MasterOf(inner).Predicate.Shape)
		}
		s.give(inner, a, innerMask, visiting)
	}

	if created || changed {
		if s.changes != nil {
			s.changes.RecordChange(a.AgentID, cp)
		}
		if s.OnDisclose != nil {
			s.OnDisclose(cp, created)
		}
	}
	return cp
}
