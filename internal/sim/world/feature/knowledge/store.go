package knowledge

import (
	"fmt"

	"hearsay.ai/internal/sim/world/kernel/arena"
	"hearsay.ai/internal/sim/world/kernel/model"
	"hearsay.ai/internal/sim/world/logic/predicate"
)

// Recorder receives the entities an agent must be told about.
type Recorder interface {
	RecordChange(agentID string, entities ...model.Entity)
}

type AgentIndex interface {
	AgentByID(id string) *model.Agent
}

// InvariantError reports corrupted fact state (e.g. a copy whose master is
// gone). It is raised with panic: it signals a bug elsewhere, not bad input.
type InvariantError struct {
	FactID string
	Reason string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("fact invariant violated for %s: %s", e.FactID, e.Reason)
}

func invariant(factID, format string, args ...any) {
	panic(&InvariantError{FactID: factID, Reason: fmt.Sprintf(format, args...)})
}

// Store holds master facts and every agent's derived copies.
type Store struct {
	facts   *arena.Arena[*model.Fact]
	agents  AgentIndex
	changes Recorder

	// OnDisclose, if set, observes every copy created or narrowed.
	OnDisclose func(cp *model.Fact, created bool)
}

func NewStore(facts *arena.Arena[*model.Fact], agents AgentIndex, changes Recorder) *Store {
	if facts == nil {
		facts = arena.New[*model.Fact]("F", 6)
	}
	return &Store{facts: facts, agents: agents, changes: changes}
}

func (s *Store) Get(id string) *model.Fact {
	f, _ := s.facts.Get(id)
	return f
}

func (s *Store) Len() int { return s.facts.Len() }

// Record creates a canonical, unmasked master for an event that just happened.
func (s *Store) Record(p predicate.Predicate, nowTick uint64) (*model.Fact, error) {
	return s.newMaster(p, nowTick, false)
}

// Ask creates a master question. Hidden terms of p are what the question asks.
func (s *Store) Ask(p predicate.Predicate, nowTick uint64) (*model.Fact, error) {
	return s.newMaster(p, nowTick, true)
}

func (s *Store) newMaster(p predicate.Predicate, nowTick uint64, query bool) (*model.Fact, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("invalid predicate for %s", p.Shape)
	}
	terms := make([]predicate.Term, len(p.Terms))
	copy(terms, p.Terms)
	for _, emb := range p.Embedded() {
		ref := s.Get(emb.Ref.ID)
		if ref == nil {
			return nil, fmt.Errorf("%s.%s references unknown fact %s", p.Shape, p.Shape.Fields()[emb.Index].Name, emb.Ref.ID)
		}
		master := s.MasterOf(ref)
		terms[emb.Index] = predicate.FactTerm(master.FactID, emb.Ref.Mask.Clamp(master.Predicate.Shape))
	}
	id := s.facts.NextID()
	f := &model.Fact{
		FactID:      id,
		Predicate:   predicate.Predicate{Shape: p.Shape, Terms: terms},
		CreatedTick: nowTick,
		Query:       query,
		Master:      true,
		MasterID:    id,
		Copies:      map[string]string{},
	}
	s.facts.Put(id, f)
	return f, nil
}

// MasterOf resolves f to the canonical fact it derives from.
func (s *Store) MasterOf(f *model.Fact) *model.Fact {
	if f == nil {
		return nil
	}
	if f.Master {
		return f
	}
	m := s.Get(f.MasterID)
	if m == nil {
		invariant(f.FactID, "master %s missing", f.MasterID)
	}
	if !m.Master {
		invariant(f.FactID, "master %s is itself a copy", f.MasterID)
	}
	return m
}

// AgentCopy returns the agent's derived copy of master, or nil.
func (s *Store) AgentCopy(master *model.Fact, agentID string) *model.Fact {
	if master == nil || agentID == "" {
		return nil
	}
	master = s.MasterOf(master)
	id, ok := master.Copies[agentID]
	if !ok {
		return nil
	}
	cp := s.Get(id)
	if cp == nil {
		invariant(master.FactID, "copy %s for %s missing", id, agentID)
	}
	return cp
}

// CopyIDFor implements model.FactViewer.
func (s *Store) CopyIDFor(masterID, agentID string) string {
	f := s.Get(masterID)
	if f == nil {
		return ""
	}
	if cp := s.AgentCopy(f, agentID); cp != nil {
		return cp.FactID
	}
	return ""
}

// Knows reports whether the agent holds a copy of the fact behind factID.
func (s *Store) Knows(agentID, factID string) bool {
	f := s.Get(factID)
	if f == nil {
		return false
	}
	return s.AgentCopy(f, agentID) != nil
}

// EffectiveMask is what agentID sees of f: its copy's mask, or everything
// hidden when it holds no copy.
func (s *Store) EffectiveMask(f *model.Fact, agentID string) predicate.Mask {
	master := s.MasterOf(f)
	if cp := s.AgentCopy(master, agentID); cp != nil {
		return cp.Mask
	}
	return predicate.FullMask(master.Predicate.Shape)
}

// KnownBy lists an agent's copies in id order.
func (s *Store) KnownBy(a *model.Agent) []*model.Fact {
	if a == nil {
		return nil
	}
	out := make([]*model.Fact, 0, len(a.Knowledge))
	for _, id := range a.Knowledge.Sorted() {
		if f := s.Get(id); f != nil {
			out = append(out, f)
		}
	}
	return out
}
