// Package delta accumulates, per agent, the entities an operation touched and
// delivers them as one payload per agent once the operation completes.
package delta

import (
	"errors"
	"fmt"
	"sort"

	"hearsay.ai/internal/sim/world/kernel/kind"
	"hearsay.ai/internal/sim/world/kernel/model"
)

// Payload groups serialized entities by kind bucket ("facts", "trades", ...).
type Payload map[string][]any

type Resolver interface {
	Entity(ref kind.Ref) model.Entity
}

// Facts resolves masters and per-agent copies.
type Facts interface {
	Get(id string) *model.Fact
	MasterOf(f *model.Fact) *model.Fact
	AgentCopy(master *model.Fact, agentID string) *model.Fact
	CopyIDFor(masterID, agentID string) string
}

type Sink interface {
	Deliver(agentID string, p Payload) error
}

type SinkFunc func(agentID string, p Payload) error

func (f SinkFunc) Deliver(agentID string, p Payload) error { return f(agentID, p) }

// DeliveryError is one agent's failed delivery. Failed deliveries are not retried.
type DeliveryError struct {
	AgentID string
	Err     error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver to %s: %v", e.AgentID, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

type Tracker struct {
	resolver Resolver
	facts    Facts
	pending  map[string]map[kind.Ref]model.Entity
}

func NewTracker(resolver Resolver, facts Facts) *Tracker {
	return &Tracker{resolver: resolver, facts: facts, pending: map[string]map[kind.Ref]model.Entity{}}
}

// SetFacts wires the fact store once it exists; the store itself reports
// through the tracker.
func (t *Tracker) SetFacts(f Facts) { t.facts = f }

// RecordChange queues entities for agentID. A fact also queues its master,
// the entities its predicate names and agentID's copies of the facts it
// embeds, as far as agentID can see them. An agent also queues its faction.
func (t *Tracker) RecordChange(agentID string, entities ...model.Entity) {
	if agentID == "" {
		return
	}
	set := t.pending[agentID]
	if set == nil {
		set = map[kind.Ref]model.Entity{}
		t.pending[agentID] = set
	}
	for _, e := range entities {
		t.add(agentID, set, e)
	}
}

func (t *Tracker) add(agentID string, set map[kind.Ref]model.Entity, e model.Entity) {
	if e == nil {
		return
	}
	ref := model.RefOf(e)
	if _, ok := set[ref]; ok {
		return
	}
	set[ref] = e
	switch v := e.(type) {
	case *model.Fact:
		t.expandFact(agentID, set, v)
	case *model.Agent:
		if v.FactionID != "" && t.resolver != nil {
			t.add(agentID, set, t.resolver.Entity(kind.Ref{Kind: kind.Faction, ID: v.FactionID}))
		}
	}
}

func (t *Tracker) expandFact(agentID string, set map[kind.Ref]model.Entity, f *model.Fact) {
	if t.facts == nil {
		return
	}
	master := t.facts.MasterOf(f)
	if master != f {
		t.add(agentID, set, master)
	}
	cp := t.facts.AgentCopy(master, agentID)
	if cp == nil || t.resolver == nil {
		return
	}
	for _, r := range master.Predicate.EntityRefs(cp.Mask) {
		if e := t.resolver.Entity(r); e != nil {
			t.add(agentID, set, e)
		}
	}
	// Visible embedded facts go out as the viewer's own copies.
	for _, em := range master.Predicate.Embedded() {
		if cp.Mask.Hidden(em.Index) {
			continue
		}
		inner := t.facts.Get(em.Ref.ID)
		if inner == nil {
			continue
		}
		if ic := t.facts.AgentCopy(t.facts.MasterOf(inner), agentID); ic != nil {
			t.add(agentID, set, ic)
		}
	}
}

// Pending reports how many entities are queued for agentID.
func (t *Tracker) Pending(agentID string) int { return len(t.pending[agentID]) }

// Agents lists agents with queued changes in id order.
func (t *Tracker) Agents() []string {
	out := make([]string, 0, len(t.pending))
	for id, set := range t.pending {
		if len(set) > 0 {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// Build serializes agentID's pending set without clearing it.
func (t *Tracker) Build(agentID string) Payload {
	return t.build(agentID, t.pending[agentID])
}

func (t *Tracker) build(agentID string, set map[kind.Ref]model.Entity) Payload {
	ctx := model.SerializeContext{Viewer: agentID, Remote: true}
	if t.facts != nil {
		ctx.Facts = t.facts
	}
	refs := make([]kind.Ref, 0, len(set))
	for r := range set {
		refs = append(refs, r)
	}
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].Kind != refs[j].Kind {
			return refs[i].Kind < refs[j].Kind
		}
		return refs[i].ID < refs[j].ID
	})

	out := Payload{}
	seenFacts := map[string]bool{}
	for _, r := range refs {
		e := set[r]
		if f, ok := e.(*model.Fact); ok {
			cp := t.viewerCopy(f, agentID)
			if cp == nil || seenFacts[cp.FactID] {
				continue
			}
			seenFacts[cp.FactID] = true
			e = cp
		}
		b := r.Kind.Bucket()
		out[b] = append(out[b], e.Serialize(ctx))
	}
	return out
}

// viewerCopy maps any fact onto agentID's own copy; facts agentID holds no
// copy of are never serialized for it.
func (t *Tracker) viewerCopy(f *model.Fact, agentID string) *model.Fact {
	if !f.Master && f.Owner == agentID {
		return f
	}
	if t.facts == nil {
		return nil
	}
	return t.facts.AgentCopy(t.facts.MasterOf(f), agentID)
}

// Flush delivers one payload per agent with pending changes, in agent id
// order, then clears every pending set. Failures are collected per agent.
func (t *Tracker) Flush(sink Sink) error {
	agents := t.Agents()
	pending := t.pending
	t.pending = map[string]map[kind.Ref]model.Entity{}

	var errs []error
	for _, id := range agents {
		p := t.build(id, pending[id])
		if len(p) == 0 {
			continue
		}
		if err := sink.Deliver(id, p); err != nil {
			errs = append(errs, &DeliveryError{AgentID: id, Err: err})
		}
	}
	return errors.Join(errs...)
}

// Discard drops everything queued for agentID.
func (t *Tracker) Discard(agentID string) { delete(t.pending, agentID) }
