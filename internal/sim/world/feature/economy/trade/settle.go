package trade

import (
	"fmt"

	modelpkg "hearsay.ai/internal/sim/world/kernel/model"
)

// SetReady sets side's ready flag. When both sides end up ready the trade
// settles and the settlement is returned; otherwise the result is nil.
//
// Settlement is planned and validated against the current offer state before
// anything is mutated. If the plan fails the trade stays negotiating and the
// flag is left unset.
func (e *Engine) SetReady(tr *Trade, side modelpkg.Side, ready bool, nowTick uint64) (*Settlement, error) {
	if err := e.checkOpen(tr); err != nil {
		return nil, err
	}
	ts := tr.Side(side)
	if !ready || !tr.Side(side.Other()).Ready {
		ts.Ready = ready
		e.touch(tr)
		return nil, nil
	}
	p, err := e.plan(tr)
	if err != nil {
		return nil, err
	}
	ts.Ready = true
	st := e.apply(tr, p, nowTick)
	if e.hooks.OnSettled != nil {
		e.hooks.OnSettled(st)
	}
	return &st, nil
}

type transfer struct {
	item     *modelpkg.Item
	from, to *modelpkg.Agent
}

type settlePlan struct {
	agents    [2]*modelpkg.Agent
	transfers []transfer
	answers   [2][]modelpkg.OfferedAnswer
	answerFor [2][]*modelpkg.Fact
}

func (e *Engine) plan(tr *Trade) (settlePlan, error) {
	var p settlePlan
	for i, ts := range tr.Sides {
		a := e.ledger.AgentByID(ts.AgentID)
		if a == nil {
			return p, fmt.Errorf("%w: %s: %v", ErrSettlement, ts.AgentID, ErrUnknownAgent)
		}
		p.agents[i] = a
	}
	for i, ts := range tr.Sides {
		from, to := p.agents[i], p.agents[1-i]
		for _, id := range ts.Items.Sorted() {
			it := e.ledger.ItemByID(id)
			if it == nil {
				return p, fmt.Errorf("%w: %v: %s", ErrSettlement, ErrUnknownItem, id)
			}
			if it.Holder != from.AgentID || !from.Items.Has(id) {
				return p, fmt.Errorf("%w: %v: %s", ErrSettlement, ErrNotHolder, id)
			}
			if it.LockedBy != tr.TradeID {
				return p, fmt.Errorf("%w: %v: %s", ErrSettlement, ErrItemLocked, id)
			}
			p.transfers = append(p.transfers, transfer{item: it, from: from, to: to})
		}
		if ts.Currency < 0 {
			return p, fmt.Errorf("%w: %v", ErrSettlement, ErrNegativeOffer)
		}
		for _, q := range sortedAnswerKeys(ts.Answers) {
			ans := ts.Answers[q]
			f := e.facts.Get(ans.AnswerID)
			if f == nil {
				return p, fmt.Errorf("%w: %v: %s", ErrSettlement, ErrUnknownFact, ans.AnswerID)
			}
			p.answers[i] = append(p.answers[i], ans)
			p.answerFor[i] = append(p.answerFor[i], e.facts.MasterOf(f))
		}
	}
	return p, nil
}

func (e *Engine) apply(tr *Trade, p settlePlan, nowTick uint64) Settlement {
	st := Settlement{Trade: tr, Tick: nowTick}
	var touched []modelpkg.Entity
	for i, ts := range tr.Sides {
		st.Items[i] = ts.Items.Sorted()
		st.Currency[i] = ts.Currency
		st.Answers[i] = p.answers[i]
	}

	for _, t := range p.transfers {
		t.from.Items.Remove(t.item.ItemID)
		t.to.Items.Add(t.item.ItemID)
		t.item.Holder = t.to.AgentID
		t.item.LockedBy = ""
		touched = append(touched, t.item)
	}
	for i, ts := range tr.Sides {
		p.agents[1-i].Currency += ts.Currency
		ts.Currency = 0
	}
	for i := range tr.Sides {
		receiver := p.agents[1-i].AgentID
		for j, ans := range p.answers[i] {
			e.facts.Disclose(p.answerFor[i][j], receiver, ans.Mask)
		}
	}

	tr.Status = modelpkg.TradeSettled
	tr.ClosedTick = nowTick
	for _, ts := range tr.Sides {
		ts.Reset()
	}
	for _, a := range p.agents {
		a.Trades.Remove(tr.TradeID)
	}
	e.touch(tr, touched...)
	return st
}

// Cancel closes the trade without transferring anything: escrowed currency
// goes back to the side that offered it and offered items are unlocked in
// place.
func (e *Engine) Cancel(tr *Trade, reason string, nowTick uint64) (*Cancellation, error) {
	if err := e.checkOpen(tr); err != nil {
		return nil, err
	}
	c := Cancellation{Trade: tr, Reason: reason, Tick: nowTick}
	var touched []modelpkg.Entity
	for i, ts := range tr.Sides {
		a := e.ledger.AgentByID(ts.AgentID)
		if a != nil {
			a.Currency += ts.Currency
			a.Trades.Remove(tr.TradeID)
			c.Refunded[i] = ts.Currency
		}
		for _, id := range ts.Items.Sorted() {
			it := e.ledger.ItemByID(id)
			if it == nil {
				continue
			}
			if it.LockedBy == tr.TradeID {
				it.LockedBy = ""
			}
			c.Unlocked = append(c.Unlocked, id)
			touched = append(touched, it)
		}
	}
	tr.Status = modelpkg.TradeCancelled
	tr.ClosedTick = nowTick
	for _, ts := range tr.Sides {
		ts.Reset()
	}
	e.touch(tr, touched...)
	if e.hooks.OnCancelled != nil {
		e.hooks.OnCancelled(c)
	}
	return &c, nil
}

// CancelAll cancels every negotiating trade agentID takes part in.
func (e *Engine) CancelAll(agentID, reason string, nowTick uint64) []Cancellation {
	var out []Cancellation
	for _, tr := range e.Active(agentID) {
		if c, err := e.Cancel(tr, reason, nowTick); err == nil {
			out = append(out, *c)
		}
	}
	return out
}

func sortedAnswerKeys(m map[string]modelpkg.OfferedAnswer) []string {
	keys := modelpkg.Set{}
	for k := range m {
		keys.Add(k)
	}
	return keys.Sorted()
}
