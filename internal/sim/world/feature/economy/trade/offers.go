package trade

import (
	"fmt"

	modelpkg "hearsay.ai/internal/sim/world/kernel/model"
	"hearsay.ai/internal/sim/world/logic/predicate"
)

// OfferItems adds items held by side to its offer and locks them to the trade.
// Either every item is offered or none is.
func (e *Engine) OfferItems(tr *Trade, side modelpkg.Side, itemIDs []string) error {
	if err := e.checkOpen(tr); err != nil {
		return err
	}
	ts := tr.Side(side)
	holder := e.ledger.AgentByID(ts.AgentID)
	if holder == nil {
		return ErrUnknownAgent
	}
	items := make([]*modelpkg.Item, 0, len(itemIDs))
	for _, id := range itemIDs {
		it := e.ledger.ItemByID(id)
		if it == nil {
			return fmt.Errorf("%w: %s", ErrUnknownItem, id)
		}
		if it.Holder != holder.AgentID || !holder.Items.Has(id) {
			return fmt.Errorf("%w: %s", ErrNotHolder, id)
		}
		if it.Locked() && it.LockedBy != tr.TradeID {
			return fmt.Errorf("%w: %s", ErrItemLocked, id)
		}
		items = append(items, it)
	}
	extra := make([]modelpkg.Entity, 0, len(items))
	for _, it := range items {
		ts.Items.Add(it.ItemID)
		it.LockedBy = tr.TradeID
		delete(ts.RequestedItems, it.ItemID)
		extra = append(extra, it)
	}
	tr.ClearReady()
	e.touch(tr, extra...)
	return nil
}

// WithdrawItems takes items back out of side's offer and unlocks them.
func (e *Engine) WithdrawItems(tr *Trade, side modelpkg.Side, itemIDs []string) error {
	if err := e.checkOpen(tr); err != nil {
		return err
	}
	ts := tr.Side(side)
	for _, id := range itemIDs {
		if !ts.Items.Has(id) {
			return fmt.Errorf("%w: %s", ErrNotOffered, id)
		}
	}
	extra := make([]modelpkg.Entity, 0, len(itemIDs))
	for _, id := range itemIDs {
		ts.Items.Remove(id)
		if it := e.ledger.ItemByID(id); it != nil {
			if it.LockedBy == tr.TradeID {
				it.LockedBy = ""
			}
			extra = append(extra, it)
		}
	}
	tr.ClearReady()
	e.touch(tr, extra...)
	return nil
}

// ModifyCurrency moves delta between side's wallet and its escrowed offer.
func (e *Engine) ModifyCurrency(tr *Trade, side modelpkg.Side, delta int64) error {
	if err := e.checkOpen(tr); err != nil {
		return err
	}
	ts := tr.Side(side)
	a := e.ledger.AgentByID(ts.AgentID)
	if a == nil {
		return ErrUnknownAgent
	}
	next := ts.Currency + delta
	if next < 0 {
		return ErrNegativeOffer
	}
	if delta > 0 && a.Currency < delta {
		return ErrInsufficientCurrency
	}
	a.Currency -= delta
	ts.Currency = next
	tr.ClearReady()
	e.touch(tr)
	return nil
}

// RequestItem asks the other side to offer an item it holds.
func (e *Engine) RequestItem(tr *Trade, from modelpkg.Side, itemID string) error {
	if err := e.checkOpen(tr); err != nil {
		return err
	}
	target := tr.Side(from.Other())
	it := e.ledger.ItemByID(itemID)
	if it == nil {
		return fmt.Errorf("%w: %s", ErrUnknownItem, itemID)
	}
	if it.Holder != target.AgentID {
		return fmt.Errorf("%w: %s", ErrNotHolder, itemID)
	}
	target.RequestedItems[itemID] = false
	tr.ClearReady()
	e.touch(tr)
	return nil
}

// RequestAnswer asks the other side for an answer to a question the requester
// holds. The other side learns the question as the requester sees it.
func (e *Engine) RequestAnswer(tr *Trade, from modelpkg.Side, questionID string) error {
	if err := e.checkOpen(tr); err != nil {
		return err
	}
	requester := tr.Side(from).AgentID
	target := tr.Side(from.Other())
	qm, qcp, err := e.heldFact(questionID, requester)
	if err != nil {
		return err
	}
	if !qm.Query {
		return ErrNotQuestion
	}
	target.RequestedAnswers[qm.FactID] = false
	e.facts.Disclose(qm, target.AgentID, qcp.Mask)
	tr.ClearReady()
	e.touch(tr)
	return nil
}

// PassOnRequest declines an outstanding request made against side. The
// request stays visible, marked passed.
func (e *Engine) PassOnRequest(tr *Trade, side modelpkg.Side, id string) error {
	if err := e.checkOpen(tr); err != nil {
		return err
	}
	ts := tr.Side(side)
	if _, ok := ts.RequestedItems[id]; ok {
		ts.RequestedItems[id] = true
		e.touch(tr)
		return nil
	}
	if f := e.facts.Get(id); f != nil {
		m := e.facts.MasterOf(f)
		if _, ok := ts.RequestedAnswers[m.FactID]; ok {
			ts.RequestedAnswers[m.FactID] = true
			e.touch(tr)
			return nil
		}
	}
	return ErrNoSuchRequest
}

// OfferAnswer offers a known fact as the answer to a question. The fields
// disclosed on settlement are the ones side can see itself, minus hide; the
// revealed view must still answer the question.
func (e *Engine) OfferAnswer(tr *Trade, side modelpkg.Side, answerID, questionID string, hide predicate.Mask) error {
	if err := e.checkOpen(tr); err != nil {
		return err
	}
	ts := tr.Side(side)
	other := tr.Side(side.Other())
	am, acp, err := e.heldFact(answerID, ts.AgentID)
	if err != nil {
		return err
	}
	qm, qcp, err := e.heldFact(questionID, ts.AgentID)
	if err != nil {
		return err
	}
	if !qm.Query {
		return ErrNotQuestion
	}
	if am.Query {
		return ErrAnswerMismatch
	}
	reveal := acp.Mask.Union(hide).Clamp(am.Predicate.Shape)
	if !predicate.Answers(am.Predicate, reveal, qm.Predicate, qcp.Mask) {
		return ErrAnswerMismatch
	}
	ts.Answers[qm.FactID] = modelpkg.OfferedAnswer{
		QuestionID: qm.FactID,
		AnswerID:   am.FactID,
		Shape:      am.Predicate.Shape,
		Mask:       reveal,
	}
	delete(ts.RequestedAnswers, qm.FactID)
	e.facts.Disclose(qm, other.AgentID, qcp.Mask)
	tr.ClearReady()
	e.touch(tr)
	return nil
}

// heldFact resolves id to its master and agentID's copy of it.
func (e *Engine) heldFact(id, agentID string) (*modelpkg.Fact, *modelpkg.Fact, error) {
	f := e.facts.Get(id)
	if f == nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownFact, id)
	}
	m := e.facts.MasterOf(f)
	cp := e.facts.AgentCopy(m, agentID)
	if cp == nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownFact, id)
	}
	return m, cp, nil
}
