package world

import (
	"fmt"

	"hearsay.ai/internal/protocol"
	"hearsay.ai/internal/sim/world/feature/economy/trade"
	"hearsay.ai/internal/sim/world/kernel/model"
	"hearsay.ai/internal/sim/world/logic/predicate"
)

func handleInstantTradeRequest(w *World, a *model.Agent, inst protocol.InstantReq, nowTick uint64) (protocol.Event, error) {
	to, err := w.target(a, inst)
	if err != nil {
		return nil, err
	}
	if !w.sameConversation(a, to) {
		return nil, reject(protocol.ErrNoPermission, "not in a conversation with %s", to.AgentID)
	}
	if err := rateLimited(a, "TRADE_REQUEST", nowTick, w.cfg.RateLimits.TradeRequestWindowTicks, w.cfg.RateLimits.TradeRequestMax); err != nil {
		return nil, err
	}
	addPending(w.tradeRequests, to.AgentID, a.AgentID)
	w.addEvent(to.AgentID, protocol.Event{"t": nowTick, "type": "TRADE_REQUEST", "from": a.AgentID})
	return nil, nil
}

func handleInstantTradeAccept(w *World, a *model.Agent, inst protocol.InstantReq, nowTick uint64) (protocol.Event, error) {
	from, err := w.target(a, inst)
	if err != nil {
		return nil, err
	}
	if !hasPending(w.tradeRequests, a.AgentID, from.AgentID) {
		return nil, reject(protocol.ErrInvalidTarget, "no trade request from %s", from.AgentID)
	}
	if !w.sameConversation(a, from) {
		removePending(w.tradeRequests, a.AgentID, from.AgentID)
		return nil, reject(protocol.ErrNoPermission, "not in a conversation with %s", from.AgentID)
	}
	tr, err := w.trades.Open(a.ConversationID, from.AgentID, a.AgentID, nowTick)
	if err != nil {
		return nil, err
	}
	removePending(w.tradeRequests, a.AgentID, from.AgentID)
	w.addEvent(from.AgentID, protocol.Event{"t": nowTick, "type": "TRADE_OPENED", "trade_id": tr.TradeID, "with": a.AgentID})
	return protocol.Event{"trade_id": tr.TradeID}, nil
}

// tradeFor resolves inst.TradeID to a negotiating trade a is party to.
func (w *World) tradeFor(a *model.Agent, inst protocol.InstantReq) (*trade.Trade, model.Side, error) {
	if inst.TradeID == "" {
		return nil, 0, reject(protocol.ErrBadRequest, "missing trade_id")
	}
	tr := w.trades.Get(inst.TradeID)
	if tr == nil {
		return nil, 0, reject(protocol.ErrInvalidTarget, "unknown trade %s", inst.TradeID)
	}
	side, err := w.trades.SideFor(tr, a.AgentID)
	if err != nil {
		return nil, 0, err
	}
	return tr, side, nil
}

func handleInstantTradeOfferItems(w *World, a *model.Agent, inst protocol.InstantReq, _ uint64) (protocol.Event, error) {
	tr, side, err := w.tradeFor(a, inst)
	if err != nil {
		return nil, err
	}
	if len(inst.Items) == 0 {
		return nil, reject(protocol.ErrBadRequest, "missing items")
	}
	return nil, w.trades.OfferItems(tr, side, inst.Items)
}

func handleInstantTradeWithdraw(w *World, a *model.Agent, inst protocol.InstantReq, _ uint64) (protocol.Event, error) {
	tr, side, err := w.tradeFor(a, inst)
	if err != nil {
		return nil, err
	}
	if len(inst.Items) == 0 {
		return nil, reject(protocol.ErrBadRequest, "missing items")
	}
	return nil, w.trades.WithdrawItems(tr, side, inst.Items)
}

func handleInstantTradeCurrency(w *World, a *model.Agent, inst protocol.InstantReq, _ uint64) (protocol.Event, error) {
	tr, side, err := w.tradeFor(a, inst)
	if err != nil {
		return nil, err
	}
	if inst.Delta == 0 {
		return nil, reject(protocol.ErrBadRequest, "delta must be non-zero")
	}
	if err := w.trades.ModifyCurrency(tr, side, inst.Delta); err != nil {
		return nil, err
	}
	return protocol.Event{"offered": tr.Side(side).Currency}, nil
}

func handleInstantTradeRequestItem(w *World, a *model.Agent, inst protocol.InstantReq, _ uint64) (protocol.Event, error) {
	tr, side, err := w.tradeFor(a, inst)
	if err != nil {
		return nil, err
	}
	if inst.ItemID == "" {
		return nil, reject(protocol.ErrBadRequest, "missing item_id")
	}
	return nil, w.trades.RequestItem(tr, side, inst.ItemID)
}

func handleInstantTradeRequestAnswer(w *World, a *model.Agent, inst protocol.InstantReq, _ uint64) (protocol.Event, error) {
	tr, side, err := w.tradeFor(a, inst)
	if err != nil {
		return nil, err
	}
	if inst.QuestionID == "" {
		return nil, reject(protocol.ErrBadRequest, "missing question_id")
	}
	return nil, w.trades.RequestAnswer(tr, side, inst.QuestionID)
}

func handleInstantTradePass(w *World, a *model.Agent, inst protocol.InstantReq, _ uint64) (protocol.Event, error) {
	tr, side, err := w.tradeFor(a, inst)
	if err != nil {
		return nil, err
	}
	id := inst.ItemID
	if id == "" {
		id = inst.QuestionID
	}
	if id == "" {
		return nil, reject(protocol.ErrBadRequest, "missing item_id or question_id")
	}
	return nil, w.trades.PassOnRequest(tr, side, id)
}

func handleInstantTradeOfferAnswer(w *World, a *model.Agent, inst protocol.InstantReq, _ uint64) (protocol.Event, error) {
	tr, side, err := w.tradeFor(a, inst)
	if err != nil {
		return nil, err
	}
	if inst.FactID == "" || inst.QuestionID == "" {
		return nil, reject(protocol.ErrBadRequest, "missing fact_id or question_id")
	}
	f := w.facts.Get(inst.FactID)
	if f == nil {
		return nil, fmt.Errorf("%w: %s", trade.ErrUnknownFact, inst.FactID)
	}
	hide, err := predicate.MaskOf(w.facts.MasterOf(f).Predicate.Shape, inst.Hide...)
	if err != nil {
		return nil, reject(protocol.ErrBadRequest, "hide: %v", err)
	}
	return nil, w.trades.OfferAnswer(tr, side, inst.FactID, inst.QuestionID, hide)
}

func handleInstantTradeReady(w *World, a *model.Agent, inst protocol.InstantReq, nowTick uint64) (protocol.Event, error) {
	tr, side, err := w.tradeFor(a, inst)
	if err != nil {
		return nil, err
	}
	st, err := w.trades.SetReady(tr, side, inst.ReadyOrDefault(), nowTick)
	if err != nil {
		return nil, err
	}
	return protocol.Event{"settled": st != nil}, nil
}

func handleInstantTradeCancel(w *World, a *model.Agent, inst protocol.InstantReq, nowTick uint64) (protocol.Event, error) {
	tr, _, err := w.tradeFor(a, inst)
	if err != nil {
		return nil, err
	}
	if _, err := w.trades.Cancel(tr, "cancelled by "+a.AgentID, nowTick); err != nil {
		return nil, err
	}
	return nil, nil
}
