package world

import (
	"errors"
	"fmt"

	"hearsay.ai/internal/protocol"
	"hearsay.ai/internal/sim/world/feature/economy/trade"
	"hearsay.ai/internal/sim/world/feature/knowledge"
	"hearsay.ai/internal/sim/world/kernel/model"
)

// instantHandler validates one instant and applies it. extra is merged into
// the ACTION_RESULT of a successful instant.
type instantHandler func(w *World, a *model.Agent, inst protocol.InstantReq, nowTick uint64) (extra protocol.Event, err error)

var instantDispatch = map[string]instantHandler{
	protocol.InstantMove:              handleInstantMove,
	protocol.InstantPickup:            handleInstantPickup,
	protocol.InstantDrop:              handleInstantDrop,
	protocol.InstantConverseRequest:   handleInstantConverseRequest,
	protocol.InstantConverseAccept:    handleInstantConverseAccept,
	protocol.InstantLeaveConversation: handleInstantLeaveConversation,
	protocol.InstantTell:              handleInstantTell,
	protocol.InstantAsk:               handleInstantAsk,
	protocol.InstantTradeRequest:      handleInstantTradeRequest,
	protocol.InstantTradeAccept:       handleInstantTradeAccept,
	protocol.InstantTradeOfferItems:   handleInstantTradeOfferItems,
	protocol.InstantTradeWithdraw:     handleInstantTradeWithdraw,
	protocol.InstantTradeCurrency:     handleInstantTradeCurrency,
	protocol.InstantTradeRequestItem:  handleInstantTradeRequestItem,
	protocol.InstantTradeRequestAns:   handleInstantTradeRequestAnswer,
	protocol.InstantTradePass:         handleInstantTradePass,
	protocol.InstantTradeOfferAnswer:  handleInstantTradeOfferAnswer,
	protocol.InstantTradeReady:        handleInstantTradeReady,
	protocol.InstantTradeCancel:       handleInstantTradeCancel,
}

// actionError is a rejection raised by the action layer itself.
type actionError struct {
	code string
	msg  string
}

func (e *actionError) Error() string { return e.msg }

func reject(code, format string, args ...any) error {
	return &actionError{code: code, msg: fmt.Sprintf(format, args...)}
}

// errCode maps a rejection onto a protocol error code.
func errCode(err error) string {
	var ae *actionError
	switch {
	case errors.As(err, &ae):
		return ae.code
	case errors.Is(err, trade.ErrNotParty), errors.Is(err, trade.ErrNotHolder):
		return protocol.ErrNoPermission
	case errors.Is(err, trade.ErrNotNegotiating), errors.Is(err, trade.ErrItemLocked), errors.Is(err, trade.ErrSettlement):
		return protocol.ErrConflict
	case errors.Is(err, trade.ErrUnknownAgent), errors.Is(err, trade.ErrUnknownItem),
		errors.Is(err, trade.ErrUnknownFact), errors.Is(err, trade.ErrNoSuchRequest):
		return protocol.ErrInvalidTarget
	case errors.Is(err, trade.ErrNegativeOffer), errors.Is(err, trade.ErrInsufficientCurrency):
		return protocol.ErrNoResource
	case errors.Is(err, trade.ErrNotOffered), errors.Is(err, trade.ErrNotQuestion), errors.Is(err, trade.ErrAnswerMismatch):
		return protocol.ErrBadRequest
	default:
		return protocol.ErrInternal
	}
}

func actionResult(nowTick uint64, ref string, ok bool, code, message string) protocol.Event {
	ev := protocol.Event{"t": nowTick, "type": "ACTION_RESULT", "ref": ref, "ok": ok}
	if !ok {
		ev["code"] = code
		ev["message"] = message
	}
	return ev
}

func (w *World) applyAct(env ActionEnvelope, nowTick uint64) {
	a := w.AgentByID(env.AgentID)
	if a == nil {
		return
	}
	for _, inst := range env.Act.Instants {
		w.applyInstant(a, inst, nowTick)
	}
}

// applyInstant runs one instant to completion. A broken fact invariant
// aborts only this instant and is reported as E_INTERNAL.
func (w *World) applyInstant(a *model.Agent, inst protocol.InstantReq, nowTick uint64) {
	var (
		extra protocol.Event
		err   error
	)
	func() {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			var ie *knowledge.InvariantError
			if e, ok := r.(error); ok && errors.As(e, &ie) {
				w.logf("INVARIANT agent=%s instant=%s ref=%s: %v", a.AgentID, inst.Type, inst.ID, ie)
				err = reject(protocol.ErrInternal, "internal error")
				return
			}
			panic(r)
		}()
		h, ok := instantDispatch[inst.Type]
		if !ok {
			err = reject(protocol.ErrBadRequest, "unknown instant type %q", inst.Type)
			return
		}
		extra, err = h(w, a, inst, nowTick)
	}()

	if err != nil {
		code := errCode(err)
		w.addEvent(a.AgentID, actionResult(nowTick, inst.ID, false, code, err.Error()))
		w.auditEvent(nowTick, a.AgentID, inst.Type, inst.ID, false, code, err.Error())
		w.metrics.ObserveAction(inst.Type, code)
		return
	}
	ev := actionResult(nowTick, inst.ID, true, "", "")
	for k, v := range extra {
		ev[k] = v
	}
	w.addEvent(a.AgentID, ev)
	w.auditEvent(nowTick, a.AgentID, inst.Type, inst.ID, true, "", "")
	w.metrics.ObserveAction(inst.Type, "OK")
}

// rateLimited checks the per-agent window for action.
func rateLimited(a *model.Agent, action string, nowTick uint64, window, limit int) error {
	if limit <= 0 || window <= 0 {
		return nil
	}
	if ok, cd := a.RateLimitAllow(action, nowTick, uint64(window), limit); !ok {
		return reject(protocol.ErrRateLimit, "too many %s, retry in %d ticks", action, cd)
	}
	return nil
}
