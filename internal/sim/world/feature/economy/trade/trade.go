package trade

import (
	"errors"
	"fmt"

	"hearsay.ai/internal/sim/world/kernel/arena"
	modelpkg "hearsay.ai/internal/sim/world/kernel/model"
	"hearsay.ai/internal/sim/world/logic/predicate"
)

type Trade = modelpkg.Trade

func TradeID(n uint64) string {
	return fmt.Sprintf("TR%06d", n)
}

var (
	ErrNotNegotiating       = errors.New("trade is not negotiating")
	ErrNotParty             = errors.New("agent is not a party to this trade")
	ErrUnknownAgent         = errors.New("unknown agent")
	ErrUnknownItem          = errors.New("unknown item")
	ErrNotHolder            = errors.New("item not held by that side")
	ErrItemLocked           = errors.New("item already offered in another trade")
	ErrNotOffered           = errors.New("item not offered")
	ErrNegativeOffer        = errors.New("offered currency would become negative")
	ErrInsufficientCurrency = errors.New("insufficient currency")
	ErrUnknownFact          = errors.New("fact unknown to agent")
	ErrNotQuestion          = errors.New("fact is not a question")
	ErrAnswerMismatch       = errors.New("fact does not answer the question")
	ErrNoSuchRequest        = errors.New("no such request against this side")
	ErrSettlement           = errors.New("trade cannot settle")
)

// Ledger resolves the agents and items a trade moves around.
type Ledger interface {
	AgentByID(id string) *modelpkg.Agent
	ItemByID(id string) *modelpkg.Item
}

// Facts is the slice of the fact store the engine needs.
type Facts interface {
	Get(id string) *modelpkg.Fact
	MasterOf(f *modelpkg.Fact) *modelpkg.Fact
	AgentCopy(master *modelpkg.Fact, agentID string) *modelpkg.Fact
	Disclose(f *modelpkg.Fact, agentID string, mask predicate.Mask) *modelpkg.Fact
}

type Recorder interface {
	RecordChange(agentID string, entities ...modelpkg.Entity)
}

// Settlement summarizes what a settled trade moved, per giving side.
type Settlement struct {
	Trade    *Trade
	Items    [2][]string
	Currency [2]int64
	Answers  [2][]modelpkg.OfferedAnswer
	Tick     uint64
}

type Cancellation struct {
	Trade    *Trade
	Refunded [2]int64
	Unlocked []string
	Reason   string
	Tick     uint64
}

type Hooks struct {
	OnSettled   func(Settlement)
	OnCancelled func(Cancellation)
}

// Engine runs the bilateral negotiation state machine. It is not safe for
// concurrent use; the world serializes every call.
type Engine struct {
	trades  *arena.Arena[*Trade]
	ledger  Ledger
	facts   Facts
	changes Recorder
	hooks   Hooks
}

func NewEngine(trades *arena.Arena[*Trade], ledger Ledger, facts Facts, changes Recorder, hooks Hooks) *Engine {
	if trades == nil {
		trades = arena.New[*Trade]("TR", 6)
	}
	return &Engine{trades: trades, ledger: ledger, facts: facts, changes: changes, hooks: hooks}
}

func (e *Engine) Get(id string) *Trade {
	tr, _ := e.trades.Get(id)
	return tr
}

// Open starts a negotiation between two agents that share a conversation.
func (e *Engine) Open(conversationID, initiator, receiver string, nowTick uint64) (*Trade, error) {
	a := e.ledger.AgentByID(initiator)
	b := e.ledger.AgentByID(receiver)
	if a == nil || b == nil {
		return nil, ErrUnknownAgent
	}
	tr := modelpkg.NewTrade(e.trades.NextID(), conversationID, initiator, receiver, nowTick)
	e.trades.Put(tr.TradeID, tr)
	a.Trades.Add(tr.TradeID)
	b.Trades.Add(tr.TradeID)
	e.touch(tr)
	return tr, nil
}

// SideFor resolves which side agentID plays, rejecting closed trades.
func (e *Engine) SideFor(tr *Trade, agentID string) (modelpkg.Side, error) {
	if tr == nil || tr.Status != modelpkg.TradeNegotiating {
		return 0, ErrNotNegotiating
	}
	s, ok := tr.SideOf(agentID)
	if !ok {
		return 0, ErrNotParty
	}
	return s, nil
}

// Active lists the negotiating trades agentID is part of, in id order.
func (e *Engine) Active(agentID string) []*Trade {
	a := e.ledger.AgentByID(agentID)
	if a == nil {
		return nil
	}
	var out []*Trade
	for _, id := range a.Trades.Sorted() {
		if tr := e.Get(id); tr != nil && tr.Status == modelpkg.TradeNegotiating {
			out = append(out, tr)
		}
	}
	return out
}

func (e *Engine) checkOpen(tr *Trade) error {
	if tr == nil || tr.Status != modelpkg.TradeNegotiating {
		return ErrNotNegotiating
	}
	return nil
}

// touch records the trade, both parties and any extra entities for both parties.
func (e *Engine) touch(tr *Trade, extra ...modelpkg.Entity) {
	if e.changes == nil {
		return
	}
	ents := make([]modelpkg.Entity, 0, 3+len(extra))
	ents = append(ents, tr)
	for _, id := range tr.Parties() {
		if a := e.ledger.AgentByID(id); a != nil {
			ents = append(ents, a)
		}
	}
	ents = append(ents, extra...)
	for _, id := range tr.Parties() {
		e.changes.RecordChange(id, ents...)
	}
}
