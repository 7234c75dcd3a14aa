package model

import (
	"sort"

	"hearsay.ai/internal/sim/world/kernel/kind"
	"hearsay.ai/internal/sim/world/logic/predicate"
)

type TradeStatus string

const (
	TradeNegotiating TradeStatus = "NEGOTIATING"
	TradeSettled     TradeStatus = "SETTLED"
	TradeCancelled   TradeStatus = "CANCELLED"
)

// Side indexes the two parties of a trade.
type Side int

const (
	Initiator Side = iota
	Receiver
)

func (s Side) Other() Side { return 1 - s }

func (s Side) String() string {
	if s == Initiator {
		return "initiator"
	}
	return "receiver"
}

// OfferedAnswer is a fact one side is willing to disclose on settlement,
// offered against a question.
type OfferedAnswer struct {
	QuestionID string
	AnswerID   string
	Shape      predicate.Shape
	// Mask is applied when the answer is disclosed to the other side.
	Mask predicate.Mask
}

type TradeSide struct {
	AgentID  string
	Items    Set
	Currency int64
	// RequestedItems are pull requests made against this side: item id -> passed.
	RequestedItems map[string]bool
	// RequestedAnswers are pull requests against this side: question id -> passed.
	RequestedAnswers map[string]bool
	// Answers offered by this side, keyed by the question master id.
	Answers map[string]OfferedAnswer
	Ready   bool
}

func NewTradeSide(agentID string) *TradeSide {
	s := &TradeSide{AgentID: agentID}
	s.Reset()
	return s
}

// Reset clears every pending offer and request.
func (s *TradeSide) Reset() {
	s.Items = Set{}
	s.Currency = 0
	s.RequestedItems = map[string]bool{}
	s.RequestedAnswers = map[string]bool{}
	s.Answers = map[string]OfferedAnswer{}
	s.Ready = false
}

type Trade struct {
	TradeID        string
	ConversationID string
	Sides          [2]*TradeSide
	Status         TradeStatus
	CreatedTick    uint64
	ClosedTick     uint64
}

func NewTrade(id, conversationID, initiator, receiver string, nowTick uint64) *Trade {
	return &Trade{
		TradeID:        id,
		ConversationID: conversationID,
		Sides:          [2]*TradeSide{NewTradeSide(initiator), NewTradeSide(receiver)},
		Status:         TradeNegotiating,
		CreatedTick:    nowTick,
	}
}

func (t *Trade) ID() string      { return t.TradeID }
func (t *Trade) Kind() kind.Kind { return kind.Trade }

func (t *Trade) Side(s Side) *TradeSide { return t.Sides[s] }

// SideOf returns the side agentID plays in this trade.
func (t *Trade) SideOf(agentID string) (Side, bool) {
	for i, s := range t.Sides {
		if s != nil && s.AgentID == agentID {
			return Side(i), true
		}
	}
	return 0, false
}

func (t *Trade) Parties() []string {
	return []string{t.Sides[Initiator].AgentID, t.Sides[Receiver].AgentID}
}

// ClearReady drops both ready flags.
func (t *Trade) ClearReady() {
	for _, s := range t.Sides {
		s.Ready = false
	}
}

func (t *Trade) BothReady() bool {
	return t.Sides[Initiator].Ready && t.Sides[Receiver].Ready
}

type RequestView struct {
	ID     string `json:"id"`
	Passed bool   `json:"passed"`
}

type AnswerOfferView struct {
	Question string   `json:"question"`
	Answer   string   `json:"answer,omitempty"`
	Action   string   `json:"action"`
	Reveals  []string `json:"reveals"`
}

type TradeSideView struct {
	Agent            string            `json:"agent"`
	Items            []string          `json:"items"`
	Currency         int64             `json:"currency"`
	RequestedItems   []RequestView     `json:"requested_items"`
	RequestedAnswers []RequestView     `json:"requested_answers"`
	Answers          []AnswerOfferView `json:"answers"`
	Ready            bool              `json:"ready"`
}

type TradeView struct {
	ID           string           `json:"id"`
	Conversation string           `json:"conversation"`
	Status       TradeStatus      `json:"status"`
	Sides        [2]TradeSideView `json:"sides"`
}

// Serialize translates question ids into the viewer's copies and only names
// the answer fact to the side offering it.
func (t *Trade) Serialize(ctx SerializeContext) any {
	v := TradeView{ID: t.TradeID, Conversation: t.ConversationID, Status: t.Status}
	factFor := func(masterID string) string {
		if ctx.Viewer == "" {
			return masterID
		}
		if ctx.Facts == nil {
			return ""
		}
		return ctx.Facts.CopyIDFor(masterID, ctx.Viewer)
	}
	for i, s := range t.Sides {
		sv := TradeSideView{
			Agent:            s.AgentID,
			Items:            s.Items.Sorted(),
			Currency:         s.Currency,
			Ready:            s.Ready,
			RequestedItems:   requestViews(s.RequestedItems, func(id string) string { return id }),
			RequestedAnswers: requestViews(s.RequestedAnswers, factFor),
			Answers:          []AnswerOfferView{},
		}
		qids := make([]string, 0, len(s.Answers))
		for q := range s.Answers {
			qids = append(qids, q)
		}
		sort.Strings(qids)
		for _, q := range qids {
			ans := s.Answers[q]
			av := AnswerOfferView{
				Question: factFor(ans.QuestionID),
				Action:   ans.Shape.String(),
				Reveals:  visibleNames(ans.Shape, ans.Mask),
			}
			if ctx.IsOwner(s.AgentID) {
				av.Answer = factFor(ans.AnswerID)
			}
			sv.Answers = append(sv.Answers, av)
		}
		v.Sides[i] = sv
	}
	return v
}

func requestViews(m map[string]bool, idFor func(string) string) []RequestView {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]RequestView, 0, len(ids))
	for _, id := range ids {
		out = append(out, RequestView{ID: idFor(id), Passed: m[id]})
	}
	return out
}

func visibleNames(s predicate.Shape, m predicate.Mask) []string {
	out := []string{}
	for i, f := range s.Fields() {
		if !m.Hidden(i) {
			out = append(out, f.Name)
		}
	}
	return out
}
