package protocol

// Instant types accepted in ACT.
const (
	InstantMove              = "MOVE"
	InstantPickup            = "PICKUP"
	InstantDrop              = "DROP"
	InstantConverseRequest   = "CONVERSE_REQUEST"
	InstantConverseAccept    = "CONVERSE_ACCEPT"
	InstantLeaveConversation = "LEAVE_CONVERSATION"
	InstantTell              = "TELL"
	InstantAsk               = "ASK"
	InstantTradeRequest      = "TRADE_REQUEST"
	InstantTradeAccept       = "TRADE_ACCEPT"
	InstantTradeOfferItems   = "TRADE_OFFER_ITEMS"
	InstantTradeWithdraw     = "TRADE_WITHDRAW_ITEMS"
	InstantTradeCurrency     = "TRADE_CURRENCY"
	InstantTradeRequestItem  = "TRADE_REQUEST_ITEM"
	InstantTradeRequestAns   = "TRADE_REQUEST_ANSWER"
	InstantTradePass         = "TRADE_PASS"
	InstantTradeOfferAnswer  = "TRADE_OFFER_ANSWER"
	InstantTradeReady        = "TRADE_READY"
	InstantTradeCancel       = "TRADE_CANCEL"
)

// ACT (client -> server)
type ActMsg struct {
	Type            string       `json:"type"`
	ProtocolVersion string       `json:"protocol_version"`
	Tick            uint64       `json:"tick"`
	AgentID         string       `json:"agent_id"`
	Instants        []InstantReq `json:"instants"`
}

type InstantReq struct {
	ID   string `json:"id"`
	Type string `json:"type"`

	To     string   `json:"to,omitempty"`
	Room   string   `json:"room,omitempty"`
	ItemID string   `json:"item_id,omitempty"`
	Items  []string `json:"items,omitempty"`

	// FactID is the fact told or, for TRADE_OFFER_ANSWER, the answer.
	FactID     string   `json:"fact_id,omitempty"`
	QuestionID string   `json:"question_id,omitempty"`
	Hide       []string `json:"hide,omitempty"`

	// ASK: the shape asked about and the fields the asker states.
	Shape string            `json:"shape,omitempty"`
	Known map[string]string `json:"known,omitempty"`

	TradeID string `json:"trade_id,omitempty"`
	Delta   int64  `json:"delta,omitempty"`
	// Ready defaults to true when omitted.
	Ready *bool `json:"ready,omitempty"`
}

func (r InstantReq) ReadyOrDefault() bool {
	if r.Ready == nil {
		return true
	}
	return *r.Ready
}
