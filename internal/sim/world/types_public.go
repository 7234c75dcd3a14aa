package world

import "hearsay.ai/internal/protocol"

type JoinRequest struct {
	Name string
	// Encoding is the DELTA encoding the client negotiated in HELLO.
	Encoding string
	Out      chan []byte
	Resp     chan JoinResponse
}

type AttachRequest struct {
	ResumeToken string
	Encoding    string
	Out         chan []byte
	Resp        chan JoinResponse
}

// LeaveRequest detaches the session that owns Out. A nil Out detaches
// whatever session the agent has.
type LeaveRequest struct {
	AgentID string
	Out     chan []byte
}

type JoinResponse struct {
	Welcome protocol.WelcomeMsg
}

type ActionEnvelope struct {
	AgentID string
	Act     protocol.ActMsg
}

type AuditEntry struct {
	Tick   uint64 `json:"tick"`
	Actor  string `json:"actor"`
	Action string `json:"action"`
	Ref    string `json:"ref,omitempty"`
	OK     bool   `json:"ok"`
	Code   string `json:"code,omitempty"`
	Reason string `json:"reason,omitempty"`
}

type AuditLogger interface {
	WriteAudit(e AuditEntry) error
}

type TradeLogEntry struct {
	Tick      uint64 `json:"tick"`
	TradeID   string `json:"trade_id"`
	Status    string `json:"status"`
	Initiator string `json:"initiator"`
	Receiver  string `json:"receiver"`
	Reason    string `json:"reason,omitempty"`

	// Settled trades only.
	Items    [2][]string `json:"items,omitempty"`
	Currency [2]int64    `json:"currency,omitempty"`
	Answers  [2][]string `json:"answers,omitempty"`
}

type TradeLogger interface {
	WriteTrade(e TradeLogEntry) error
}
