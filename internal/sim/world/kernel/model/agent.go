package model

import (
	"hearsay.ai/internal/sim/world/kernel/kind"
	"hearsay.ai/internal/sim/world/logic/rates"
)

type Agent struct {
	AgentID   string
	Name      string
	RoomID    string
	FactionID string

	// ConversationID is the conversation the agent currently takes part in.
	ConversationID string

	// ResumeToken is a transport-level token used for reconnects.
	ResumeToken string

	// Currency is the spendable wallet; amounts escrowed in trades are not counted.
	Currency int64
	Items    Set
	// Knowledge holds the ids of this agent's derived fact copies.
	Knowledge Set
	// Trades holds ids of trades this agent is negotiating.
	Trades Set

	JoinedTick uint64

	rl rates.Limiter
}

func NewAgent(id, name string) *Agent {
	a := &Agent{AgentID: id, Name: name}
	a.InitDefaults()
	return a
}

func (a *Agent) InitDefaults() {
	if a.Items == nil {
		a.Items = Set{}
	}
	if a.Knowledge == nil {
		a.Knowledge = Set{}
	}
	if a.Trades == nil {
		a.Trades = Set{}
	}
	if a.Name == "" {
		a.Name = "agent"
	}
}

// RateLimitAllow counts one instant of the given kind against its window.
func (a *Agent) RateLimitAllow(action string, nowTick uint64, window uint64, max int) (ok bool, cooldownTicks uint64) {
	return a.rl.Allow(action, nowTick, window, max)
}

func (a *Agent) ID() string      { return a.AgentID }
func (a *Agent) Kind() kind.Kind { return kind.Agent }

type AgentView struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Room         string   `json:"room"`
	Faction      string   `json:"faction,omitempty"`
	Conversation string   `json:"conversation,omitempty"`
	Currency     int64    `json:"currency"`
	Items        []string `json:"items"`
}

// Serialize zeroes currency for anyone but the agent itself.
func (a *Agent) Serialize(ctx SerializeContext) any {
	v := AgentView{
		ID:           a.AgentID,
		Name:         a.Name,
		Room:         a.RoomID,
		Faction:      a.FactionID,
		Conversation: a.ConversationID,
		Items:        a.Items.Sorted(),
	}
	if ctx.IsOwner(a.AgentID) {
		v.Currency = a.Currency
	}
	return v
}
