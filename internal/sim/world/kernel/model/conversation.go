package model

import "hearsay.ai/internal/sim/world/kernel/kind"

type Conversation struct {
	ConversationID string
	RoomID         string
	Participants   Set
	CreatedTick    uint64
}

func (c *Conversation) ID() string      { return c.ConversationID }
func (c *Conversation) Kind() kind.Kind { return kind.Conversation }

type ConversationView struct {
	ID           string   `json:"id"`
	Room         string   `json:"room"`
	Participants []string `json:"participants"`
}

func (c *Conversation) Serialize(_ SerializeContext) any {
	return ConversationView{ID: c.ConversationID, Room: c.RoomID, Participants: c.Participants.Sorted()}
}
