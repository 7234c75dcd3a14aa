package model

import "hearsay.ai/internal/sim/world/kernel/kind"

type Item struct {
	ItemID string
	Name   string
	// Holder is an agent id or a room id.
	Holder string
	// LockedBy is the trade the item is offered in, if any.
	LockedBy string
}

func (i *Item) ID() string      { return i.ItemID }
func (i *Item) Kind() kind.Kind { return kind.Item }

func (i *Item) Locked() bool { return i.LockedBy != "" }

type ItemView struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Holder string `json:"holder"`
	Locked bool   `json:"locked,omitempty"`
}

func (i *Item) Serialize(_ SerializeContext) any {
	return ItemView{ID: i.ItemID, Name: i.Name, Holder: i.Holder, Locked: i.Locked()}
}
