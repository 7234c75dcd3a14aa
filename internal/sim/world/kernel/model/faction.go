package model

import "hearsay.ai/internal/sim/world/kernel/kind"

type Faction struct {
	FactionID string
	Name      string
	Members   Set
}

func (f *Faction) ID() string      { return f.FactionID }
func (f *Faction) Kind() kind.Kind { return kind.Faction }

type FactionView struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Members []string `json:"members"`
}

func (f *Faction) Serialize(_ SerializeContext) any {
	return FactionView{ID: f.FactionID, Name: f.Name, Members: f.Members.Sorted()}
}
