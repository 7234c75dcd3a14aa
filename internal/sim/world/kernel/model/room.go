package model

import "hearsay.ai/internal/sim/world/kernel/kind"

type Room struct {
	RoomID    string
	Name      string
	Adjacent  []string
	Occupants Set
	// Items lying on the floor.
	Items Set
}

func NewRoom(id, name string, adjacent []string) *Room {
	adj := make([]string, len(adjacent))
	copy(adj, adjacent)
	return &Room{RoomID: id, Name: name, Adjacent: adj, Occupants: Set{}, Items: Set{}}
}

func (r *Room) ID() string      { return r.RoomID }
func (r *Room) Kind() kind.Kind { return kind.Room }

func (r *Room) IsAdjacent(roomID string) bool {
	for _, id := range r.Adjacent {
		if id == roomID {
			return true
		}
	}
	return false
}

type RoomView struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Adjacent  []string `json:"adjacent"`
	Occupants []string `json:"occupants"`
	Items     []string `json:"items"`
}

func (r *Room) Serialize(_ SerializeContext) any {
	return RoomView{
		ID:        r.RoomID,
		Name:      r.Name,
		Adjacent:  append([]string(nil), r.Adjacent...),
		Occupants: r.Occupants.Sorted(),
		Items:     r.Items.Sorted(),
	}
}
