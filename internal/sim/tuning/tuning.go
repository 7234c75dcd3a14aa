package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`
	WorldID         string `yaml:"world_id"`

	TickRateHz          int   `yaml:"tick_rate_hz"`
	MinActionIntervalMs int   `yaml:"min_action_interval_ms"`
	StartingCurrency    int64 `yaml:"starting_currency"`
	// MaxQueue bounds each connection's outbound DELTA queue.
	MaxQueue int `yaml:"max_queue"`

	SpawnRoom    string        `yaml:"spawn_room"`
	Rooms        []RoomDef     `yaml:"rooms"`
	Factions     []FactionDef  `yaml:"factions"`
	StarterItems []string      `yaml:"starter_items"`
	RoomItems    []RoomItemDef `yaml:"room_items"`

	RateLimits RateLimits `yaml:"rate_limits"`
}

type RoomDef struct {
	ID       string   `yaml:"id"`
	Name     string   `yaml:"name"`
	Adjacent []string `yaml:"adjacent"`
}

type FactionDef struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

type RoomItemDef struct {
	Room string `yaml:"room"`
	Name string `yaml:"name"`
}

type RateLimits struct {
	TellWindowTicks         int `yaml:"tell_window_ticks"`
	TellMax                 int `yaml:"tell_max"`
	AskWindowTicks          int `yaml:"ask_window_ticks"`
	AskMax                  int `yaml:"ask_max"`
	TradeRequestWindowTicks int `yaml:"trade_request_window_ticks"`
	TradeRequestMax         int `yaml:"trade_request_max"`
}

func Defaults() Tuning {
	return Tuning{
		ProtocolVersion:     "1.0",
		WorldID:             "TOWN",
		TickRateHz:          5,
		MinActionIntervalMs: 200,
		StartingCurrency:    100,
		MaxQueue:            64,
		SpawnRoom:           "square",
		Rooms: []RoomDef{
			{ID: "square", Name: "Town Square", Adjacent: []string{"tavern", "market"}},
			{ID: "tavern", Name: "Tavern", Adjacent: []string{"square", "cellar"}},
			{ID: "market", Name: "Market", Adjacent: []string{"square"}},
			{ID: "cellar", Name: "Cellar", Adjacent: []string{"tavern"}},
		},
		Factions:     []FactionDef{{ID: "guild", Name: "Merchants' Guild"}},
		StarterItems: []string{"lantern"},
		RoomItems: []RoomItemDef{
			{Room: "cellar", Name: "old key"},
			{Room: "market", Name: "silver ring"},
		},
		RateLimits: RateLimits{
			TellWindowTicks:         50,
			TellMax:                 10,
			AskWindowTicks:          50,
			AskMax:                  5,
			TradeRequestWindowTicks: 50,
			TradeRequestMax:         5,
		},
	}
}

// Load reads path over Defaults. Missing keys keep their default; a present
// rooms list replaces the default map entirely.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

// Validate checks the room graph and spawn point.
func (t Tuning) Validate() error {
	if t.TickRateHz <= 0 {
		return fmt.Errorf("tick_rate_hz must be > 0")
	}
	if t.MinActionIntervalMs < 0 || t.StartingCurrency < 0 || t.MaxQueue < 0 {
		return fmt.Errorf("negative limits")
	}
	if len(t.Rooms) == 0 {
		return fmt.Errorf("no rooms")
	}
	rooms := map[string]bool{}
	for _, r := range t.Rooms {
		if r.ID == "" {
			return fmt.Errorf("room without id")
		}
		if rooms[r.ID] {
			return fmt.Errorf("duplicate room %q", r.ID)
		}
		rooms[r.ID] = true
	}
	for _, r := range t.Rooms {
		for _, adj := range r.Adjacent {
			if !rooms[adj] {
				return fmt.Errorf("room %q: unknown adjacent room %q", r.ID, adj)
			}
		}
	}
	if !rooms[t.SpawnRoom] {
		return fmt.Errorf("spawn_room %q is not a room", t.SpawnRoom)
	}
	for _, it := range t.RoomItems {
		if !rooms[it.Room] {
			return fmt.Errorf("room item %q: unknown room %q", it.Name, it.Room)
		}
	}
	return nil
}
