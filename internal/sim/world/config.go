package world

import "hearsay.ai/internal/sim/tuning"

type WorldConfig struct {
	ID               string
	TickRateHz       int
	StartingCurrency int64

	// MinActionIntervalMs is enforced by the transport; the world only
	// announces it in WELCOME.
	MinActionIntervalMs int

	SpawnRoom string
	Rooms     []tuning.RoomDef
	Factions  []tuning.FactionDef

	// Starter items granted to newly joined agents, by name.
	StarterItems []string
	RoomItems    []tuning.RoomItemDef

	RateLimits RateLimitConfig
}

type RateLimitConfig struct {
	TellWindowTicks         int
	TellMax                 int
	AskWindowTicks          int
	AskMax                  int
	TradeRequestWindowTicks int
	TradeRequestMax         int
}

// ConfigFromTuning maps a loaded tuning file onto the world's runtime config.
func ConfigFromTuning(t tuning.Tuning) WorldConfig {
	return WorldConfig{
		ID:                  t.WorldID,
		TickRateHz:          t.TickRateHz,
		StartingCurrency:    t.StartingCurrency,
		MinActionIntervalMs: t.MinActionIntervalMs,
		SpawnRoom:           t.SpawnRoom,
		Rooms:               append([]tuning.RoomDef(nil), t.Rooms...),
		Factions:            append([]tuning.FactionDef(nil), t.Factions...),
		StarterItems:        append([]string(nil), t.StarterItems...),
		RoomItems:           append([]tuning.RoomItemDef(nil), t.RoomItems...),
		RateLimits: RateLimitConfig{
			TellWindowTicks:         t.RateLimits.TellWindowTicks,
			TellMax:                 t.RateLimits.TellMax,
			AskWindowTicks:          t.RateLimits.AskWindowTicks,
			AskMax:                  t.RateLimits.AskMax,
			TradeRequestWindowTicks: t.RateLimits.TradeRequestWindowTicks,
			TradeRequestMax:         t.RateLimits.TradeRequestMax,
		},
	}
}

func (c WorldConfig) withDefaults() WorldConfig {
	if c.TickRateHz <= 0 {
		c.TickRateHz = 5
	}
	if c.ID == "" {
		c.ID = "WORLD"
	}
	if c.SpawnRoom == "" && len(c.Rooms) > 0 {
		c.SpawnRoom = c.Rooms[0].ID
	}
	return c
}
