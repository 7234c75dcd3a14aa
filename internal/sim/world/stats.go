package world

// WorldStats is a point-in-time view of the world published at the end of
// every step. It is safe to read from any goroutine.
type WorldStats struct {
	Tick          uint64 `json:"tick"`
	Agents        int    `json:"agents"`
	Clients       int    `json:"clients"`
	Facts         int    `json:"facts"`
	Conversations int    `json:"conversations"`

	QueueDepths QueueDepths `json:"queue_depths"`
}

type QueueDepths struct {
	Inbox  int `json:"inbox"`
	Join   int `json:"join"`
	Leave  int `json:"leave"`
	Attach int `json:"attach"`
}

func (w *World) Stats() WorldStats {
	if w == nil {
		return WorldStats{}
	}
	if s := w.stats.Load(); s != nil {
		return *s
	}
	return WorldStats{}
}

func (w *World) publishStats(nowTick uint64) {
	s := &WorldStats{
		Tick:          nowTick,
		Agents:        w.agents.Len(),
		Clients:       len(w.clients),
		Facts:         w.facts.Len(),
		Conversations: w.conversations.Len(),
		QueueDepths: QueueDepths{
			Inbox:  len(w.inbox),
			Join:   len(w.join),
			Leave:  len(w.leave),
			Attach: len(w.attach),
		},
	}
	w.stats.Store(s)
	w.metrics.SetWorldSize(s.Agents, s.Facts)
}
