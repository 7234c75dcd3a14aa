package world

import (
	"fmt"
	"log"
	"sync/atomic"

	"hearsay.ai/internal/metrics"
	"hearsay.ai/internal/protocol"
	"hearsay.ai/internal/sim/world/feature/delta"
	"hearsay.ai/internal/sim/world/feature/economy/trade"
	"hearsay.ai/internal/sim/world/feature/knowledge"
	"hearsay.ai/internal/sim/world/kernel/arena"
	"hearsay.ai/internal/sim/world/kernel/kind"
	"hearsay.ai/internal/sim/world/kernel/model"
)

type clientState struct {
	Out      chan []byte
	Encoding string
	Seq      uint64
}

// World owns every entity and runs all mutations on the goroutine executing
// Run. Callers talk to it through the request channels.
type World struct {
	cfg WorldConfig

	tick  atomic.Uint64
	stats atomic.Pointer[WorldStats]

	agents        *arena.Arena[*model.Agent]
	rooms         *arena.Arena[*model.Room]
	items         *arena.Arena[*model.Item]
	factions      *arena.Arena[*model.Faction]
	conversations *arena.Arena[*model.Conversation]

	facts   *knowledge.Store
	trades  *trade.Engine
	changes *delta.Tracker

	// Pending requests keyed by target agent: target -> requesters.
	convRequests  map[string]model.Set
	tradeRequests map[string]model.Set

	events  map[string][]protocol.Event
	clients map[string]*clientState
	// Agents owed a full DELTA at the next flush.
	fullSync model.Set

	inbox  chan ActionEnvelope
	join   chan JoinRequest
	attach chan AttachRequest
	leave  chan LeaveRequest
	resync chan string
	stop   chan struct{}

	logger      *log.Logger
	auditLogger AuditLogger
	tradeLogger TradeLogger
	metrics     *metrics.Metrics
}

func New(cfg WorldConfig) (*World, error) {
	cfg = cfg.withDefaults()
	if len(cfg.Rooms) == 0 {
		return nil, fmt.Errorf("world %s: no rooms configured", cfg.ID)
	}
	w := &World{
		cfg:           cfg,
		agents:        arena.New[*model.Agent]("A", 0),
		rooms:         arena.New[*model.Room]("R", 0),
		items:         arena.New[*model.Item]("I", 0),
		factions:      arena.New[*model.Faction]("G", 0),
		conversations: arena.New[*model.Conversation]("C", 0),
		convRequests:  map[string]model.Set{},
		tradeRequests: map[string]model.Set{},
		events:        map[string][]protocol.Event{},
		clients:       map[string]*clientState{},
		fullSync:      model.Set{},
		inbox:         make(chan ActionEnvelope, 1024),
		join:          make(chan JoinRequest, 64),
		attach:        make(chan AttachRequest, 64),
		leave:         make(chan LeaveRequest, 64),
		resync:        make(chan string, 64),
		stop:          make(chan struct{}),
	}

	for _, rd := range cfg.Rooms {
		w.rooms.Put(rd.ID, model.NewRoom(rd.ID, rd.Name, rd.Adjacent))
	}
	if _, ok := w.rooms.Get(cfg.SpawnRoom); !ok {
		return nil, fmt.Errorf("world %s: spawn room %q not configured", cfg.ID, cfg.SpawnRoom)
	}
	for _, rd := range cfg.Rooms {
		for _, adj := range rd.Adjacent {
			if _, ok := w.rooms.Get(adj); !ok {
				return nil, fmt.Errorf("world %s: room %s is adjacent to unknown room %s", cfg.ID, rd.ID, adj)
			}
		}
	}
	for _, fd := range cfg.Factions {
		w.factions.Put(fd.ID, &model.Faction{FactionID: fd.ID, Name: fd.Name, Members: model.Set{}})
	}
	for _, ri := range cfg.RoomItems {
		r, ok := w.rooms.Get(ri.Room)
		if !ok {
			return nil, fmt.Errorf("world %s: item %q placed in unknown room %s", cfg.ID, ri.Name, ri.Room)
		}
		it := w.newItem(ri.Name, r.RoomID)
		r.Items.Add(it.ItemID)
	}

	w.changes = delta.NewTracker(w, nil)
	w.facts = knowledge.NewStore(arena.New[*model.Fact]("F", 6), w, w.changes)
	w.facts.OnDisclose = func(_ *model.Fact, created bool) { w.metrics.ObserveDisclosure(created) }
	w.changes.SetFacts(w.facts)
	w.trades = trade.NewEngine(arena.New[*trade.Trade]("TR", 6), w, w.facts, w.changes, trade.Hooks{
		OnSettled:   w.onTradeSettled,
		OnCancelled: w.onTradeCancelled,
	})
	return w, nil
}

func (w *World) SetLogger(l *log.Logger)       { w.logger = l }
func (w *World) SetAuditLogger(l AuditLogger)  { w.auditLogger = l }
func (w *World) SetTradeLogger(l TradeLogger)  { w.tradeLogger = l }
func (w *World) SetMetrics(m *metrics.Metrics) { w.metrics = m }
func (w *World) Inbox() chan<- ActionEnvelope  { return w.inbox }
func (w *World) Join() chan<- JoinRequest      { return w.join }
func (w *World) Attach() chan<- AttachRequest  { return w.attach }
func (w *World) Leave() chan<- LeaveRequest    { return w.leave }
func (w *World) Resync() chan<- string         { return w.resync }
func (w *World) CurrentTick() uint64           { return w.tick.Load() }
func (w *World) Config() WorldConfig           { return w.cfg }
func (w *World) Facts() *knowledge.Store       { return w.facts }
func (w *World) Trades() *trade.Engine         { return w.trades }
func (w *World) Changes() *delta.Tracker       { return w.changes }
func (w *World) ID() string                    { return w.cfg.ID }

func (w *World) logf(format string, args ...any) {
	if w.logger != nil {
		w.logger.Printf(format, args...)
	}
}

func (w *World) AgentByID(id string) *model.Agent {
	a, _ := w.agents.Get(id)
	return a
}

func (w *World) ItemByID(id string) *model.Item {
	it, _ := w.items.Get(id)
	return it
}

func (w *World) RoomByID(id string) *model.Room {
	r, _ := w.rooms.Get(id)
	return r
}

func (w *World) FactionByID(id string) *model.Faction {
	f, _ := w.factions.Get(id)
	return f
}

func (w *World) ConversationByID(id string) *model.Conversation {
	c, _ := w.conversations.Get(id)
	return c
}

// Entity resolves a reference for the change tracker. Missing entities come
// back as an untyped nil.
func (w *World) Entity(ref kind.Ref) model.Entity {
	switch ref.Kind {
	case kind.Agent:
		if a := w.AgentByID(ref.ID); a != nil {
			return a
		}
	case kind.Room:
		if r := w.RoomByID(ref.ID); r != nil {
			return r
		}
	case kind.Item:
		if it := w.ItemByID(ref.ID); it != nil {
			return it
		}
	case kind.Faction:
		if f := w.FactionByID(ref.ID); f != nil {
			return f
		}
	case kind.Conversation:
		if c := w.ConversationByID(ref.ID); c != nil {
			return c
		}
	case kind.Trade:
		if tr := w.trades.Get(ref.ID); tr != nil {
			return tr
		}
	case kind.Fact:
		if f := w.facts.Get(ref.ID); f != nil {
			return f
		}
	}
	return nil
}

func (w *World) newItem(name, holder string) *model.Item {
	it := &model.Item{ItemID: w.items.NextID(), Name: name, Holder: holder}
	w.items.Put(it.ItemID, it)
	return it
}

// occupants returns the agents in a room, in id order.
func (w *World) occupants(r *model.Room) []*model.Agent {
	if r == nil {
		return nil
	}
	out := make([]*model.Agent, 0, len(r.Occupants))
	for _, id := range r.Occupants.Sorted() {
		if a := w.AgentByID(id); a != nil {
			out = append(out, a)
		}
	}
	return out
}

// recordFor queues entities for each of the given agents.
func (w *World) recordFor(agents []*model.Agent, entities ...model.Entity) {
	for _, a := range agents {
		w.changes.RecordChange(a.AgentID, entities...)
	}
}

func (w *World) addEvent(agentID string, ev protocol.Event) {
	if agentID == "" {
		return
	}
	w.events[agentID] = append(w.events[agentID], ev)
}
