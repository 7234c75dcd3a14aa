package world

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"hearsay.ai/internal/protocol"
	"hearsay.ai/internal/sim/world/feature/delta"
)

var errQueueFull = errors.New("outbound queue full")

// flush delivers everything the last operation changed, one DELTA per
// agent. Agents with events but no entity changes still get a DELTA.
func (w *World) flush(nowTick uint64) {
	start := time.Now()
	err := w.changes.Flush(delta.SinkFunc(func(agentID string, p delta.Payload) error {
		return w.deliver(agentID, nowTick, p)
	}))

	var errs []error
	if err != nil {
		errs = append(errs, err)
	}
	ids := make([]string, 0, len(w.events))
	for id := range w.events {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if err := w.deliver(id, nowTick, nil); err != nil {
			errs = append(errs, &delta.DeliveryError{AgentID: id, Err: err})
		}
	}
	if err := errors.Join(errs...); err != nil {
		w.logf("flush tick=%d: %v", nowTick, err)
	}
	w.metrics.ObserveFlush(time.Since(start))
}

func (w *World) deliver(agentID string, nowTick uint64, p delta.Payload) error {
	events := w.events[agentID]
	delete(w.events, agentID)
	full := w.fullSync.Has(agentID)
	w.fullSync.Remove(agentID)

	cl := w.clients[agentID]
	if cl == nil {
		w.metrics.ObserveDelivery("offline")
		return nil
	}
	if p == nil {
		p = delta.Payload{}
	}
	if events == nil {
		events = []protocol.Event{}
	}
	cl.Seq++
	msg := protocol.DeltaMsg{
		Type:            protocol.TypeDelta,
		ProtocolVersion: protocol.Version,
		Tick:            nowTick,
		AgentID:         agentID,
		Seq:             cl.Seq,
		Full:            full,
		Entities:        p,
		Events:          events,
	}
	b, err := protocol.Marshal(cl.Encoding, msg)
	if err != nil {
		w.metrics.ObserveDelivery("error")
		return fmt.Errorf("encode delta: %w", err)
	}
	if !trySend(cl.Out, b) {
		w.metrics.ObserveDelivery("dropped")
		return errQueueFull
	}
	w.metrics.ObserveDelivery("ok")
	return nil
}
