package world

import (
	"context"
	"time"
)

func (w *World) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(w.cfg.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var pendingActions []ActionEnvelope
	var pendingJoins []JoinRequest
	var pendingLeaves []LeaveRequest
	var pendingResyncs []string

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			return nil
		case req := <-w.join:
			pendingJoins = append(pendingJoins, req)
		case req := <-w.attach:
			w.handleAttach(req)
		case req := <-w.leave:
			pendingLeaves = append(pendingLeaves, req)
		case id := <-w.resync:
			pendingResyncs = append(pendingResyncs, id)
		case env := <-w.inbox:
			pendingActions = append(pendingActions, env)
		case <-ticker.C:
			w.step(pendingJoins, pendingLeaves, pendingResyncs, pendingActions)
			pendingJoins = pendingJoins[:0]
			pendingLeaves = pendingLeaves[:0]
			pendingResyncs = pendingResyncs[:0]
			pendingActions = pendingActions[:0]
		}
	}
}

func (w *World) Stop() { close(w.stop) }

// step advances one tick. Joins land first, then actions in arrival order,
// then disconnects. Every action is flushed before the next one runs, so
// each agent sees one DELTA per action that touched it.
func (w *World) step(joins []JoinRequest, leaves []LeaveRequest, resyncs []string, actions []ActionEnvelope) {
	nowTick := w.tick.Add(1)

	for _, req := range joins {
		w.handleJoin(req, nowTick)
	}
	if len(joins) > 0 {
		w.flush(nowTick)
	}

	for _, env := range actions {
		w.applyAct(env, nowTick)
		w.flush(nowTick)
	}

	for _, id := range resyncs {
		w.queueFullView(id)
	}
	for _, req := range leaves {
		w.handleLeave(req, nowTick)
	}
	w.flush(nowTick)

	w.publishStats(nowTick)
}

// StepOnce advances the world by a single tick outside Run. Tests drive the
// world this way.
func (w *World) StepOnce(joins []JoinRequest, leaves []string, actions []ActionEnvelope) uint64 {
	reqs := make([]LeaveRequest, 0, len(leaves))
	for _, id := range leaves {
		reqs = append(reqs, LeaveRequest{AgentID: id})
	}
	w.step(joins, reqs, nil, actions)
	return w.tick.Load()
}

// trySend queues b without blocking. A full queue rejects the message.
func trySend(ch chan []byte, b []byte) bool {
	select {
	case ch <- b:
		return true
	default:
		return false
	}
}
