package world

import (
	"hearsay.ai/internal/protocol"
	"hearsay.ai/internal/sim/world/feature/economy/trade"
	"hearsay.ai/internal/sim/world/logic/predicate"
)

// onTradeSettled tells the room a trade happened and writes the trade log.
func (w *World) onTradeSettled(st trade.Settlement) {
	tr := st.Trade
	parties := tr.Parties()
	initiator := w.AgentByID(parties[0])

	if initiator != nil {
		if room := w.RoomByID(initiator.RoomID); room != nil {
			if f, err := w.facts.Record(predicate.Traded(st.Tick, parties[0], parties[1]), st.Tick); err == nil {
				w.facts.DisperseToRoom(f, room)
			} else {
				w.logf("trade %s: record TRADED: %v", tr.TradeID, err)
			}
		}
	}

	for i, id := range parties {
		w.addEvent(id, protocol.Event{
			"t":        st.Tick,
			"type":     "TRADE_SETTLED",
			"trade_id": tr.TradeID,
			"with":     parties[1-i],
		})
	}

	var answers [2][]string
	for i, as := range st.Answers {
		for _, a := range as {
			answers[i] = append(answers[i], a.AnswerID)
		}
	}
	w.tradeLog(TradeLogEntry{
		Tick:      st.Tick,
		TradeID:   tr.TradeID,
		Status:    string(tr.Status),
		Initiator: parties[0],
		Receiver:  parties[1],
		Items:     st.Items,
		Currency:  st.Currency,
		Answers:   answers,
	})
	w.metrics.ObserveTrade(string(tr.Status))
}

func (w *World) onTradeCancelled(c trade.Cancellation) {
	tr := c.Trade
	parties := tr.Parties()
	for i, id := range parties {
		w.addEvent(id, protocol.Event{
			"t":        c.Tick,
			"type":     "TRADE_CANCELLED",
			"trade_id": tr.TradeID,
			"with":     parties[1-i],
			"reason":   c.Reason,
			"refunded": c.Refunded[i],
		})
	}
	w.tradeLog(TradeLogEntry{
		Tick:      c.Tick,
		TradeID:   tr.TradeID,
		Status:    string(tr.Status),
		Initiator: parties[0],
		Receiver:  parties[1],
		Reason:    c.Reason,
	})
	w.metrics.ObserveTrade(string(tr.Status))
}
