package indexdb

import (
	"context"
	"encoding/json"

	"hearsay.ai/internal/sim/world"
)

// TradesByAgent returns closed trades the agent took part in, newest first.
func (s *SQLiteIndex) TradesByAgent(ctx context.Context, agentID string, limit int) ([]world.TradeLogEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT raw_json FROM trades WHERE initiator = ? OR receiver = ? ORDER BY tick DESC, trade_id DESC LIMIT ?`,
		agentID, agentID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []world.TradeLogEntry
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var e world.TradeLogEntry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// AuditsByActor returns the actor's audit entries since sinceTick, oldest first.
func (s *SQLiteIndex) AuditsByActor(ctx context.Context, actor string, sinceTick uint64, limit int) ([]world.AuditEntry, error) {
	if limit <= 0 || limit > 1000 {
		limit = 200
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT raw_json FROM audits WHERE actor = ? AND tick >= ? ORDER BY tick, seq LIMIT ?`,
		actor, int64(sinceTick), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []world.AuditEntry
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var e world.AuditEntry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
