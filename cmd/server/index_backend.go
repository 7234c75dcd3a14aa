package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"hearsay.ai/internal/metrics"
	"hearsay.ai/internal/persistence/indexdb"
	"hearsay.ai/internal/sim/tuning"
	"hearsay.ai/internal/sim/world"
)

type runtimeIndex interface {
	world.AuditLogger
	world.TradeLogger
	Close() error
	UpsertTuning(tune tuning.Tuning) error
	TradesByAgent(ctx context.Context, agentID string, limit int) ([]world.TradeLogEntry, error)
	AuditsByActor(ctx context.Context, actor string, sinceTick uint64, limit int) ([]world.AuditEntry, error)
	Stats() indexdb.Stats
}

func openRuntimeIndex(worldDir string, disableDB bool) (runtimeIndex, error) {
	if disableDB {
		return nil, nil
	}

	backend := strings.ToLower(strings.TrimSpace(os.Getenv("HS_INDEX_BACKEND")))
	if backend == "" {
		backend = "sqlite"
	}

	switch backend {
	case "none", "off", "disabled":
		return nil, nil
	case "sqlite":
		dbPath := filepath.Join(worldDir, "index", "world.sqlite")
		return indexdb.OpenSQLite(dbPath)
	default:
		return nil, fmt.Errorf("unsupported HS_INDEX_BACKEND: %s", backend)
	}
}

// indexAudit and indexTrade keep a nil index from becoming a non-nil
// interface holding a nil pointer.
func indexAudit(idx runtimeIndex) world.AuditLogger {
	if idx == nil {
		return nil
	}
	return idx
}

func indexTrade(idx runtimeIndex) world.TradeLogger {
	if idx == nil {
		return nil
	}
	return idx
}

func registerIndexMetrics(m *metrics.Metrics, idx runtimeIndex) {
	if idx == nil || m == nil {
		return
	}
	m.Registry().MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "hearsay",
			Name:      "index_queue_depth",
			Help:      "Entries waiting for the sqlite index writer.",
		}, func() float64 { return float64(idx.Stats().QueueDepth) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "hearsay",
			Name:      "index_dropped_total",
			Help:      "Audit and trade entries the index dropped because its queue was full.",
		}, func() float64 {
			s := idx.Stats()
			return float64(s.DropAuditTotal + s.DropTradeTotal)
		}),
	)
}
