package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"hearsay.ai/internal/metrics"
	persistlog "hearsay.ai/internal/persistence/log"
	"hearsay.ai/internal/sim/tuning"
	"hearsay.ai/internal/sim/world"
	"hearsay.ai/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		worldID    = flag.String("world", "", "world id (default: tuning world_id)")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (empty: built-in defaults)")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite audit/trade index")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	tune := tuning.Defaults()
	if tp := strings.TrimSpace(*tuningPath); tp != "" {
		var err error
		tune, err = tuning.Load(tp)
		if err != nil {
			logger.Fatalf("load tuning: %v", err)
		}
	}
	if *worldID != "" {
		tune.WorldID = *worldID
	}

	worldDir := filepath.Join(*dataDir, "worlds", tune.WorldID)
	_ = os.MkdirAll(worldDir, 0o755)

	idx, err := openRuntimeIndex(worldDir, *disableDB)
	if err != nil {
		logger.Fatalf("open index backend: %v", err)
	}
	if idx != nil {
		defer idx.Close()
		if err := idx.UpsertTuning(tune); err != nil {
			logger.Printf("index backend: upsert tuning: %v", err)
		}
	}

	w, err := world.New(world.ConfigFromTuning(tune))
	if err != nil {
		logger.Fatalf("world: %v", err)
	}
	w.SetLogger(log.New(os.Stdout, "[world] ", log.LstdFlags|log.Lmicroseconds))

	m := metrics.New()
	w.SetMetrics(m)
	registerIndexMetrics(m, idx)

	auditLog := persistlog.NewAuditLogger(worldDir)
	tradeLog := persistlog.NewTradeLogger(worldDir)
	defer auditLog.Close()
	defer tradeLog.Close()
	w.SetAuditLogger(multiAuditLogger{a: auditLog, b: indexAudit(idx)})
	w.SetTradeLogger(multiTradeLogger{a: tradeLog, b: indexTrade(idx)})

	ctx, cancel := signalContext()
	defer cancel()

	go func() {
		if err := w.Run(ctx); err != nil && err != context.Canceled {
			logger.Printf("world stopped: %v", err)
		}
	}()

	wsSrv := ws.NewServer(w, logger)
	wsSrv.Metrics = m
	if tune.MaxQueue > 0 {
		wsSrv.MaxQueue = tune.MaxQueue
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	r.Handle("/metrics", m.Handler())
	r.Get("/v1/ws", wsSrv.Handler())
	r.Get("/v1/trades", tradesHandler(idx))
	r.Get("/v1/audit", auditHandler(idx))

	if envBool("HS_ENABLE_ADMIN_HTTP", defaultEnableAdminHTTP()) {
		r.Get("/admin/v1/state", adminStateHandler(w))
	} else {
		logger.Printf("admin endpoints disabled (HS_ENABLE_ADMIN_HTTP=false)")
	}
	if envBool("HS_ENABLE_PPROF_HTTP", false) {
		r.HandleFunc("/debug/pprof/", pprof.Index)
		r.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		r.HandleFunc("/debug/pprof/profile", pprof.Profile)
		r.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		r.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}

	srv := &http.Server{
		Addr:              *addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("world %s listening on %s", w.ID(), *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
}

// adminStateHandler serves the snapshot the world publishes after each step.
func adminStateHandler(w *world.World) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		resp := struct {
			WorldID string `json:"world_id"`
			world.WorldStats
		}{WorldID: w.ID(), WorldStats: w.Stats()}
		writeJSON(rw, http.StatusOK, resp)
	}
}

func tradesHandler(idx runtimeIndex) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if idx == nil {
			http.Error(rw, "index disabled", http.StatusServiceUnavailable)
			return
		}
		agent := strings.TrimSpace(r.URL.Query().Get("agent"))
		if agent == "" {
			http.Error(rw, "missing agent", http.StatusBadRequest)
			return
		}
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		out, err := idx.TradesByAgent(r.Context(), agent, limit)
		if err != nil {
			http.Error(rw, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(rw, http.StatusOK, out)
	}
}

func auditHandler(idx runtimeIndex) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if idx == nil {
			http.Error(rw, "index disabled", http.StatusServiceUnavailable)
			return
		}
		actor := strings.TrimSpace(r.URL.Query().Get("actor"))
		if actor == "" {
			http.Error(rw, "missing actor", http.StatusBadRequest)
			return
		}
		since, _ := strconv.ParseUint(r.URL.Query().Get("since"), 10, 64)
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		out, err := idx.AuditsByActor(r.Context(), actor, since, limit)
		if err != nil {
			http.Error(rw, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(rw, http.StatusOK, out)
	}
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(v)
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func envBool(key string, def bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch v {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return def
	}
}

func defaultEnableAdminHTTP() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DEPLOY_ENV"))) {
	case "staging", "production":
		return false
	default:
		return true
	}
}

type multiAuditLogger struct {
	a world.AuditLogger
	b world.AuditLogger
}

func (m multiAuditLogger) WriteAudit(entry world.AuditEntry) error {
	if m.a != nil {
		_ = m.a.WriteAudit(entry)
	}
	if m.b != nil {
		_ = m.b.WriteAudit(entry)
	}
	return nil
}

type multiTradeLogger struct {
	a world.TradeLogger
	b world.TradeLogger
}

func (m multiTradeLogger) WriteTrade(entry world.TradeLogEntry) error {
	if m.a != nil {
		_ = m.a.WriteTrade(entry)
	}
	if m.b != nil {
		_ = m.b.WriteTrade(entry)
	}
	return nil
}
