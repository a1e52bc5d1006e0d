package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"swarmhub.gg/internal/bridge"
	"swarmhub.gg/internal/config"
	"swarmhub.gg/internal/eventlog"
	"swarmhub.gg/internal/hub"
	"swarmhub.gg/internal/registry"
	"swarmhub.gg/internal/transport/rest"
	"swarmhub.gg/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", "", "http listen address (overrides config)")
		configPath = flag.String("config", "./configs/hub.yaml", "config path")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	cfg, err := config.LoadOrDefaults(*configPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if strings.TrimSpace(*addr) != "" {
		cfg.Listen = *addr
	}

	events := eventlog.New(cfg.MaxEvents)
	agents := registry.New()
	channel := bridge.NewHTTPChannel(cfg.BackendURL, cfg.BackendAPIKey,
		time.Duration(cfg.CommandTimeoutMS)*time.Millisecond)
	world := bridge.New(channel, logger)
	h := hub.New(hub.Config{AnchorPlayer: cfg.AnchorPlayer}, events, agents, world, logger)

	ctx, cancel := signalContext()
	defer cancel()

	// The in-world chat capture feeds PollChat; safe to reinstall at
	// every startup.
	world.InstallChatHook(ctx)

	go h.RunIngest(ctx, time.Duration(cfg.PollIntervalMS)*time.Millisecond)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")

		m := h.Metrics().Snapshot()

		// Minimal Prometheus exposition format.
		fmt.Fprintf(rw, "# HELP swarmhub_events_stored Events currently in the ring.\n")
		fmt.Fprintf(rw, "# TYPE swarmhub_events_stored gauge\n")
		fmt.Fprintf(rw, "swarmhub_events_stored %d\n", events.Len())

		fmt.Fprintf(rw, "# HELP swarmhub_agents_connected Currently connected agents.\n")
		fmt.Fprintf(rw, "# TYPE swarmhub_agents_connected gauge\n")
		fmt.Fprintf(rw, "swarmhub_agents_connected %d\n", len(agents.ConnectedAgents()))

		fmt.Fprintf(rw, "# HELP swarmhub_push_sessions Open push sessions.\n")
		fmt.Fprintf(rw, "# TYPE swarmhub_push_sessions gauge\n")
		fmt.Fprintf(rw, "swarmhub_push_sessions %d\n", m.PushSessions)

		fmt.Fprintf(rw, "# HELP swarmhub_ingest_cycles_total World poll cycles run.\n")
		fmt.Fprintf(rw, "# TYPE swarmhub_ingest_cycles_total counter\n")
		fmt.Fprintf(rw, "swarmhub_ingest_cycles_total %d\n", m.IngestCycles)

		fmt.Fprintf(rw, "# HELP swarmhub_chat_ingested_total External chat lines ingested.\n")
		fmt.Fprintf(rw, "# TYPE swarmhub_chat_ingested_total counter\n")
		fmt.Fprintf(rw, "swarmhub_chat_ingested_total %d\n", m.ChatIngested)

		fmt.Fprintf(rw, "# HELP swarmhub_echo_suppressed_total Agent chat echoes filtered out.\n")
		fmt.Fprintf(rw, "# TYPE swarmhub_echo_suppressed_total counter\n")
		fmt.Fprintf(rw, "swarmhub_echo_suppressed_total %d\n", m.EchoSuppressed)

		fmt.Fprintf(rw, "# HELP swarmhub_actions_dispatched_total Agent actions dispatched to the world.\n")
		fmt.Fprintf(rw, "# TYPE swarmhub_actions_dispatched_total counter\n")
		fmt.Fprintf(rw, "swarmhub_actions_dispatched_total %d\n", m.ActionsDispatched)
	})

	if envBool("SWARM_ENABLE_PPROF_HTTP", false) {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	} else {
		logger.Printf("pprof endpoints disabled (SWARM_ENABLE_PPROF_HTTP=false)")
	}

	mux.HandleFunc("GET /ws/{agent_id}", ws.NewServer(h, cfg.APIKey, logger).Handler())
	mux.Handle("/", rest.NewServer(h, cfg.APIKey, logger).Handler())

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s (backend %s)", cfg.Listen, cfg.BackendURL)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
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

func envBool(name string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(name))) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return def
	}
}
