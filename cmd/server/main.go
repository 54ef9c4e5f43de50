package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"halitebot.ai/internal/agent"
	"halitebot.ai/internal/persistence/indexdb"
	"halitebot.ai/internal/protocol"
	"halitebot.ai/internal/transport/ws"
	"halitebot.ai/internal/tuning"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		configDir  = flag.String("configs", "./configs", "config directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		dataDir    = flag.String("data", "./data", "runtime data directory (turn logs, index)")
		policy     = flag.String("policy", "planner", "policy: planner|random")
		seed       = flag.Int64("seed", 1337, "seed for the random policy")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite game index")
		noTurnLog  = flag.Bool("disable_turn_log", false, "disable the compressed turn log")
		noSchema   = flag.Bool("disable_schema", false, "skip json schema validation of engine messages")
		pprofOn    = flag.Bool("pprof", false, "serve /debug/pprof")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load tuning: %v", err)
		}
		logger.Printf("tuning not found (%s); using defaults", tp)
		tune = tuning.Defaults()
	}
	if tune.ProtocolVersion != protocol.Version {
		logger.Fatalf("tuning protocol_version %q, server speaks %q", tune.ProtocolVersion, protocol.Version)
	}

	newPolicy, err := policyFactory(*policy, *seed)
	if err != nil {
		logger.Fatalf("%v", err)
	}

	opts := ws.Options{
		Tuning:    tune,
		NewPolicy: newPolicy,
	}
	if !*noTurnLog {
		opts.DataDir = *dataDir
	}
	if !*noSchema {
		v, err := protocol.NewValidator()
		if err != nil {
			logger.Fatalf("schemas: %v", err)
		}
		opts.Validator = v
	}
	if !*disableDB {
		idx, err := indexdb.OpenSQLite(filepath.Join(*dataDir, "index", "games.sqlite"))
		if err != nil {
			logger.Fatalf("open index: %v", err)
		}
		defer idx.Close()
		opts.Index = idx
	}

	ctx, cancel := signalContext()
	defer cancel()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		st := opts.Index.Stats()

		// Minimal Prometheus exposition format.
		fmt.Fprintf(rw, "# HELP halitebot_index_queue_depth Pending index writes.\n")
		fmt.Fprintf(rw, "# TYPE halitebot_index_queue_depth gauge\n")
		fmt.Fprintf(rw, "halitebot_index_queue_depth %d\n", st.QueueDepth)

		fmt.Fprintf(rw, "# HELP halitebot_index_dropped_turns_total Turn rows dropped because the index fell behind.\n")
		fmt.Fprintf(rw, "# TYPE halitebot_index_dropped_turns_total counter\n")
		fmt.Fprintf(rw, "halitebot_index_dropped_turns_total %d\n", st.DropTurnTotal)
	})
	if *pprofOn {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}
	mux.HandleFunc("/v1/ws", ws.NewServer(opts, logger).Handler())

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s (policy=%s)", *addr, *policy)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
}

// policyFactory maps the -policy flag to a per-game constructor. Every game
// of the random policy gets its own generator, seeded from seed in order.
func policyFactory(name string, seed int64) (ws.PolicyFactory, error) {
	switch name {
	case "planner":
		return ws.PlannerPolicy, nil
	case "random":
		var mu sync.Mutex
		seeds := rand.New(rand.NewSource(seed))
		return func(cfg agent.Config, _ *log.Logger) agent.Policy {
			mu.Lock()
			s := seeds.Int63()
			mu.Unlock()
			return agent.NewRandomWalker(rand.New(rand.NewSource(s)), cfg.SpawnCost)
		}, nil
	default:
		return nil, fmt.Errorf("unknown policy %q (want planner or random)", name)
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
