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
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"mosim.ai/internal/adapter"
	"mosim.ai/internal/config"
	"mosim.ai/internal/cosim"
	persistlog "mosim.ai/internal/persistence/log"
	"mosim.ai/internal/protocol"
	"mosim.ai/internal/scene"
	"mosim.ai/internal/transport/observer"
	"mosim.ai/internal/transport/rpc"
)

func main() {
	var (
		addr        = flag.String("addr", ":8080", "http listen address")
		configPath  = flag.String("config", "./configs/cosim.yaml", "cosim.yaml path (empty for defaults)")
		dataDir     = flag.String("data", "", "runtime data directory (overrides storage.data_dir)")
		enablePprof = flag.Bool("pprof", false, "serve /debug/pprof/")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if strings.TrimSpace(*dataDir) != "" {
		cfg.Storage.DataDir = *dataDir
	}
	runID := uuid.NewString()
	runDir := filepath.Join(cfg.Storage.DataDir, "avatars", cfg.AvatarID)
	_ = os.MkdirAll(runDir, 0o755)

	ctx, cancel := signalContext()
	defer cancel()

	p, err := buildPipeline(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("co-simulation: %v", err)
	}
	defer p.close()
	rt := p.runtime

	// Optional read-model index; the JSONL logs stay authoritative.
	idx, err := openRuntimeIndex(runDir, runID, cfg.Storage.DisableDB)
	if err != nil {
		logger.Fatalf("open index backend: %v", err)
	}
	if idx != nil {
		defer idx.Close()
		if err := idx.UpsertMMUs(p.loadable); err != nil {
			logger.Printf("index backend: upsert mmus: %v", err)
		}
		rt.SetIndexer(idx)
	}

	frameLog := persistlog.NewFrameLogger(runDir)
	eventLog := persistlog.NewEventLogger(runDir)
	defer frameLog.Close()
	defer eventLog.Close()
	obs := observer.NewServer(rt, cfg.TickRateHz, logger)
	rt.SetFrameLogger(multiFrameLogger{frameLog, obs})
	rt.SetEventLogger(eventLog)

	ctl := &control{rt: rt, idx: idx, recordDir: filepath.Join(runDir, "records"), log: logger}

	sceneRPC := rpc.NewServer(logger)
	scene.RegisterRPC(sceneRPC, p.store)
	adapterRPC := rpc.NewServer(logger)
	adapter.RegisterRPC(adapterRPC, p.host)
	controlRPC := rpc.NewServer(logger)
	ctl.register(controlRPC)

	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		if err := rt.Run(ctx); err != nil && err != context.Canceled {
			logger.Printf("runtime stopped: %v", err)
		}
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", metricsHandler(rt, idx, obs, frameLog, eventLog))
	mux.HandleFunc("/admin/v1/state", func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		rw.Header().Set("Content-Type", "application/json")
		resp := struct {
			RunID      string             `json:"run_id"`
			SessionID  string             `json:"session_id"`
			Frame      uint64             `json:"frame"`
			Tasks      []cosim.Task       `json:"tasks"`
			Priorities map[string]float64 `json:"priorities"`
			Adapters   []string           `json:"adapters"`
			Recording  bool               `json:"recording"`
		}{
			RunID:      runID,
			SessionID:  p.access.SessionID(),
			Frame:      rt.CurrentFrame(),
			Tasks:      p.co.Tasks(),
			Priorities: p.co.GetPriorities(),
			Adapters:   p.access.Addresses(),
			Recording:  p.co.IsRecording(),
		}
		_ = json.NewEncoder(rw).Encode(resp)
	})
	mux.HandleFunc("/admin/v1/observer/bootstrap", obs.BootstrapHandler())
	mux.HandleFunc("/admin/v1/observer/ws", obs.WSHandler())
	if *enablePprof {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}
	mux.HandleFunc(protocol.ScenePath, sceneRPC.Handler())
	mux.HandleFunc(protocol.AdapterPath, adapterRPC.Handler())
	mux.HandleFunc(protocol.CoSimPath, controlRPC.Handler())

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		for _, s := range []*rpc.Server{controlRPC, sceneRPC, adapterRPC} {
			s.Close(2 * time.Second)
		}
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("run %s: avatar=%s listening on %s", runID, cfg.AvatarID, *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
	<-runDone

	// Final checkpoints and record, so a later run can pick up where this one stopped.
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if cps := p.access.CreateCheckpoint(shutdownCtx, nil); len(cps) > 0 {
		idx.RecordCheckpoints(rt.CurrentFrame(), cps)
	}
	if cfg.CoSim.Record {
		if _, _, err := ctl.saveRecord(); err != nil {
			logger.Printf("save record: %v", err)
		}
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
