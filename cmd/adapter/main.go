package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mosim.ai/internal/adapter"
	"mosim.ai/internal/cosim"
	"mosim.ai/internal/mmu/builtin"
	"mosim.ai/internal/protocol"
	"mosim.ai/internal/transport/rpc"
)

func main() {
	var (
		addr            = flag.String("addr", ":8090", "http listen address")
		sessionTimeout  = flag.Duration("session_timeout", 10*time.Minute, "dispose sessions idle for longer than this")
		cleanupInterval = flag.Duration("cleanup_interval", 30*time.Second, "idle session check interval")
		hostCoSim       = flag.Bool("cosim", true, "also offer the bundled MMUs as one co-simulation MMU")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[adapter] ", log.LstdFlags|log.Lmicroseconds)

	catalog := builtin.Catalog()
	if *hostCoSim {
		catalog.MustRegister(cosim.Factory(builtin.Catalog(), nil))
	}
	host := adapter.NewHost(adapter.Config{
		SessionTimeout:  *sessionTimeout,
		CleanupInterval: *cleanupInterval,
	}, catalog, logger)
	host.Start()
	defer host.Close()

	srv := rpc.NewServer(logger)
	adapter.RegisterRPC(srv, host)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc(protocol.AdapterPath, srv.Handler())

	hs := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		srv.Close(2 * time.Second)
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = hs.Shutdown(ctx2)
	}()

	logger.Printf("serving %d mmus on %s%s", len(host.GetLoadableMMUs(ctx)), *addr, protocol.AdapterPath)
	if err := hs.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
}
