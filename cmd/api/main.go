package main

import (
	"context"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/net/netutil"

	httpadapter "github.com/betomay/papertoplan/internal/adapters/http"
	"github.com/betomay/papertoplan/internal/bootstrap"
	"github.com/betomay/papertoplan/internal/config"
	"github.com/betomay/papertoplan/internal/observability/logging"
	"github.com/betomay/papertoplan/internal/observability/metrics"
)

const serviceName = "api"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	logging.Setup(serviceName, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	httpMetrics := metrics.NewHTTPServerMetrics(serviceName)
	hub := httpadapter.NewEventHub()

	// Worker status events arrive over the queue and fan out to this
	// process's live streams.
	if err := app.Queue.SubscribeStatusEvents(ctx, hub.Broadcast); err != nil {
		log.Fatalf("subscribe status events: %v", err)
	}

	router := httpadapter.NewRouter(httpadapter.RouterOptions{
		Service:          serviceName,
		IngestUC:         app.IngestUC,
		RegenerateUC:     app.RegenerateUC,
		Records:          app.Records,
		Patients:         app.Patients,
		Derived:          app.Derived,
		Sessions:         app.Sessions,
		Settings:         app.Settings,
		Pinger:           app.Ollama,
		Hub:              hub,
		Metrics:          httpMetrics,
		UploadsPerMinute: cfg.UploadsPerMinute,
	})

	mux := http.NewServeMux()
	mux.Handle("/", router.Handler())
	mux.Handle("/metrics", httpMetrics.Handler())

	server := &http.Server{
		Handler:     mux,
		ReadTimeout: 30 * time.Second,
		// SSE streams stay open indefinitely; rely on client disconnects
		// instead of a write deadline.
		IdleTimeout: 120 * time.Second,
	}

	listener, err := net.Listen("tcp", ":"+cfg.APIPort)
	if err != nil {
		log.Fatalf("listen error: %v", err)
	}
	if cfg.MaxConnections > 0 {
		listener = netutil.LimitListener(listener, cfg.MaxConnections)
	}

	go func() {
		slog.Info("api listening", "port", cfg.APIPort)
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Fatalf("api server error: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("api shutdown", "error", err)
	}
}
