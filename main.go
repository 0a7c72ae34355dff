package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"piezo-writer/api"
	"piezo-writer/config"
	"piezo-writer/logger"
	"piezo-writer/piezo"
	"piezo-writer/pipeline"
	"piezo-writer/protocol"
)

func main() {
	os.Exit(run())
}

func run() int {
	// 1. Load Config
	cfg := config.Load()

	logger.SetLevel(logger.ParseLevel(cfg.LogLevel))
	if err := logger.Init(cfg.LogDir); err != nil {
		logger.Error("Logging to stderr only: %v", err)
	}
	defer logger.Close()

	// 2. Configure devices
	reg := pipeline.NewRegistry()
	if err := piezo.Register(reg); err != nil {
		logger.Error("Failed to register device: %v", err)
		return 1
	}

	p, err := config.LoadPipeline(cfg.PipelinePath)
	if err != nil {
		logger.Error("%v", err)
		return 1
	}

	devices, err := reg.Build(p, pipeline.FeedContract)
	if err != nil {
		logger.Error("Pipeline could not be configured: %v", err)
		return 1
	}

	// 3. Initialize loop and API Handler
	feed := pipeline.NewFeed(protocol.AxisCount)
	loop := pipeline.NewLoop(devices, feed, cfg.TickInterval)
	defer loop.Close()

	handler := api.NewHandler(feed, loop)
	loop.OnStateChange(handler.Broadcast)

	// 4. Start HTTP Server
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", handler.ServeWS)
	srv := &http.Server{Addr: cfg.WSAddr, Handler: mux}

	go func() {
		logger.Info("Server listening on %s", cfg.WSAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("ListenAndServe: %v", err)
		}
	}()

	// 5. Run until interrupted
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := loop.Run(ctx); err != nil {
		logger.Error("Control loop failed: %v", err)
		return 1
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown: %v", err)
	}
	return 0
}
