package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ops_gateway/internal/config"
	"ops_gateway/internal/httpapi"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Create router with all dependencies
	mux, deps, err := httpapi.NewRouter(cfg)
	if err != nil {
		log.Fatalf("Failed to build router: %v", err)
	}

	// Create HTTP server
	addr := ":" + cfg.HTTPPort
	server := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Ops Gateway listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	// Stop queue workers so pending run records and notifications drain
	if deps.RunWorker != nil {
		if err := deps.RunWorker.Stop(); err != nil {
			log.Printf("Failed to stop run worker: %v", err)
		}
	}
	if deps.NotifyWorker != nil {
		if err := deps.NotifyWorker.Stop(); err != nil {
			log.Printf("Failed to stop notify worker: %v", err)
		}
	}

	// Shutdown request logger to flush remaining buffered logs
	if deps.RequestLogger != nil {
		deps.RequestLogger.Shutdown()
	}

	// Shutdown the audit sink to flush remaining records to S3
	if deps.Audit != nil {
		if err := deps.Audit.Shutdown(ctx); err != nil {
			log.Printf("Failed to shutdown audit sink: %v", err)
		}
	}

	log.Println("Server exited")
}
