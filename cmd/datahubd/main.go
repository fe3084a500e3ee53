// Command datahubd runs the Data Hub as a standalone HTTP/WebSocket
// process: config load, dependency wiring, route registration, CORS, and
// graceful shutdown on SIGINT/SIGTERM.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/jtchitty/legatoDataHub/internal/api/middleware"
	"github.com/jtchitty/legatoDataHub/internal/api/rest"
	"github.com/jtchitty/legatoDataHub/internal/api/websocket"
	"github.com/jtchitty/legatoDataHub/internal/config"
	"github.com/jtchitty/legatoDataHub/internal/hub"
	"github.com/jtchitty/legatoDataHub/internal/identity"
	"github.com/jtchitty/legatoDataHub/internal/logging"
	"github.com/jtchitty/legatoDataHub/internal/tracing"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "datahubd: failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logging.New(cfg.LogLevel, cfg.LogFormat)
	log.Info("starting datahubd", "port", cfg.Port, "log_level", cfg.LogLevel)

	shutdownTracing, err := tracing.Init("datahubd", cfg.TracingEndpoint)
	if err != nil {
		log.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}

	resolver := identity.NewAuto()
	h := hub.New(resolver, cfg.DefaultObservationCapacity, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	wsHub := websocket.NewHub(ctx)
	restHandler := rest.NewHandler(h)
	wsHandler := websocket.NewHandler(h, wsHub, log, cfg.AllowedOrigins)

	router := mux.NewRouter()
	router.HandleFunc("/health", healthHandler).Methods("GET")

	metricsHandler := http.Handler(promhttp.Handler())
	if cfg.MetricsAuthEnabled {
		metricsHandler = middleware.BearerAuth(cfg.StaticAPIToken)(metricsHandler)
	}
	router.Handle("/metrics", metricsHandler).Methods("GET")

	apiRouter := router.NewRoute().Subrouter()
	apiRouter.Use(middleware.BearerAuth(cfg.StaticAPIToken))
	// The subscribe route must be registered before the REST catch-all
	// resource routes; mux matches in registration order and the REST
	// {path:.*} GET route would otherwise swallow ".../subscribe".
	websocket.SetupRoutes(apiRouter, wsHandler)
	rest.SetupRoutes(apiRouter, restHandler)

	router.Use(middleware.SecureHeaders)
	router.Use(middleware.RequestID)
	router.Use(middleware.Tracing)
	router.Use(middleware.StructuredLog(log))

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	}).Handler(router)

	timeout := time.Duration(cfg.RequestTimeoutSec) * time.Second
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      corsHandler,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	wsHub.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Duration(cfg.ShutdownTimeoutSec)*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("server forced to shutdown", "error", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Warn("tracing shutdown failed", "error", err)
	}
	log.Info("shutdown complete")
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy","service":"datahubd"}`))
}
