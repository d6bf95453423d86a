// Package app wires the process together: configuration, logging, storage,
// the session registry, and the HTTP server.
package app

import (
	"context"
	"fmt"
	"log"
	nethttp "net/http"
	"os"
	"time"

	"github.com/caarlos0/env/v11"

	server "nova-clash/server"
	servernet "nova-clash/server/internal/net"
	"nova-clash/server/logging"
	loggingSinks "nova-clash/server/logging/sinks"
	"nova-clash/server/persist"
	persistsqlite "nova-clash/server/persist/sqlite"
)

// Config is populated from the environment.
type Config struct {
	Addr        string   `env:"NOVA_CLASH_ADDR" envDefault:":8080"`
	DBPath      string   `env:"NOVA_CLASH_DB_PATH" envDefault:"nova-clash.sqlite"`
	LogSinks    []string `env:"NOVA_CLASH_LOG_SINKS" envDefault:"console"`
	LogJSONPath string   `env:"NOVA_CLASH_LOG_JSON_PATH"`
}

// Run starts the server and blocks until the listener fails or ctx ends.
func Run(ctx context.Context) error {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}

	logger := log.Default()

	logConfig := logging.DefaultConfig()
	logConfig.EnabledSinks = cfg.LogSinks
	sinks := make([]logging.NamedSink, 0, 2)
	if logConfig.HasSink("console") {
		sinks = append(sinks, logging.NamedSink{Name: "console", Sink: loggingSinks.NewConsole(os.Stdout)})
	}
	if logConfig.HasSink("json") && cfg.LogJSONPath != "" {
		file, err := os.OpenFile(cfg.LogJSONPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			logger.Printf("json log sink disabled: %v", err)
		} else {
			sinks = append(sinks, logging.NamedSink{Name: "json", Sink: loggingSinks.NewJSON(file, logConfig.JSON.FlushInterval)})
		}
	}
	router := logging.NewRouter(logging.SystemClock{}, logConfig, sinks)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := router.Close(closeCtx); err != nil {
			logger.Printf("failed to close logging router: %v", err)
		}
	}()

	// Persistence is optional: a broken database never keeps the real-time
	// engine from serving.
	var store persist.Store
	if cfg.DBPath != "" {
		opened, err := persistsqlite.Open(cfg.DBPath)
		if err != nil {
			logger.Printf("persistence disabled: %v", err)
		} else {
			store = opened
			defer opened.Close()
		}
	}
	var journal *persist.Journal
	if store != nil {
		journal = persist.NewJournal(store, logger)
		defer journal.Close()
	}

	registry := server.NewRegistry(router, func(info server.SessionInfo) {
		if journal == nil {
			return
		}
		journal.RecordSession(persist.SessionRecord{
			ID:          info.ID,
			HostName:    info.HostName,
			Status:      info.Status,
			PlayerCount: info.PlayerCount,
			MaxPlayers:  info.MaxPlayers,
			GameMode:    info.GameMode,
			Settings:    info.Settings,
			CreatedAt:   time.UnixMilli(info.CreatedAt),
		})
	})
	defer registry.Close()

	handler := servernet.NewHTTPHandler(registry, servernet.HTTPHandlerConfig{
		Store:     store,
		Journal:   journal,
		Logger:    logger,
		Publisher: router,
	})

	srv := &nethttp.Server{Addr: cfg.Addr, Handler: handler}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	logger.Printf("server listening on %s", cfg.Addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		if err != nil && err != nethttp.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	}
}
