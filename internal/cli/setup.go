/*
SPDX-License-Identifier: Apache-2.0

Copyright 2025 ConfigButler

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package cli holds the pieces shared by the deployplane binaries: logger
// construction, storage wiring and the metrics endpoint.
package cli

import (
	"context"
	"net/http"
	"time"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ConfigButler/deployplane/internal/config"
	"github.com/ConfigButler/deployplane/internal/errdefs"
	"github.com/ConfigButler/deployplane/internal/eventstream"
	"github.com/ConfigButler/deployplane/internal/persistence"
	"github.com/ConfigButler/deployplane/internal/persistence/memory"
	"github.com/ConfigButler/deployplane/internal/persistence/postgres"
)

// NewLogger builds the process logger. Level "debug" enables the V(1) lines.
func NewLogger(level string) (logr.Logger, error) {
	zapLevel := zapcore.InfoLevel
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		return logr.Logger{}, errdefs.InvalidArgumentf("unknown log level %q", level)
	}

	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(zapLevel)
	zl, err := zapCfg.Build()
	if err != nil {
		return logr.Logger{}, err
	}
	return zapr.NewLogger(zl), nil
}

// Connect wires the store and the event stream. With a DATABASE_URL both are
// PostgreSQL-backed and share transactions; without one the process runs on
// in-memory state, which is only useful for local experiments.
func Connect(ctx context.Context, cfg *config.Config, log logr.Logger) (*persistence.Store, eventstream.Stream, error) {
	if cfg.DatabaseURL == "" {
		log.Info("no DATABASE_URL set, using in-memory state")
		stream := eventstream.NewMemoryStream(eventstream.ConsumerReconciler, eventstream.ConsumerGitOps)
		return memory.NewStore(stream), stream, nil
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, errdefs.Unavailablef("failed to create connection pool: %v", err)
	}
	if err := postgres.Migrate(ctx, pool); err != nil {
		return nil, nil, err
	}
	stream := eventstream.NewPostgresStream(pool, eventstream.ConsumerReconciler, eventstream.ConsumerGitOps)
	return postgres.NewStore(pool, stream), stream, nil
}

// ServeMetrics serves handler on /metrics plus trivial /healthz and /readyz
// probes until ctx is done.
func ServeMetrics(ctx context.Context, addr string, handler http.Handler, log logr.Logger) error {
	ok := func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	mux.HandleFunc("/healthz", ok)
	mux.HandleFunc("/readyz", ok)

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("serving metrics", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
