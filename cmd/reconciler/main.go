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

// The reconciler binary consumes model events and keeps assignments in step.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ConfigButler/deployplane/internal/cli"
	"github.com/ConfigButler/deployplane/internal/config"
	"github.com/ConfigButler/deployplane/internal/dispatcher"
	"github.com/ConfigButler/deployplane/internal/eventstream"
	"github.com/ConfigButler/deployplane/internal/metrics"
	"github.com/ConfigButler/deployplane/internal/reconciler"
	"github.com/ConfigButler/deployplane/internal/service"
)

func main() {
	cmd := &cobra.Command{
		Use:          "deployplane-reconciler",
		Short:        "Consumes model events and reconciles assignments",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context())
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.ExecuteContext(ctx); err != nil && !errors.Is(err, context.Canceled) {
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg := config.Load()
	log, err := cli.NewLogger(cfg.LogLevel)
	if err != nil {
		return err
	}

	store, stream, err := cli.Connect(ctx, cfg, log)
	if err != nil {
		log.Error(err, "failed to connect storage")
		return err
	}
	services := service.NewRegistry(store, log)

	meter, promHandler, err := metrics.Handler("deployplane-reconciler")
	if err != nil {
		return err
	}
	m, err := metrics.New(meter)
	if err != nil {
		return err
	}

	rec := reconciler.New(services, log)
	disp := dispatcher.New(stream, eventstream.ConsumerReconciler, rec, log, dispatcher.WithMetrics(m))

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		log.Info("reconciler started")
		return disp.Run(ctx)
	})
	group.Go(func() error {
		return cli.ServeMetrics(ctx, cfg.MetricsListenAddr, promHandler, log)
	})
	return group.Wait()
}
