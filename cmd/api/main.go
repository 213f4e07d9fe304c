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

// The api binary serves the model services over gRPC.
package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/ConfigButler/deployplane/internal/api"
	"github.com/ConfigButler/deployplane/internal/cli"
	"github.com/ConfigButler/deployplane/internal/config"
	"github.com/ConfigButler/deployplane/internal/metrics"
	"github.com/ConfigButler/deployplane/internal/service"
)

func main() {
	cmd := &cobra.Command{
		Use:          "deployplane-api",
		Short:        "Serves the deployplane model services over gRPC",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context())
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg := config.Load()
	log, err := cli.NewLogger(cfg.LogLevel)
	if err != nil {
		return err
	}

	store, _, err := cli.Connect(ctx, cfg, log)
	if err != nil {
		log.Error(err, "failed to connect storage")
		return err
	}
	services := service.NewRegistry(store, log)

	_, promHandler, err := metrics.Handler("deployplane-api")
	if err != nil {
		return err
	}

	listener, err := net.Listen("tcp", cfg.APIListenAddr)
	if err != nil {
		log.Error(err, "failed to listen", "addr", cfg.APIListenAddr)
		return err
	}

	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(api.ServerAuthInterceptor(cfg.APIToken)))
	api.NewServer(services).Register(grpcServer)

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		log.Info("serving gRPC", "addr", cfg.APIListenAddr)
		return grpcServer.Serve(listener)
	})
	group.Go(func() error {
		return cli.ServeMetrics(ctx, cfg.MetricsListenAddr, promHandler, log)
	})
	group.Go(func() error {
		<-ctx.Done()
		grpcServer.GracefulStop()
		return nil
	})
	return group.Wait()
}
