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

// The gitops binary renders placements and pushes them to the deployment
// repository.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ConfigButler/deployplane/internal/cli"
	"github.com/ConfigButler/deployplane/internal/config"
	"github.com/ConfigButler/deployplane/internal/dispatcher"
	"github.com/ConfigButler/deployplane/internal/errdefs"
	"github.com/ConfigButler/deployplane/internal/eventstream"
	"github.com/ConfigButler/deployplane/internal/gitops"
	"github.com/ConfigButler/deployplane/internal/lock"
	"github.com/ConfigButler/deployplane/internal/metrics"
	"github.com/ConfigButler/deployplane/internal/service"
	"github.com/ConfigButler/deployplane/internal/template"
)

func main() {
	cmd := &cobra.Command{
		Use:          "deployplane-gitops",
		Short:        "Renders placements and pushes them to the deployment repository",
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
	if cfg.GitOpsRepoURL == "" {
		return errdefs.InvalidArgumentf("GITOPS_REPO_URL is required")
	}

	fileLock, err := lock.Acquire(cfg.StateDir)
	if err != nil {
		log.Error(err, "failed to lock state dir", "dir", cfg.StateDir)
		return err
	}
	defer func() { _ = fileLock.Release() }()

	store, stream, err := cli.Connect(ctx, cfg, log)
	if err != nil {
		log.Error(err, "failed to connect storage")
		return err
	}
	services := service.NewRegistry(store, log)

	auth, err := cfg.GitAuth()
	if err != nil {
		return err
	}
	repo, err := gitops.Open(ctx, cfg.GitOpsRepoURL, cfg.GitOpsBranch, filepath.Join(cfg.StateDir, "repo"), auth, log)
	if err != nil {
		log.Error(err, "failed to prepare deployment repository")
		return err
	}
	renderer := template.NewRenderer(filepath.Join(cfg.StateDir, "templates"), log, template.WithAuth(auth))

	meter, promHandler, err := metrics.Handler("deployplane-gitops")
	if err != nil {
		return err
	}
	m, err := metrics.New(meter)
	if err != nil {
		return err
	}
	repo.OnPushRetry = func() { m.PushRetries.Add(ctx, 1) }

	processor := gitops.NewProcessor(services, renderer, repo, log,
		gitops.WithOrganization(cfg.Organization), gitops.WithMetrics(m))
	disp := dispatcher.NewBatch(stream, eventstream.ConsumerGitOps, processor, log, dispatcher.WithMetrics(m))

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		log.Info("gitops writer started", "repo", cfg.GitOpsRepoURL, "branch", cfg.GitOpsBranch)
		return disp.Run(ctx)
	})
	group.Go(func() error {
		return cli.ServeMetrics(ctx, cfg.MetricsListenAddr, promHandler, log)
	})
	return group.Wait()
}
