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

package gitops

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ConfigButler/deployplane/internal/eventstream"
	"github.com/ConfigButler/deployplane/internal/model"
	"github.com/ConfigButler/deployplane/internal/persistence/memory"
	"github.com/ConfigButler/deployplane/internal/service"
	"github.com/ConfigButler/deployplane/internal/template"
)

// initTemplateSource seeds a local git repository holding template files on
// the default branch (master).
func initTemplateSource(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	for rel, content := range files {
		full := filepath.Join(dir, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}
	wt, err := repo.Worktree()
	require.NoError(t, err)
	require.NoError(t, wt.AddWithOptions(&git.AddOptions{All: true}))
	_, err = wt.Commit("seed", &git.CommitOptions{
		Author: &object.Signature{Name: "test", Email: "test@example.com", When: time.Now()},
	})
	require.NoError(t, err)
	return dir
}

type processorFixture struct {
	reg    *service.Registry
	stream *eventstream.MemoryStream
	proc   *Processor
	remote string
}

func newProcessorFixture(t *testing.T, templateFiles map[string]string) *processorFixture {
	t.Helper()
	ctx := context.Background()

	stream := eventstream.NewMemoryStream(eventstream.ConsumerReconciler, eventstream.ConsumerGitOps)
	reg := service.NewRegistry(memory.NewStore(stream), logr.Discard())

	remote := initBareRemote(t)
	repo, err := Open(ctx, remote, "main", t.TempDir(), nil, logr.Discard())
	require.NoError(t, err)

	tplSource := initTemplateSource(t, templateFiles)
	renderer := template.NewRenderer(t.TempDir(), logr.Discard())

	f := &processorFixture{
		reg:    reg,
		stream: stream,
		proc:   NewProcessor(reg, renderer, repo, logr.Discard(), WithOrganization("acme")),
		remote: remote,
	}

	_, err = reg.Workspaces.Upsert(ctx, &model.Workspace{ID: "team-a"}, "")
	require.NoError(t, err)
	_, err = reg.Templates.Upsert(ctx, &model.Template{
		ID: "tpl-1", Repository: tplSource, GitRef: "master", Path: "svc",
	}, "")
	require.NoError(t, err)
	_, err = reg.Workloads.Upsert(ctx, &model.Workload{
		ID: "wl-1", Name: "billing", WorkspaceID: "team-a", TemplateID: "tpl-1",
	}, "")
	require.NoError(t, err)
	_, err = reg.Targets.Upsert(ctx, &model.Target{ID: "tgt-1", Labels: []string{"region:eastus2"}}, "")
	require.NoError(t, err)
	_, err = reg.Hosts.Upsert(ctx, &model.Host{ID: "h1", Labels: []string{"region:eastus2"}}, "")
	require.NoError(t, err)
	_, err = reg.Deployments.Upsert(ctx, &model.Deployment{
		ID: "dep-1", Name: "prod", WorkloadID: "wl-1", TargetID: "tgt-1", HostCount: 1,
	}, "")
	require.NoError(t, err)
	return f
}

// drain feeds the pending gitops backlog through the processor as one batch.
func (f *processorFixture) drain(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	events, err := f.stream.Receive(ctx, eventstream.ConsumerGitOps, 256)
	require.NoError(t, err)
	require.NoError(t, f.proc.ProcessBatch(ctx, events))
	for i := range events {
		require.NoError(t, f.stream.Ack(ctx, eventstream.ConsumerGitOps, events[i].ID))
	}
}

func TestProcessBatchWritesPlacement(t *testing.T) {
	ctx := context.Background()
	f := newProcessorFixture(t, map[string]string{
		"svc/deployment.yaml": "org: {{ .organization }}\nname: {{ .workload }}-{{ .deployment }}\nhost: {{ .host }}\nreplicas: {{ .replicas }}\n",
	})

	_, err := f.reg.Configs.Upsert(ctx, &model.Config{
		ID: "c1", OwningModel: "deployment:dep-1", Key: "replicas", Value: "3", ValueType: model.ValueTypeString,
	}, "")
	require.NoError(t, err)
	opID, err := f.reg.Assignments.Upsert(ctx, &model.Assignment{
		ID: model.MakeAssignmentID("dep-1", "h1"), DeploymentID: "dep-1", HostID: "h1",
	}, "")
	require.NoError(t, err)

	f.drain(t)

	got := remoteFile(t, f.remote, "main", "h1/team-a/wl-1/dep-1/deployment.yaml")
	assert.Equal(t, "org: acme\nname: billing-prod\nhost: h1\nreplicas: 3\n", got)

	commit := remoteCommit(t, f.remote, "main")
	assert.True(t, strings.HasPrefix(commit.Message, "reconcile: "))
	assert.Contains(t, commit.Message, opID)
}

func TestProcessBatchRemovesDeletedAssignment(t *testing.T) {
	ctx := context.Background()
	f := newProcessorFixture(t, map[string]string{
		"svc/deployment.yaml": "name: {{ .deployment }}\n",
	})

	assignment := &model.Assignment{
		ID: model.MakeAssignmentID("dep-1", "h1"), DeploymentID: "dep-1", HostID: "h1",
	}
	_, err := f.reg.Assignments.Upsert(ctx, assignment, "")
	require.NoError(t, err)
	f.drain(t)
	require.Equal(t, "name: prod\n", remoteFile(t, f.remote, "main", "h1/team-a/wl-1/dep-1/deployment.yaml"))

	ev, err := model.NewEvent(assignment, nil, model.EventDeleted, model.ModelAssignment, "op-del")
	require.NoError(t, err)
	require.NoError(t, f.proc.ProcessBatch(ctx, []model.Event{*ev}))

	commit := remoteCommit(t, f.remote, "main")
	_, err = commit.File("h1/team-a/wl-1/dep-1/deployment.yaml")
	assert.ErrorIs(t, err, object.ErrFileNotFound)
}

func TestProcessBatchConfigChangeRerendersDeployment(t *testing.T) {
	ctx := context.Background()
	f := newProcessorFixture(t, map[string]string{
		"svc/deployment.yaml": "replicas: {{ .replicas }}\n",
	})

	cfg := &model.Config{
		ID: "c1", OwningModel: "workload:wl-1", Key: "replicas", Value: "1", ValueType: model.ValueTypeString,
	}
	_, err := f.reg.Configs.Upsert(ctx, cfg, "")
	require.NoError(t, err)
	_, err = f.reg.Assignments.Upsert(ctx, &model.Assignment{
		ID: model.MakeAssignmentID("dep-1", "h1"), DeploymentID: "dep-1", HostID: "h1",
	}, "")
	require.NoError(t, err)
	f.drain(t)
	require.Equal(t, "replicas: 1\n", remoteFile(t, f.remote, "main", "h1/team-a/wl-1/dep-1/deployment.yaml"))

	cfg.Value = "5"
	_, err = f.reg.Configs.Upsert(ctx, cfg, "")
	require.NoError(t, err)
	f.drain(t)

	assert.Equal(t, "replicas: 5\n", remoteFile(t, f.remote, "main", "h1/team-a/wl-1/dep-1/deployment.yaml"))
}

func TestProcessBatchDropsUndecodableEventKeepsRest(t *testing.T) {
	ctx := context.Background()
	f := newProcessorFixture(t, map[string]string{
		"svc/deployment.yaml": "name: {{ .deployment }}\n",
	})

	opID, err := f.reg.Assignments.Upsert(ctx, &model.Assignment{
		ID: model.MakeAssignmentID("dep-1", "h1"), DeploymentID: "dep-1", HostID: "h1",
	}, "")
	require.NoError(t, err)

	events, err := f.stream.Receive(ctx, eventstream.ConsumerGitOps, 256)
	require.NoError(t, err)
	events = append(events, model.Event{
		ID:          "poison",
		Timestamp:   time.Now(),
		OperationID: "op-poison",
		EventType:   model.EventCreated,
		ModelType:   model.ModelConfig,
		Current:     []byte("{not json"),
	})

	require.NoError(t, f.proc.ProcessBatch(ctx, events),
		"one poison event must not hold the batch hostage")

	assert.Equal(t, "name: prod\n", remoteFile(t, f.remote, "main", "h1/team-a/wl-1/dep-1/deployment.yaml"))
	commit := remoteCommit(t, f.remote, "main")
	assert.Contains(t, commit.Message, opID)
	assert.NotContains(t, commit.Message, "op-poison")
}

func TestWorkspaceConfigFansOutToItsWorkloads(t *testing.T) {
	ctx := context.Background()
	f := newProcessorFixture(t, map[string]string{
		"svc/deployment.yaml": "region: {{ .region }}\n",
	})

	cfg := &model.Config{
		ID: "c1", OwningModel: "workspace:team-a", Key: "region", Value: "eu", ValueType: model.ValueTypeString,
	}
	_, err := f.reg.Configs.Upsert(ctx, cfg, "")
	require.NoError(t, err)
	_, err = f.reg.Assignments.Upsert(ctx, &model.Assignment{
		ID: model.MakeAssignmentID("dep-1", "h1"), DeploymentID: "dep-1", HostID: "h1",
	}, "")
	require.NoError(t, err)
	f.drain(t)
	require.Equal(t, "region: eu\n", remoteFile(t, f.remote, "main", "h1/team-a/wl-1/dep-1/deployment.yaml"))

	cfg.Value = "us"
	_, err = f.reg.Configs.Upsert(ctx, cfg, "")
	require.NoError(t, err)
	f.drain(t)

	assert.Equal(t, "region: us\n", remoteFile(t, f.remote, "main", "h1/team-a/wl-1/dep-1/deployment.yaml"))
}

func TestProcessBatchSkipsVanishedPlacements(t *testing.T) {
	ctx := context.Background()
	f := newProcessorFixture(t, map[string]string{
		"svc/deployment.yaml": "name: {{ .deployment }}\n",
	})

	// A stale create event for a deployment that no longer exists must not
	// wedge the batch.
	ev, err := model.NewEvent(nil, &model.Assignment{
		ID: model.MakeAssignmentID("gone", "h1"), DeploymentID: "gone", HostID: "h1",
	}, model.EventCreated, model.ModelAssignment, "op-stale")
	require.NoError(t, err)
	assert.NoError(t, f.proc.ProcessBatch(ctx, []model.Event{*ev}))
}

func TestProcessBatchIgnoresUnrelatedModels(t *testing.T) {
	ctx := context.Background()
	f := newProcessorFixture(t, map[string]string{
		"svc/deployment.yaml": "name: {{ .deployment }}\n",
	})

	ev, err := model.NewEvent(nil, &model.Workspace{ID: "team-b"}, model.EventCreated, model.ModelWorkspace, "op")
	require.NoError(t, err)
	require.NoError(t, f.proc.ProcessBatch(ctx, []model.Event{*ev}))

	repo, err := git.PlainOpen(f.remote)
	require.NoError(t, err)
	_, err = repo.Reference(plumbing.NewBranchReferenceName("main"), true)
	assert.Error(t, err, "nothing should have been committed")
}

func TestHostDeletionRemovesWholeHostTree(t *testing.T) {
	ctx := context.Background()
	f := newProcessorFixture(t, map[string]string{
		"svc/deployment.yaml": "name: {{ .deployment }}\n",
	})

	_, err := f.reg.Assignments.Upsert(ctx, &model.Assignment{
		ID: model.MakeAssignmentID("dep-1", "h1"), DeploymentID: "dep-1", HostID: "h1",
	}, "")
	require.NoError(t, err)
	f.drain(t)

	ev, err := model.NewEvent(&model.Host{ID: "h1"}, nil, model.EventDeleted, model.ModelHost, "op-host")
	require.NoError(t, err)
	require.NoError(t, f.proc.ProcessBatch(ctx, []model.Event{*ev}))

	commit := remoteCommit(t, f.remote, "main")
	_, err = commit.File("h1/team-a/wl-1/dep-1/deployment.yaml")
	assert.ErrorIs(t, err, object.ErrFileNotFound)
}
