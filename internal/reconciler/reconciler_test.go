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

package reconciler

import (
	"context"
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ConfigButler/deployplane/internal/eventstream"
	"github.com/ConfigButler/deployplane/internal/model"
	"github.com/ConfigButler/deployplane/internal/persistence/memory"
	"github.com/ConfigButler/deployplane/internal/service"
)

func hosts(ids ...string) []model.Host {
	out := make([]model.Host, 0, len(ids))
	for _, id := range ids {
		out = append(out, model.Host{ID: id})
	}
	return out
}

func placed(deploymentID string, hostIDs ...string) []model.Assignment {
	out := make([]model.Assignment, 0, len(hostIDs))
	for _, h := range hostIDs {
		out = append(out, model.Assignment{
			ID:           model.MakeAssignmentID(deploymentID, h),
			DeploymentID: deploymentID,
			HostID:       h,
		})
	}
	return out
}

func hostIDs(as []model.Assignment) []string {
	out := make([]string, 0, len(as))
	for _, a := range as {
		out = append(out, a.HostID)
	}
	return out
}

func TestComputeAssignmentChanges(t *testing.T) {
	tests := []struct {
		name       string
		existing   []model.Assignment
		eligible   []model.Host
		desired    int
		wantCreate []string
		wantRemove []string
	}{
		{
			name:       "fresh deployment",
			eligible:   hosts("h1", "h2", "h3"),
			desired:    2,
			wantCreate: []string{"h1", "h2"},
		},
		{
			name:       "scale up keeps existing placements",
			existing:   placed("d1", "h2"),
			eligible:   hosts("h1", "h2", "h3"),
			desired:    2,
			wantCreate: []string{"h1"},
		},
		{
			name:       "scale down removes highest host ids",
			existing:   placed("d1", "h1", "h2", "h3"),
			eligible:   hosts("h1", "h2", "h3"),
			desired:    1,
			wantRemove: []string{"h2", "h3"},
		},
		{
			name:       "ineligible host is replaced",
			existing:   placed("d1", "h9"),
			eligible:   hosts("h1", "h2"),
			desired:    1,
			wantCreate: []string{"h1"},
			wantRemove: []string{"h9"},
		},
		{
			name:     "already converged",
			existing: placed("d1", "h1", "h2"),
			eligible: hosts("h1", "h2", "h3"),
			desired:  2,
		},
		{
			name:       "zero desired removes everything",
			existing:   placed("d1", "h1", "h2"),
			eligible:   hosts("h1", "h2"),
			desired:    0,
			wantRemove: []string{"h1", "h2"},
		},
		{
			name:     "no eligible hosts creates nothing",
			eligible: nil,
			desired:  0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			create, remove := computeAssignmentChanges("d1", tt.existing, tt.eligible, tt.desired)
			assert.ElementsMatch(t, tt.wantCreate, hostIDs(create))
			assert.ElementsMatch(t, tt.wantRemove, hostIDs(remove))
			for _, a := range create {
				assert.Equal(t, model.MakeAssignmentID("d1", a.HostID), a.ID)
				assert.Equal(t, "d1", a.DeploymentID)
			}
		})
	}
}

func TestDesiredCount(t *testing.T) {
	d := &model.Deployment{HostCount: 2}
	assert.Equal(t, 2, desiredCount(d, 5, false))
	assert.Equal(t, 1, desiredCount(d, 1, false), "capped at the eligible pool")
	assert.Equal(t, 0, desiredCount(d, 5, true), "deleted deployments converge on zero")

	all := &model.Deployment{HostCount: model.HostCountAll}
	assert.Equal(t, 5, desiredCount(all, 5, false))
}

type fixture struct {
	reg    *service.Registry
	stream *eventstream.MemoryStream
	rec    *Reconciler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	stream := eventstream.NewMemoryStream(eventstream.ConsumerReconciler, eventstream.ConsumerGitOps)
	reg := service.NewRegistry(memory.NewStore(stream), logr.Discard())
	return &fixture{reg: reg, stream: stream, rec: New(reg, logr.Discard())}
}

// drain pumps the reconciler backlog to quiescence, acking as it goes.
// Reconciler writes enqueue further events, so loop until the stream is empty.
func (f *fixture) drain(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	for {
		events, err := f.stream.Receive(ctx, eventstream.ConsumerReconciler, 64)
		require.NoError(t, err)
		if len(events) == 0 {
			return
		}
		for i := range events {
			require.NoError(t, f.rec.Process(ctx, &events[i]))
			require.NoError(t, f.stream.Ack(ctx, eventstream.ConsumerReconciler, events[i].ID))
		}
	}
}

func (f *fixture) seed(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	_, err := f.reg.Workspaces.Upsert(ctx, &model.Workspace{ID: "team-a"}, "")
	require.NoError(t, err)
	_, err = f.reg.Templates.Upsert(ctx, &model.Template{
		ID: "tpl-1", Repository: "https://example.com/t.git", GitRef: "main", Path: "svc",
	}, "")
	require.NoError(t, err)
	_, err = f.reg.Workloads.Upsert(ctx, &model.Workload{
		ID: "wl-1", Name: "billing", WorkspaceID: "team-a", TemplateID: "tpl-1",
	}, "")
	require.NoError(t, err)
	_, err = f.reg.Targets.Upsert(ctx, &model.Target{ID: "tgt-1", Labels: []string{"region:eastus2"}}, "")
	require.NoError(t, err)
	for _, h := range []model.Host{
		{ID: "h1", Labels: []string{"region:eastus2"}},
		{ID: "h2", Labels: []string{"region:eastus2", "cloud:azure"}},
		{ID: "h3", Labels: []string{"region:westus2"}},
	} {
		h := h
		_, err = f.reg.Hosts.Upsert(ctx, &h, "")
		require.NoError(t, err)
	}
}

func TestReconcilerPlacesDeployment(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t)

	_, err := f.reg.Deployments.Upsert(ctx, &model.Deployment{
		ID: "dep-1", Name: "prod", WorkloadID: "wl-1", TargetID: "tgt-1", HostCount: 1,
	}, "")
	require.NoError(t, err)
	f.drain(t)

	got, err := f.reg.Assignments.ListByDeployment(ctx, "dep-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"h1"}, hostIDs(got), "lowest eligible host id wins")
}

func TestReconcilerAllHostsSentinel(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t)

	_, err := f.reg.Deployments.Upsert(ctx, &model.Deployment{
		ID: "dep-1", Name: "prod", WorkloadID: "wl-1", TargetID: "tgt-1", HostCount: model.HostCountAll,
	}, "")
	require.NoError(t, err)
	f.drain(t)

	got, err := f.reg.Assignments.ListByDeployment(ctx, "dep-1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"h1", "h2"}, hostIDs(got), "h3 is outside the target")
}

func TestReconcilerScalesDown(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t)

	dep := &model.Deployment{ID: "dep-1", Name: "prod", WorkloadID: "wl-1", TargetID: "tgt-1", HostCount: 2}
	_, err := f.reg.Deployments.Upsert(ctx, dep, "")
	require.NoError(t, err)
	f.drain(t)

	dep.HostCount = 0
	_, err = f.reg.Deployments.Upsert(ctx, dep, "")
	require.NoError(t, err)
	f.drain(t)

	got, err := f.reg.Assignments.ListByDeployment(ctx, "dep-1")
	require.NoError(t, err)
	assert.Empty(t, got, "host count zero unassigns everything")
}

func TestReconcilerFollowsHostLabelChange(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t)

	_, err := f.reg.Deployments.Upsert(ctx, &model.Deployment{
		ID: "dep-1", Name: "prod", WorkloadID: "wl-1", TargetID: "tgt-1", HostCount: model.HostCountAll,
	}, "")
	require.NoError(t, err)
	f.drain(t)

	// h1 leaves the region: its placement must move off, and h3 moving in
	// must pick up the slack.
	_, err = f.reg.Hosts.Upsert(ctx, &model.Host{ID: "h1", Labels: []string{"region:westus2"}}, "")
	require.NoError(t, err)
	_, err = f.reg.Hosts.Upsert(ctx, &model.Host{ID: "h3", Labels: []string{"region:eastus2"}}, "")
	require.NoError(t, err)
	f.drain(t)

	got, err := f.reg.Assignments.ListByDeployment(ctx, "dep-1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"h2", "h3"}, hostIDs(got))
}

func TestReconcilerDeploymentDeleteRemovesAssignments(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t)

	_, err := f.reg.Deployments.Upsert(ctx, &model.Deployment{
		ID: "dep-1", Name: "prod", WorkloadID: "wl-1", TargetID: "tgt-1", HostCount: 2,
	}, "")
	require.NoError(t, err)
	f.drain(t)

	_, err = f.reg.Deployments.Delete(ctx, "dep-1", "")
	require.NoError(t, err)
	f.drain(t)

	got, err := f.reg.Assignments.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestReconcilerIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t)

	_, err := f.reg.Deployments.Upsert(ctx, &model.Deployment{
		ID: "dep-1", Name: "prod", WorkloadID: "wl-1", TargetID: "tgt-1", HostCount: 2,
	}, "")
	require.NoError(t, err)

	// Replay the same backlog twice; replays ignore acks on purpose here.
	events, err := f.stream.Receive(ctx, eventstream.ConsumerReconciler, 64)
	require.NoError(t, err)
	for range [2]int{} {
		for i := range events {
			require.NoError(t, f.rec.Process(ctx, &events[i]))
		}
	}
	f.drain(t)

	got, err := f.reg.Assignments.ListByDeployment(ctx, "dep-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"h1", "h2"}, hostIDs(got))
}

func TestReconcilerIgnoresUnrelatedEvents(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	ev, err := model.NewEvent(nil, &model.Workspace{ID: "team-a"}, model.EventCreated, model.ModelWorkspace, "op")
	require.NoError(t, err)
	assert.NoError(t, f.rec.Process(ctx, ev))
}
