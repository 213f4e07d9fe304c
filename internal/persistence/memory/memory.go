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

// Package memory backs the persistence contracts with in-process maps. It
// exists for tests and for running the whole control plane as a single
// process without a database.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/ConfigButler/deployplane/internal/errdefs"
	"github.com/ConfigButler/deployplane/internal/eventstream"
	"github.com/ConfigButler/deployplane/internal/model"
	"github.com/ConfigButler/deployplane/internal/persistence"
)

type store struct {
	mu     sync.Mutex
	stream eventstream.Stream

	workspaces  map[string]model.Workspace
	workloads   map[string]model.Workload
	templates   map[string]model.Template
	targets     map[string]model.Target
	hosts       map[string]model.Host
	deployments map[string]model.Deployment
	assignments map[string]model.Assignment
	configs     map[string]model.Config
}

// NewStore creates an empty in-memory store whose mutations emit onto stream.
func NewStore(stream eventstream.Stream) *persistence.Store {
	st := &store{
		stream:      stream,
		workspaces:  map[string]model.Workspace{},
		workloads:   map[string]model.Workload{},
		templates:   map[string]model.Template{},
		targets:     map[string]model.Target{},
		hosts:       map[string]model.Host{},
		deployments: map[string]model.Deployment{},
		assignments: map[string]model.Assignment{},
		configs:     map[string]model.Config{},
	}
	return &persistence.Store{
		Workspaces:  workspaceRepo{st},
		Workloads:   workloadRepo{st},
		Templates:   templateRepo{st},
		Targets:     targetRepo{st},
		Hosts:       hostRepo{st},
		Deployments: deploymentRepo{st},
		Assignments: assignmentRepo{st},
		Configs:     configRepo{st},
	}
}

func upsertRow[T any](ctx context.Context, st *store, rows map[string]T, id string, row T, ev *model.Event) error {
	st.mu.Lock()
	rows[id] = row
	st.mu.Unlock()
	return st.stream.Send(ctx, ev)
}

func deleteRow[T any](ctx context.Context, st *store, rows map[string]T, id string, ev *model.Event) error {
	st.mu.Lock()
	if _, ok := rows[id]; !ok {
		st.mu.Unlock()
		return errdefs.NotFoundf("%s %s", ev.ModelType, id)
	}
	delete(rows, id)
	st.mu.Unlock()
	return st.stream.Send(ctx, ev)
}

func getRow[T any](st *store, rows map[string]T, kind model.ModelType, id string) (*T, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	row, ok := rows[id]
	if !ok {
		return nil, errdefs.NotFoundf("%s %s", kind, id)
	}
	return &row, nil
}

func listRows[T any](st *store, rows map[string]T, keep func(T) bool) []T {
	st.mu.Lock()
	defer st.mu.Unlock()
	out := make([]T, 0, len(rows))
	for _, row := range rows {
		if keep == nil || keep(row) {
			out = append(out, row)
		}
	}
	return out
}

func sortByID[T any](rows []T, id func(T) string) []T {
	sort.Slice(rows, func(i, j int) bool { return id(rows[i]) < id(rows[j]) })
	return rows
}

type workspaceRepo struct{ st *store }

func (r workspaceRepo) Upsert(ctx context.Context, ws *model.Workspace, ev *model.Event) error {
	return upsertRow(ctx, r.st, r.st.workspaces, ws.ID, *ws, ev)
}

func (r workspaceRepo) Delete(ctx context.Context, id string, ev *model.Event) error {
	return deleteRow(ctx, r.st, r.st.workspaces, id, ev)
}

func (r workspaceRepo) GetByID(_ context.Context, id string) (*model.Workspace, error) {
	return getRow(r.st, r.st.workspaces, model.ModelWorkspace, id)
}

func (r workspaceRepo) List(_ context.Context) ([]model.Workspace, error) {
	return sortByID(listRows(r.st, r.st.workspaces, nil), func(w model.Workspace) string { return w.ID }), nil
}

type workloadRepo struct{ st *store }

func (r workloadRepo) Upsert(ctx context.Context, w *model.Workload, ev *model.Event) error {
	return upsertRow(ctx, r.st, r.st.workloads, w.ID, *w, ev)
}

func (r workloadRepo) Delete(ctx context.Context, id string, ev *model.Event) error {
	return deleteRow(ctx, r.st, r.st.workloads, id, ev)
}

func (r workloadRepo) GetByID(_ context.Context, id string) (*model.Workload, error) {
	return getRow(r.st, r.st.workloads, model.ModelWorkload, id)
}

func (r workloadRepo) List(_ context.Context) ([]model.Workload, error) {
	return sortByID(listRows(r.st, r.st.workloads, nil), func(w model.Workload) string { return w.ID }), nil
}

func (r workloadRepo) ListByWorkspace(_ context.Context, workspaceID string) ([]model.Workload, error) {
	rows := listRows(r.st, r.st.workloads, func(w model.Workload) bool { return w.WorkspaceID == workspaceID })
	return sortByID(rows, func(w model.Workload) string { return w.ID }), nil
}

func (r workloadRepo) ListByTemplate(_ context.Context, templateID string) ([]model.Workload, error) {
	rows := listRows(r.st, r.st.workloads, func(w model.Workload) bool { return w.TemplateID == templateID })
	return sortByID(rows, func(w model.Workload) string { return w.ID }), nil
}

type templateRepo struct{ st *store }

func (r templateRepo) Upsert(ctx context.Context, t *model.Template, ev *model.Event) error {
	return upsertRow(ctx, r.st, r.st.templates, t.ID, *t, ev)
}

func (r templateRepo) Delete(ctx context.Context, id string, ev *model.Event) error {
	return deleteRow(ctx, r.st, r.st.templates, id, ev)
}

func (r templateRepo) GetByID(_ context.Context, id string) (*model.Template, error) {
	return getRow(r.st, r.st.templates, model.ModelTemplate, id)
}

func (r templateRepo) List(_ context.Context) ([]model.Template, error) {
	return sortByID(listRows(r.st, r.st.templates, nil), func(t model.Template) string { return t.ID }), nil
}

type targetRepo struct{ st *store }

func (r targetRepo) Upsert(ctx context.Context, t *model.Target, ev *model.Event) error {
	return upsertRow(ctx, r.st, r.st.targets, t.ID, *t, ev)
}

func (r targetRepo) Delete(ctx context.Context, id string, ev *model.Event) error {
	return deleteRow(ctx, r.st, r.st.targets, id, ev)
}

func (r targetRepo) GetByID(_ context.Context, id string) (*model.Target, error) {
	return getRow(r.st, r.st.targets, model.ModelTarget, id)
}

func (r targetRepo) List(_ context.Context) ([]model.Target, error) {
	return sortByID(listRows(r.st, r.st.targets, nil), func(t model.Target) string { return t.ID }), nil
}

type hostRepo struct{ st *store }

func (r hostRepo) Upsert(ctx context.Context, h *model.Host, ev *model.Event) error {
	return upsertRow(ctx, r.st, r.st.hosts, h.ID, *h, ev)
}

func (r hostRepo) Delete(ctx context.Context, id string, ev *model.Event) error {
	return deleteRow(ctx, r.st, r.st.hosts, id, ev)
}

func (r hostRepo) GetByID(_ context.Context, id string) (*model.Host, error) {
	return getRow(r.st, r.st.hosts, model.ModelHost, id)
}

func (r hostRepo) List(_ context.Context) ([]model.Host, error) {
	return sortByID(listRows(r.st, r.st.hosts, nil), func(h model.Host) string { return h.ID }), nil
}

func (r hostRepo) ListMatchingLabels(_ context.Context, want []string) ([]model.Host, error) {
	rows := listRows(r.st, r.st.hosts, func(h model.Host) bool { return model.LabelsSubset(want, h.Labels) })
	return sortByID(rows, func(h model.Host) string { return h.ID }), nil
}

type deploymentRepo struct{ st *store }

func (r deploymentRepo) Upsert(ctx context.Context, d *model.Deployment, ev *model.Event) error {
	return upsertRow(ctx, r.st, r.st.deployments, d.ID, *d, ev)
}

func (r deploymentRepo) Delete(ctx context.Context, id string, ev *model.Event) error {
	return deleteRow(ctx, r.st, r.st.deployments, id, ev)
}

func (r deploymentRepo) GetByID(_ context.Context, id string) (*model.Deployment, error) {
	return getRow(r.st, r.st.deployments, model.ModelDeployment, id)
}

func (r deploymentRepo) List(_ context.Context) ([]model.Deployment, error) {
	return sortByID(listRows(r.st, r.st.deployments, nil), func(d model.Deployment) string { return d.ID }), nil
}

func (r deploymentRepo) ListByTarget(_ context.Context, targetID string) ([]model.Deployment, error) {
	rows := listRows(r.st, r.st.deployments, func(d model.Deployment) bool { return d.TargetID == targetID })
	return sortByID(rows, func(d model.Deployment) string { return d.ID }), nil
}

func (r deploymentRepo) ListByWorkload(_ context.Context, workloadID string) ([]model.Deployment, error) {
	rows := listRows(r.st, r.st.deployments, func(d model.Deployment) bool { return d.WorkloadID == workloadID })
	return sortByID(rows, func(d model.Deployment) string { return d.ID }), nil
}

func (r deploymentRepo) ListByTemplate(_ context.Context, templateID string) ([]model.Deployment, error) {
	rows := listRows(r.st, r.st.deployments, func(d model.Deployment) bool { return d.TemplateID == templateID })
	return sortByID(rows, func(d model.Deployment) string { return d.ID }), nil
}

type assignmentRepo struct{ st *store }

func (r assignmentRepo) Upsert(ctx context.Context, a *model.Assignment, ev *model.Event) error {
	return upsertRow(ctx, r.st, r.st.assignments, a.ID, *a, ev)
}

func (r assignmentRepo) Delete(ctx context.Context, id string, ev *model.Event) error {
	return deleteRow(ctx, r.st, r.st.assignments, id, ev)
}

func (r assignmentRepo) GetByID(_ context.Context, id string) (*model.Assignment, error) {
	return getRow(r.st, r.st.assignments, model.ModelAssignment, id)
}

func (r assignmentRepo) List(_ context.Context) ([]model.Assignment, error) {
	return sortByID(listRows(r.st, r.st.assignments, nil), func(a model.Assignment) string { return a.ID }), nil
}

func (r assignmentRepo) ListByDeployment(_ context.Context, deploymentID string) ([]model.Assignment, error) {
	rows := listRows(r.st, r.st.assignments, func(a model.Assignment) bool { return a.DeploymentID == deploymentID })
	return sortByID(rows, func(a model.Assignment) string { return a.ID }), nil
}

func (r assignmentRepo) ListByHost(_ context.Context, hostID string) ([]model.Assignment, error) {
	rows := listRows(r.st, r.st.assignments, func(a model.Assignment) bool { return a.HostID == hostID })
	return sortByID(rows, func(a model.Assignment) string { return a.ID }), nil
}

type configRepo struct{ st *store }

func (r configRepo) Upsert(ctx context.Context, c *model.Config, ev *model.Event) error {
	return upsertRow(ctx, r.st, r.st.configs, c.ID, *c, ev)
}

func (r configRepo) Delete(ctx context.Context, id string, ev *model.Event) error {
	return deleteRow(ctx, r.st, r.st.configs, id, ev)
}

func (r configRepo) GetByID(_ context.Context, id string) (*model.Config, error) {
	return getRow(r.st, r.st.configs, model.ModelConfig, id)
}

func (r configRepo) List(_ context.Context) ([]model.Config, error) {
	return sortByID(listRows(r.st, r.st.configs, nil), func(c model.Config) string { return c.ID }), nil
}

func (r configRepo) ListByOwningModel(_ context.Context, owningModel string) ([]model.Config, error) {
	rows := listRows(r.st, r.st.configs, func(c model.Config) bool { return c.OwningModel == owningModel })
	return sortByID(rows, func(c model.Config) string { return c.ID }), nil
}
