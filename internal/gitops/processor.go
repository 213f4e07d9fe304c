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
	"encoding/json"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/go-logr/logr"

	"github.com/ConfigButler/deployplane/internal/errdefs"
	"github.com/ConfigButler/deployplane/internal/metrics"
	"github.com/ConfigButler/deployplane/internal/model"
	"github.com/ConfigButler/deployplane/internal/service"
	"github.com/ConfigButler/deployplane/internal/template"
)

// Processor consumes the "gitops" stream and turns each poll batch into one
// commit in the deployment repository. The tree is laid out as
// <host>/<workspace>/<workload>/<deployment>/<file>.
type Processor struct {
	services     *service.Registry
	renderer     *template.Renderer
	repo         *Repo
	organization string
	log          logr.Logger
	metrics      *metrics.Metrics
}

// ProcessorOption tweaks a Processor.
type ProcessorOption func(*Processor)

// WithOrganization sets the organization name exposed to templates.
func WithOrganization(name string) ProcessorOption {
	return func(p *Processor) { p.organization = name }
}

// WithMetrics records batch and render metrics on m.
func WithMetrics(m *metrics.Metrics) ProcessorOption {
	return func(p *Processor) { p.metrics = m }
}

// NewProcessor builds the gitops batch processor.
func NewProcessor(services *service.Registry, renderer *template.Renderer, repo *Repo, log logr.Logger, opts ...ProcessorOption) *Processor {
	p := &Processor{
		services:     services,
		renderer:     renderer,
		repo:         repo,
		organization: "default",
		log:          log.WithName("gitops"),
		metrics:      metrics.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// pair is one (deployment, host) placement to render.
type pair struct {
	deploymentID string
	hostID       string
}

// ProcessBatch renders everything the batch touches and lands it as a single
// commit. Placements that reference vanished models are skipped: later events
// in the stream carry their cleanup. A single undecodable event is dropped
// rather than holding the rest of the batch hostage; only retryable failures
// abort the batch.
func (p *Processor) ProcessBatch(ctx context.Context, events []model.Event) error {
	change := &Change{Writes: map[string][]byte{}}
	pairs := map[pair]bool{}
	operationIDs := map[string]bool{}

	for i := range events {
		ev := &events[i]
		if err := p.fanOut(ctx, ev, pairs, change); err != nil {
			if errdefs.IsRetryable(err) {
				return err
			}
			p.log.Error(err, "event cannot be mapped to placements, skipping",
				"event", ev.ID, "modelType", ev.ModelType)
			continue
		}
		operationIDs[ev.OperationID] = true
	}

	for _, pr := range sortedPairs(pairs) {
		if err := p.renderPair(ctx, pr, change); err != nil {
			return err
		}
	}

	if change.Empty() {
		return nil
	}
	if err := p.repo.Apply(ctx, change, commitMessage(operationIDs)); err != nil {
		return err
	}
	p.metrics.BatchesWritten.Add(ctx, 1)
	p.log.Info("pushed batch", "events", len(events), "writes", len(change.Writes), "removals", len(change.RemoveGlobs))
	return nil
}

// fanOut maps one event onto placements to render and subtrees to remove.
func (p *Processor) fanOut(ctx context.Context, ev *model.Event, pairs map[pair]bool, change *Change) error {
	switch ev.ModelType {
	case model.ModelAssignment:
		a, err := model.CurrentOrPreviousModel[model.Assignment](ev)
		if err != nil {
			return errdefs.InvalidArgumentf("%v", err)
		}
		if ev.EventType == model.EventDeleted {
			change.RemoveGlobs = append(change.RemoveGlobs, path.Join(a.HostID, "*", "*", a.DeploymentID))
			return nil
		}
		pairs[pair{a.DeploymentID, a.HostID}] = true
		return nil

	case model.ModelDeployment:
		d, err := model.CurrentOrPreviousModel[model.Deployment](ev)
		if err != nil {
			return errdefs.InvalidArgumentf("%v", err)
		}
		if ev.EventType == model.EventDeleted {
			change.RemoveGlobs = append(change.RemoveGlobs, path.Join("*", "*", "*", d.ID))
			return nil
		}
		return p.addDeploymentPairs(ctx, d.ID, pairs)

	case model.ModelHost:
		if ev.EventType != model.EventDeleted {
			return nil
		}
		h, err := model.PreviousModel[model.Host](ev)
		if err != nil {
			return errdefs.InvalidArgumentf("%v", err)
		}
		change.RemoveGlobs = append(change.RemoveGlobs, h.ID)
		return nil

	case model.ModelWorkload:
		if ev.EventType == model.EventDeleted {
			// Its deployments fanned out their own deletion events.
			return nil
		}
		w, err := model.CurrentModel[model.Workload](ev)
		if err != nil {
			return errdefs.InvalidArgumentf("%v", err)
		}
		return p.addWorkloadPairs(ctx, w.ID, pairs)

	case model.ModelTemplate:
		if ev.EventType == model.EventDeleted {
			return nil
		}
		t, err := model.CurrentModel[model.Template](ev)
		if err != nil {
			return errdefs.InvalidArgumentf("%v", err)
		}
		return p.addTemplatePairs(ctx, t.ID, pairs)

	case model.ModelConfig:
		c, err := model.CurrentOrPreviousModel[model.Config](ev)
		if err != nil {
			return errdefs.InvalidArgumentf("%v", err)
		}
		return p.addConfigPairs(ctx, c.OwningModel, pairs)

	default:
		// Targets and workspaces never appear in the tree directly.
		return nil
	}
}

func (p *Processor) addDeploymentPairs(ctx context.Context, deploymentID string, pairs map[pair]bool) error {
	assignments, err := p.services.Assignments.ListByDeployment(ctx, deploymentID)
	if err != nil {
		return err
	}
	for _, a := range assignments {
		pairs[pair{a.DeploymentID, a.HostID}] = true
	}
	return nil
}

func (p *Processor) addWorkloadPairs(ctx context.Context, workloadID string, pairs map[pair]bool) error {
	deployments, err := p.services.Deployments.ListByWorkload(ctx, workloadID)
	if err != nil {
		return err
	}
	for _, d := range deployments {
		if err := p.addDeploymentPairs(ctx, d.ID, pairs); err != nil {
			return err
		}
	}
	return nil
}

// addTemplatePairs re-renders every deployment that resolves to the template,
// through a workload default or a deployment override.
func (p *Processor) addTemplatePairs(ctx context.Context, templateID string, pairs map[pair]bool) error {
	workloads, err := p.services.Workloads.List(ctx)
	if err != nil {
		return err
	}
	for _, w := range workloads {
		if w.TemplateID != templateID {
			continue
		}
		if err := p.addWorkloadPairs(ctx, w.ID, pairs); err != nil {
			return err
		}
	}
	deployments, err := p.services.Deployments.List(ctx)
	if err != nil {
		return err
	}
	for _, d := range deployments {
		if d.TemplateID == templateID {
			if err := p.addDeploymentPairs(ctx, d.ID, pairs); err != nil {
				return err
			}
		}
	}
	return nil
}

func (p *Processor) addConfigPairs(ctx context.Context, owningModel string, pairs map[pair]bool) error {
	owner, err := model.ParseOwnerRef(owningModel)
	if err != nil {
		return errdefs.InvalidArgumentf("%v", err)
	}
	switch owner.Kind {
	case model.ModelDeployment:
		return p.addDeploymentPairs(ctx, owner.ID, pairs)
	case model.ModelWorkload:
		return p.addWorkloadPairs(ctx, owner.ID, pairs)
	case model.ModelWorkspace:
		workloads, err := p.services.Workloads.ListByWorkspace(ctx, owner.ID)
		if err != nil {
			return err
		}
		for _, w := range workloads {
			if err := p.addWorkloadPairs(ctx, w.ID, pairs); err != nil {
				return err
			}
		}
		return nil
	case model.ModelTemplate:
		return p.addTemplatePairs(ctx, owner.ID, pairs)
	default:
		return nil
	}
}

// renderPair renders one placement into the change set. A placement whose
// models vanished mid-flight renders nothing; a template input error is
// logged and skipped so it cannot wedge the whole batch.
func (p *Processor) renderPair(ctx context.Context, pr pair, change *Change) error {
	start := time.Now()

	d, err := p.services.Deployments.GetByID(ctx, pr.deploymentID)
	if err != nil {
		return skippable(p.log, err, "deployment", pr.deploymentID)
	}
	h, err := p.services.Hosts.GetByID(ctx, pr.hostID)
	if err != nil {
		return skippable(p.log, err, "host", pr.hostID)
	}
	w, err := p.services.Workloads.GetByID(ctx, d.WorkloadID)
	if err != nil {
		return skippable(p.log, err, "workload", d.WorkloadID)
	}

	templateID := d.TemplateID
	if templateID == "" {
		templateID = w.TemplateID
	}
	tmpl, err := p.services.Templates.GetByID(ctx, templateID)
	if err != nil {
		return skippable(p.log, err, "template", templateID)
	}

	vars, err := p.buildVars(ctx, d, w, h)
	if err != nil {
		return err
	}
	files, err := p.renderer.Render(ctx, tmpl, vars)
	if err != nil {
		if errdefs.IsRetryable(err) {
			return err
		}
		p.log.Error(err, "placement does not render, skipping",
			"deployment", d.ID, "host", h.ID, "template", tmpl.ID)
		return nil
	}

	dir := path.Join(h.ID, w.WorkspaceID, w.ID, d.ID)
	// Rewrite the whole subtree so files dropped from the template disappear.
	change.RemoveGlobs = append(change.RemoveGlobs, dir)
	for _, f := range files {
		change.Writes[path.Join(dir, f.Path)] = f.Data
	}

	p.metrics.RenderDuration.Record(ctx, time.Since(start).Seconds())
	return nil
}

// buildVars assembles the template data: placement identity plus the
// flattened effective config.
func (p *Processor) buildVars(ctx context.Context, d *model.Deployment, w *model.Workload, h *model.Host) (template.Vars, error) {
	assignments, err := p.services.Assignments.ListByDeployment(ctx, d.ID)
	if err != nil {
		return nil, err
	}
	hostIDs := make([]string, 0, len(assignments))
	for _, a := range assignments {
		hostIDs = append(hostIDs, a.HostID)
	}
	sort.Strings(hostIDs)
	ordinal := 0
	for i, id := range hostIDs {
		if id == h.ID {
			ordinal = i
			break
		}
	}

	vars := template.Vars{
		"organization": p.organization,
		"team":         w.WorkspaceID,
		"workload":     w.Name,
		"deployment":   d.Name,
		"host":         h.ID,
		"ordinal":      ordinal,
	}

	configs, err := p.services.Configs.ResolveForDeployment(ctx, d.ID)
	if err != nil {
		return nil, err
	}
	for _, c := range configs {
		vars[c.Key] = configValue(c)
	}
	return vars, nil
}

// configValue decodes structured values so templates can range over them;
// plain strings pass through.
func configValue(c model.Config) any {
	switch c.ValueType {
	case model.ValueTypeKeyValue:
		var m map[string]any
		if err := json.Unmarshal([]byte(c.Value), &m); err == nil {
			return m
		}
	case model.ValueTypeKeyValueList:
		var l []map[string]any
		if err := json.Unmarshal([]byte(c.Value), &l); err == nil {
			return l
		}
	}
	return c.Value
}

// skippable swallows NotFound lookups for stale placements and propagates
// everything else.
func skippable(log logr.Logger, err error, kind, id string) error {
	if errdefs.IsNotFound(err) {
		log.V(1).Info("placement references a vanished model, skipping", "kind", kind, "id", id)
		return nil
	}
	return err
}

func commitMessage(operationIDs map[string]bool) string {
	ids := make([]string, 0, len(operationIDs))
	for id := range operationIDs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return "reconcile: " + strings.Join(ids, " ")
}

// sortedPairs returns the placements in deterministic order.
func sortedPairs(pairs map[pair]bool) []pair {
	out := make([]pair, 0, len(pairs))
	for pr := range pairs {
		out = append(out, pr)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].deploymentID != out[j].deploymentID {
			return out[i].deploymentID < out[j].deploymentID
		}
		return out[i].hostID < out[j].hostID
	})
	return out
}
