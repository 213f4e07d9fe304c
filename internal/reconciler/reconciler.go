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

// Package reconciler turns model change events into assignment changes. It is
// the only writer of assignments. Processing is idempotent: replaying an
// event converges on the same placements.
package reconciler

import (
	"context"
	"sort"

	"github.com/go-logr/logr"

	"github.com/ConfigButler/deployplane/internal/errdefs"
	"github.com/ConfigButler/deployplane/internal/model"
	"github.com/ConfigButler/deployplane/internal/service"
)

// Reconciler consumes the "reconciler" stream and keeps assignments in step
// with deployments, targets and hosts.
type Reconciler struct {
	services *service.Registry
	log      logr.Logger
}

// New builds a Reconciler over the model services.
func New(services *service.Registry, log logr.Logger) *Reconciler {
	return &Reconciler{services: services, log: log.WithName("reconciler")}
}

// Process handles one event. Events that cannot affect placements are
// acknowledged without work.
func (r *Reconciler) Process(ctx context.Context, ev *model.Event) error {
	switch ev.ModelType {
	case model.ModelDeployment:
		return r.processDeployment(ctx, ev)
	case model.ModelTarget:
		return r.processTarget(ctx, ev)
	case model.ModelHost:
		return r.processHost(ctx, ev)
	default:
		// Assignments are our own writes; workload deletions already fan out
		// per-deployment events; configs and templates never move placements.
		return nil
	}
}

func (r *Reconciler) processDeployment(ctx context.Context, ev *model.Event) error {
	d, err := model.CurrentOrPreviousModel[model.Deployment](ev)
	if err != nil {
		return errdefs.InvalidArgumentf("%v", err)
	}
	deleted := ev.EventType == model.EventDeleted
	return r.reconcileDeployment(ctx, d, deleted, ev.OperationID)
}

func (r *Reconciler) processTarget(ctx context.Context, ev *model.Event) error {
	t, err := model.CurrentOrPreviousModel[model.Target](ev)
	if err != nil {
		return errdefs.InvalidArgumentf("%v", err)
	}
	deployments, err := r.services.Deployments.ListByTarget(ctx, t.ID)
	if err != nil {
		return err
	}
	for i := range deployments {
		if err := r.reconcileDeployment(ctx, &deployments[i], false, ev.OperationID); err != nil {
			return err
		}
	}
	return nil
}

// processHost reconciles every deployment whose target matched the host
// before or after the change, so both newly eligible and newly ineligible
// placements are revisited.
func (r *Reconciler) processHost(ctx context.Context, ev *model.Event) error {
	var prevLabels, curLabels []string
	if prev, err := model.PreviousModel[model.Host](ev); err != nil {
		return errdefs.InvalidArgumentf("%v", err)
	} else if prev != nil {
		prevLabels = prev.Labels
	}
	if cur, err := model.CurrentModel[model.Host](ev); err != nil {
		return errdefs.InvalidArgumentf("%v", err)
	} else if cur != nil {
		curLabels = cur.Labels
	}

	targets, err := r.services.Targets.List(ctx)
	if err != nil {
		return err
	}
	for _, t := range targets {
		if !model.LabelsSubset(t.Labels, prevLabels) && !model.LabelsSubset(t.Labels, curLabels) {
			continue
		}
		deployments, err := r.services.Deployments.ListByTarget(ctx, t.ID)
		if err != nil {
			return err
		}
		for i := range deployments {
			if err := r.reconcileDeployment(ctx, &deployments[i], false, ev.OperationID); err != nil {
				return err
			}
		}
	}
	return nil
}

// reconcileDeployment converges one deployment's assignments. A deleted
// deployment, or one whose target is gone, converges on zero.
func (r *Reconciler) reconcileDeployment(ctx context.Context, d *model.Deployment, deleted bool, operationID string) error {
	var eligible []model.Host
	if !deleted {
		target, err := r.services.Targets.GetByID(ctx, d.TargetID)
		switch {
		case errdefs.IsNotFound(err):
			// Dangling target: nothing is eligible.
		case err != nil:
			return err
		default:
			if eligible, err = r.services.Hosts.ListMatchingTarget(ctx, target); err != nil {
				return err
			}
		}
	}

	existing, err := r.services.Assignments.ListByDeployment(ctx, d.ID)
	if err != nil {
		return err
	}

	desired := desiredCount(d, len(eligible), deleted)
	create, remove := computeAssignmentChanges(d.ID, existing, eligible, desired)

	for i := range remove {
		if _, err := r.services.Assignments.Delete(ctx, remove[i].ID, operationID); err != nil && !errdefs.IsNotFound(err) {
			return err
		}
	}
	for i := range create {
		if _, err := r.services.Assignments.Upsert(ctx, &create[i], operationID); err != nil {
			return err
		}
	}

	if len(create) > 0 || len(remove) > 0 {
		r.log.Info("reconciled deployment",
			"deployment", d.ID, "desired", desired,
			"created", len(create), "removed", len(remove), "operationID", operationID)
	}
	return nil
}

// desiredCount resolves the replica sentinel against the eligible host pool.
func desiredCount(d *model.Deployment, eligible int, deleted bool) int {
	if deleted {
		return 0
	}
	if d.HostCount == model.HostCountAll {
		return eligible
	}
	return min(int(d.HostCount), eligible)
}

// computeAssignmentChanges diffs existing placements against the eligible
// hosts. Existing placements on eligible hosts are kept first; both top-up
// and scale-down pick hosts in ascending host id order so the outcome is
// deterministic across replays.
func computeAssignmentChanges(deploymentID string, existing []model.Assignment, eligible []model.Host, desired int) (create, remove []model.Assignment) {
	eligibleIDs := make(map[string]bool, len(eligible))
	for _, h := range eligible {
		eligibleIDs[h.ID] = true
	}

	var kept []model.Assignment
	for _, a := range existing {
		if eligibleIDs[a.HostID] {
			kept = append(kept, a)
		} else {
			remove = append(remove, a)
		}
	}
	sort.Slice(kept, func(i, j int) bool { return kept[i].HostID < kept[j].HostID })

	if len(kept) > desired {
		remove = append(remove, kept[desired:]...)
		return nil, remove
	}

	assigned := make(map[string]bool, len(kept))
	for _, a := range kept {
		assigned[a.HostID] = true
	}
	for _, h := range eligible {
		if len(kept)+len(create) >= desired {
			break
		}
		if assigned[h.ID] {
			continue
		}
		create = append(create, model.Assignment{
			ID:           model.MakeAssignmentID(deploymentID, h.ID),
			DeploymentID: deploymentID,
			HostID:       h.ID,
		})
	}
	return create, remove
}
