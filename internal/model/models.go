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

// Package model holds the entities of the control plane and the event payload
// codec that every other package shares.
package model

import "fmt"

// HostCountAll is the sentinel replica count meaning "every matching host".
const HostCountAll int32 = -1

// Workspace is the namespace (team) that owns workloads.
type Workspace struct {
	ID string `json:"id"`
}

// Workload is a deployable application identity, independent of where it runs.
type Workload struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	WorkspaceID string `json:"workspaceId"`
	TemplateID  string `json:"templateId"`
}

// Template is a parameterized manifest bundle held in a Git repository.
type Template struct {
	ID         string `json:"id"`
	Repository string `json:"repository"`
	GitRef     string `json:"gitRef"`
	Path       string `json:"path"`
}

// Target selects hosts by requiring its labels to be a subset of theirs.
type Target struct {
	ID     string   `json:"id"`
	Labels []string `json:"labels"`
}

// Host is a machine or cluster that eventually applies rendered manifests.
type Host struct {
	ID     string   `json:"id"`
	Labels []string `json:"labels"`
}

// Deployment binds one workload to one target with a replica count.
// TemplateID is an optional override; when empty the workload's template is
// used. HostCount may be HostCountAll.
type Deployment struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	WorkloadID string `json:"workloadId"`
	TargetID   string `json:"targetId"`
	TemplateID string `json:"templateId,omitempty"`
	HostCount  int32  `json:"hostCount"`
}

// Assignment records that a deployment is placed on a host. Assignments are
// derived: only the reconciler writes them.
type Assignment struct {
	ID           string `json:"id"`
	DeploymentID string `json:"deploymentId"`
	HostID       string `json:"hostId"`
}

// MakeAssignmentID builds the deterministic id for a (deployment, host) pair,
// which makes assignment upserts idempotent across reconciler replays.
func MakeAssignmentID(deploymentID, hostID string) string {
	return fmt.Sprintf("%s|%s", deploymentID, hostID)
}

// ValueType describes how a config value is interpreted by templates.
type ValueType string

const (
	ValueTypeString       ValueType = "string"
	ValueTypeKeyValue     ValueType = "keyvalue"
	ValueTypeKeyValueList ValueType = "keyvaluelist"
)

// Config is a key/value scoped to an owning model and inherited along the
// Deployment -> Workload -> Template chain, nearest owner winning.
type Config struct {
	ID          string    `json:"id"`
	OwningModel string    `json:"owningModel"`
	Key         string    `json:"key"`
	Value       string    `json:"value"`
	ValueType   ValueType `json:"valueType"`
}
