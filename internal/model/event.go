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

package model

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType describes what happened to a model.
type EventType string

const (
	EventCreated EventType = "Created"
	EventUpdated EventType = "Updated"
	EventDeleted EventType = "Deleted"
)

// ModelType names the entity an event refers to.
type ModelType string

const (
	ModelAssignment ModelType = "assignment"
	ModelConfig     ModelType = "config"
	ModelDeployment ModelType = "deployment"
	ModelHost       ModelType = "host"
	ModelTarget     ModelType = "target"
	ModelTemplate   ModelType = "template"
	ModelWorkload   ModelType = "workload"
	ModelWorkspace  ModelType = "workspace"
)

// Event is one entry of the durable change log. Previous is empty for Created,
// Current is empty for Deleted, and both are populated for Updated.
type Event struct {
	ID          string    `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	OperationID string    `json:"operationId"`
	EventType   EventType `json:"eventType"`
	ModelType   ModelType `json:"modelType"`
	Previous    []byte    `json:"previous,omitempty"`
	Current     []byte    `json:"current,omitempty"`
}

// NewOperationID mints the correlation id stamped on the events of a single
// mutation. Callers pass an existing id through when a cascade should share
// one operation.
func NewOperationID() string {
	return uuid.NewString()
}

// EnsureOperationID returns operationID or a fresh one when empty.
func EnsureOperationID(operationID string) string {
	if operationID != "" {
		return operationID
	}
	return NewOperationID()
}

// NewEvent snapshots previous and current into an event. Either snapshot may
// be nil; the event type must agree with which ones are set.
func NewEvent(previous, current any, eventType EventType, modelType ModelType, operationID string) (*Event, error) {
	ev := &Event{
		ID:          uuid.NewString(),
		Timestamp:   time.Now().UTC(),
		OperationID: operationID,
		EventType:   eventType,
		ModelType:   modelType,
	}

	var err error
	if previous != nil {
		if ev.Previous, err = json.Marshal(previous); err != nil {
			return nil, fmt.Errorf("failed to snapshot previous model: %w", err)
		}
	}
	if current != nil {
		if ev.Current, err = json.Marshal(current); err != nil {
			return nil, fmt.Errorf("failed to snapshot current model: %w", err)
		}
	}

	switch eventType {
	case EventCreated:
		if len(ev.Previous) != 0 || len(ev.Current) == 0 {
			return nil, fmt.Errorf("created event for %s must carry only a current model", modelType)
		}
	case EventUpdated:
		if len(ev.Previous) == 0 || len(ev.Current) == 0 {
			return nil, fmt.Errorf("updated event for %s must carry previous and current models", modelType)
		}
	case EventDeleted:
		if len(ev.Previous) == 0 || len(ev.Current) != 0 {
			return nil, fmt.Errorf("deleted event for %s must carry only a previous model", modelType)
		}
	}

	return ev, nil
}

// CurrentModel decodes the current snapshot of an event.
func CurrentModel[T any](ev *Event) (*T, error) {
	return decodeSnapshot[T](ev.Current)
}

// PreviousModel decodes the previous snapshot of an event.
func PreviousModel[T any](ev *Event) (*T, error) {
	return decodeSnapshot[T](ev.Previous)
}

// CurrentOrPreviousModel decodes the current snapshot, falling back to the
// previous one for deletion events. Consumers that only need the identity of
// the model use this.
func CurrentOrPreviousModel[T any](ev *Event) (*T, error) {
	if len(ev.Current) != 0 {
		return decodeSnapshot[T](ev.Current)
	}
	if len(ev.Previous) != 0 {
		return decodeSnapshot[T](ev.Previous)
	}
	return nil, fmt.Errorf("event %s carries neither a previous nor a current model", ev.ID)
}

func decodeSnapshot[T any](raw []byte) (*T, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to decode model snapshot: %w", err)
	}
	return &out, nil
}
