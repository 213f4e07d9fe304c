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

// Package eventstream provides the durable, at-least-once change log that
// connects the model services to the reconciler and the gitops writer. Every
// send fans out one copy per registered consumer; each consumer acknowledges
// its copies independently, so a fresh consumer replays the full backlog.
package eventstream

import (
	"context"

	"github.com/ConfigButler/deployplane/internal/model"
)

// Consumer ids of the built-in long-running consumers.
const (
	ConsumerReconciler = "reconciler"
	ConsumerGitOps     = "gitops"
)

// Stream is the contract shared by the in-memory and the relational stream.
// Events are delivered in (timestamp, id) order per consumer and are
// redelivered until acknowledged.
type Stream interface {
	// Send appends one event for every registered consumer. It returns after
	// the append is durable.
	Send(ctx context.Context, ev *model.Event) error

	// Receive returns up to maxN unacknowledged events for consumerID in
	// ascending (timestamp, id) order.
	Receive(ctx context.Context, consumerID string, maxN int) ([]model.Event, error)

	// Ack acknowledges a single event for consumerID, removing it from that
	// consumer's backlog.
	Ack(ctx context.Context, consumerID, eventID string) error

	// Pending reports the number of unacknowledged events for consumerID.
	// Tests use it to detect quiescence.
	Pending(ctx context.Context, consumerID string) (int, error)
}
