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

package eventstream

import (
	"context"
	"sort"
	"sync"

	"github.com/ConfigButler/deployplane/internal/model"
)

// MemoryStream is the in-process Stream used by tests and the conformance
// suite. It mirrors the relational stream's semantics exactly: fan-out per
// consumer, redelivery until ack, (timestamp, id) ordering.
type MemoryStream struct {
	mu       sync.Mutex
	backlogs map[string][]model.Event
}

var _ Stream = (*MemoryStream)(nil)

// NewMemoryStream creates a stream with one backlog per consumer id.
func NewMemoryStream(consumerIDs ...string) *MemoryStream {
	backlogs := make(map[string][]model.Event, len(consumerIDs))
	for _, id := range consumerIDs {
		backlogs[id] = nil
	}
	return &MemoryStream{backlogs: backlogs}
}

// Send appends a copy of the event to every consumer backlog.
func (s *MemoryStream) Send(_ context.Context, ev *model.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id := range s.backlogs {
		s.backlogs[id] = append(s.backlogs[id], *ev)
	}
	return nil
}

// Receive returns up to maxN unacknowledged events without removing them.
func (s *MemoryStream) Receive(_ context.Context, consumerID string, maxN int) ([]model.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	backlog := s.backlogs[consumerID]
	sort.SliceStable(backlog, func(i, j int) bool {
		if !backlog[i].Timestamp.Equal(backlog[j].Timestamp) {
			return backlog[i].Timestamp.Before(backlog[j].Timestamp)
		}
		return backlog[i].ID < backlog[j].ID
	})

	n := min(maxN, len(backlog))
	out := make([]model.Event, n)
	copy(out, backlog[:n])
	return out, nil
}

// Ack removes one event from the consumer's backlog.
func (s *MemoryStream) Ack(_ context.Context, consumerID, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	backlog := s.backlogs[consumerID]
	for i, ev := range backlog {
		if ev.ID == eventID {
			s.backlogs[consumerID] = append(backlog[:i:i], backlog[i+1:]...)
			return nil
		}
	}
	return nil
}

// Pending reports the backlog length for a consumer.
func (s *MemoryStream) Pending(_ context.Context, consumerID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.backlogs[consumerID]), nil
}
