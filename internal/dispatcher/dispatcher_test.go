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

package dispatcher

import (
	"context"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ConfigButler/deployplane/internal/errdefs"
	"github.com/ConfigButler/deployplane/internal/eventstream"
	"github.com/ConfigButler/deployplane/internal/model"
)

const consumer = "test"

type funcProcessor func(ctx context.Context, ev *model.Event) error

func (f funcProcessor) Process(ctx context.Context, ev *model.Event) error { return f(ctx, ev) }

type funcBatch func(ctx context.Context, events []model.Event) error

func (f funcBatch) ProcessBatch(ctx context.Context, events []model.Event) error {
	return f(ctx, events)
}

func sendN(t *testing.T, s eventstream.Stream, n int) {
	t.Helper()
	base := time.Now()
	for i := 0; i < n; i++ {
		require.NoError(t, s.Send(context.Background(), &model.Event{
			ID:          uuid.NewString(),
			Timestamp:   base.Add(time.Duration(i) * time.Millisecond),
			OperationID: uuid.NewString(),
			EventType:   model.EventCreated,
			ModelType:   model.ModelHost,
			Current:     []byte(`{"id":"h1"}`),
		}))
	}
}

func pending(t *testing.T, s eventstream.Stream) int {
	t.Helper()
	n, err := s.Pending(context.Background(), consumer)
	require.NoError(t, err)
	return n
}

func TestHandleAcksSuccesses(t *testing.T) {
	ctx := context.Background()
	s := eventstream.NewMemoryStream(consumer)
	sendN(t, s, 3)

	var processed int
	d := New(s, consumer, funcProcessor(func(context.Context, *model.Event) error {
		processed++
		return nil
	}), logr.Discard())

	events, err := s.Receive(ctx, consumer, 10)
	require.NoError(t, err)
	assert.True(t, d.handle(ctx, events))
	assert.Equal(t, 3, processed)
	assert.Zero(t, pending(t, s))
}

func TestHandleDropsTerminalFailures(t *testing.T) {
	ctx := context.Background()
	s := eventstream.NewMemoryStream(consumer)
	sendN(t, s, 2)

	d := New(s, consumer, funcProcessor(func(context.Context, *model.Event) error {
		return errdefs.InvalidArgumentf("malformed snapshot")
	}), logr.Discard())

	events, err := s.Receive(ctx, consumer, 10)
	require.NoError(t, err)
	assert.True(t, d.handle(ctx, events), "terminal failures do not stop the batch")
	assert.Zero(t, pending(t, s), "poisoned events are acked away")
}

func TestHandleLeavesRetryableFailuresUnacked(t *testing.T) {
	ctx := context.Background()
	s := eventstream.NewMemoryStream(consumer)
	sendN(t, s, 3)

	var calls int
	d := New(s, consumer, funcProcessor(func(context.Context, *model.Event) error {
		calls++
		if calls == 2 {
			return errdefs.Unavailablef("store down")
		}
		return nil
	}), logr.Discard())

	events, err := s.Receive(ctx, consumer, 10)
	require.NoError(t, err)
	assert.False(t, d.handle(ctx, events))
	// First event acked, second and third still pending.
	assert.Equal(t, 2, pending(t, s))
}

func TestHandleBatchIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	s := eventstream.NewMemoryStream(consumer)
	sendN(t, s, 4)

	fail := true
	d := NewBatch(s, consumer, funcBatch(func(context.Context, []model.Event) error {
		if fail {
			return errdefs.Unavailablef("push rejected")
		}
		return nil
	}), logr.Discard())

	events, err := s.Receive(ctx, consumer, 10)
	require.NoError(t, err)
	assert.False(t, d.handle(ctx, events))
	assert.Equal(t, 4, pending(t, s), "a retryable batch failure acks nothing")

	fail = false
	assert.True(t, d.handle(ctx, events))
	assert.Zero(t, pending(t, s))
}

func TestHandleBatchAcksTerminalFailure(t *testing.T) {
	ctx := context.Background()
	s := eventstream.NewMemoryStream(consumer)
	sendN(t, s, 3)

	d := NewBatch(s, consumer, funcBatch(func(context.Context, []model.Event) error {
		return errdefs.InvalidArgumentf("malformed batch")
	}), logr.Discard())

	events, err := s.Receive(ctx, consumer, 10)
	require.NoError(t, err)
	assert.True(t, d.handle(ctx, events), "a terminal batch failure does not retry")
	assert.Zero(t, pending(t, s), "the batch is acked away")
}

func TestRunStopsOnContextCancel(t *testing.T) {
	s := eventstream.NewMemoryStream(consumer)
	d := New(s, consumer, funcProcessor(func(context.Context, *model.Event) error {
		return nil
	}), logr.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("dispatcher did not stop")
	}
}

func TestRunProcessesBacklog(t *testing.T) {
	s := eventstream.NewMemoryStream(consumer)
	sendN(t, s, 5)

	processed := make(chan struct{}, 16)
	d := New(s, consumer, funcProcessor(func(context.Context, *model.Event) error {
		processed <- struct{}{}
		return nil
	}), logr.Discard(), WithBatchSize(2))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = d.Run(ctx) }()

	for i := 0; i < 5; i++ {
		select {
		case <-processed:
		case <-time.After(5 * time.Second):
			t.Fatalf("event %d never processed", i)
		}
	}
	cancel()
}
