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
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ConfigButler/deployplane/internal/model"
)

func testEvent(ts time.Time) *model.Event {
	return &model.Event{
		ID:          uuid.NewString(),
		Timestamp:   ts,
		OperationID: uuid.NewString(),
		EventType:   model.EventCreated,
		ModelType:   model.ModelHost,
		Current:     []byte(`{"id":"h1"}`),
	}
}

func TestMemoryStreamFansOutPerConsumer(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStream(ConsumerReconciler, ConsumerGitOps)

	ev := testEvent(time.Now())
	require.NoError(t, s.Send(ctx, ev))

	for _, consumer := range []string{ConsumerReconciler, ConsumerGitOps} {
		got, err := s.Receive(ctx, consumer, 10)
		require.NoError(t, err)
		require.Len(t, got, 1, "consumer %s", consumer)
		assert.Equal(t, ev.ID, got[0].ID)
	}

	// Acking one consumer's copy leaves the other's backlog alone.
	require.NoError(t, s.Ack(ctx, ConsumerReconciler, ev.ID))
	n, err := s.Pending(ctx, ConsumerReconciler)
	require.NoError(t, err)
	assert.Zero(t, n)
	n, err = s.Pending(ctx, ConsumerGitOps)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestMemoryStreamOrdersByTimestampThenID(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStream(ConsumerReconciler)

	base := time.Now()
	late := testEvent(base.Add(time.Second))
	early := testEvent(base)
	require.NoError(t, s.Send(ctx, late))
	require.NoError(t, s.Send(ctx, early))

	got, err := s.Receive(ctx, ConsumerReconciler, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, early.ID, got[0].ID)
	assert.Equal(t, late.ID, got[1].ID)

	tied1 := testEvent(base.Add(2 * time.Second))
	tied2 := testEvent(base.Add(2 * time.Second))
	lo, hi := tied1, tied2
	if lo.ID > hi.ID {
		lo, hi = hi, lo
	}
	require.NoError(t, s.Send(ctx, tied1))
	require.NoError(t, s.Send(ctx, tied2))

	got, err = s.Receive(ctx, ConsumerReconciler, 10)
	require.NoError(t, err)
	require.Len(t, got, 4)
	assert.Equal(t, lo.ID, got[2].ID)
	assert.Equal(t, hi.ID, got[3].ID)
}

func TestMemoryStreamRedeliversUntilAck(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStream(ConsumerGitOps)

	ev := testEvent(time.Now())
	require.NoError(t, s.Send(ctx, ev))

	for i := 0; i < 3; i++ {
		got, err := s.Receive(ctx, ConsumerGitOps, 1)
		require.NoError(t, err)
		require.Len(t, got, 1)
	}

	require.NoError(t, s.Ack(ctx, ConsumerGitOps, ev.ID))
	got, err := s.Receive(ctx, ConsumerGitOps, 1)
	require.NoError(t, err)
	assert.Empty(t, got)

	// Acking twice is harmless.
	require.NoError(t, s.Ack(ctx, ConsumerGitOps, ev.ID))
}

func TestMemoryStreamRespectsMaxN(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStream(ConsumerReconciler)

	base := time.Now()
	for i := 0; i < 5; i++ {
		require.NoError(t, s.Send(ctx, testEvent(base.Add(time.Duration(i)*time.Millisecond))))
	}

	got, err := s.Receive(ctx, ConsumerReconciler, 3)
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestMemoryStreamUnknownConsumerIsEmpty(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStream(ConsumerReconciler)
	require.NoError(t, s.Send(ctx, testEvent(time.Now())))

	got, err := s.Receive(ctx, "someone-else", 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}
