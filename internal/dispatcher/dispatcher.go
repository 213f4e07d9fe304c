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

// Package dispatcher pumps events from a stream consumer into a processor.
// Terminal failures are logged and acknowledged so one poisoned event cannot
// wedge the backlog; retryable failures leave the event unacked and back off.
package dispatcher

import (
	"context"
	"time"

	"github.com/go-logr/logr"
	"github.com/jpillora/backoff"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/ConfigButler/deployplane/internal/errdefs"
	"github.com/ConfigButler/deployplane/internal/eventstream"
	"github.com/ConfigButler/deployplane/internal/metrics"
	"github.com/ConfigButler/deployplane/internal/model"
)

// Processor handles one event at a time. The reconciler is one.
type Processor interface {
	Process(ctx context.Context, ev *model.Event) error
}

// BatchProcessor handles a whole poll batch in one unit of work, acknowledged
// all-or-nothing. The gitops writer is one: a batch becomes one commit.
type BatchProcessor interface {
	ProcessBatch(ctx context.Context, events []model.Event) error
}

const defaultBatchSize = 64

// Dispatcher runs the receive/process/ack loop for one consumer.
type Dispatcher struct {
	stream     eventstream.Stream
	consumerID string
	proc       Processor
	batch      BatchProcessor
	batchSize  int
	log        logr.Logger
	metrics    *metrics.Metrics
}

// Option tweaks a Dispatcher.
type Option func(*Dispatcher)

// WithBatchSize caps how many events one poll pulls.
func WithBatchSize(n int) Option {
	return func(d *Dispatcher) { d.batchSize = n }
}

// WithMetrics records processing counts on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// New builds a per-event dispatcher.
func New(stream eventstream.Stream, consumerID string, proc Processor, log logr.Logger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		stream:     stream,
		consumerID: consumerID,
		proc:       proc,
		batchSize:  defaultBatchSize,
		log:        log.WithName("dispatcher").WithValues("consumer", consumerID),
		metrics:    metrics.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// NewBatch builds a batch dispatcher.
func NewBatch(stream eventstream.Stream, consumerID string, batch BatchProcessor, log logr.Logger, opts ...Option) *Dispatcher {
	d := New(stream, consumerID, nil, log, opts...)
	d.batch = batch
	return d
}

// Run polls until ctx is done. An empty poll backs off from 100ms up to 5s;
// any work resets the idle backoff. Retryable failures back off separately,
// capped at 30s, without acknowledging.
func (d *Dispatcher) Run(ctx context.Context) error {
	idle := &backoff.Backoff{Min: 100 * time.Millisecond, Max: 5 * time.Second, Factor: 2, Jitter: true}
	retry := &backoff.Backoff{Min: 500 * time.Millisecond, Max: 30 * time.Second, Factor: 2, Jitter: true}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		events, err := d.stream.Receive(ctx, d.consumerID, d.batchSize)
		if err != nil {
			d.log.Error(err, "failed to receive events")
			if !sleep(ctx, retry.Duration()) {
				return ctx.Err()
			}
			continue
		}
		if len(events) == 0 {
			if !sleep(ctx, idle.Duration()) {
				return ctx.Err()
			}
			continue
		}
		idle.Reset()

		if ok := d.handle(ctx, events); !ok {
			if !sleep(ctx, retry.Duration()) {
				return ctx.Err()
			}
			continue
		}
		retry.Reset()
	}
}

// handle processes one poll batch. It reports false when a retryable failure
// stopped the batch early.
func (d *Dispatcher) handle(ctx context.Context, events []model.Event) bool {
	if d.batch != nil {
		return d.handleBatch(ctx, events)
	}

	for i := range events {
		ev := &events[i]
		err := d.proc.Process(ctx, ev)
		switch {
		case err == nil:
			d.count(ctx, d.metrics.EventsProcessed, "ok")
		case errdefs.IsRetryable(err):
			d.log.Error(err, "event failed, will retry", "event", ev.ID, "modelType", ev.ModelType)
			d.count(ctx, d.metrics.EventsFailed, "retryable")
			return false
		default:
			// Terminal: the input can never succeed, so drop it.
			d.log.Error(err, "event failed terminally, dropping", "event", ev.ID, "modelType", ev.ModelType)
			d.count(ctx, d.metrics.EventsProcessed, "dropped")
		}
		if err := d.stream.Ack(ctx, d.consumerID, ev.ID); err != nil {
			d.log.Error(err, "failed to ack event", "event", ev.ID)
			return false
		}
	}
	return true
}

func (d *Dispatcher) handleBatch(ctx context.Context, events []model.Event) bool {
	err := d.batch.ProcessBatch(ctx, events)
	outcome := "ok"
	switch {
	case err == nil:
	case errdefs.IsRetryable(err):
		d.log.Error(err, "batch failed, will retry", "events", len(events))
		d.count(ctx, d.metrics.EventsFailed, "retryable")
		return false
	default:
		d.log.Error(err, "batch failed terminally, dropping", "events", len(events))
		outcome = "dropped"
	}

	for i := range events {
		if err := d.stream.Ack(ctx, d.consumerID, events[i].ID); err != nil {
			d.log.Error(err, "failed to ack event", "event", events[i].ID)
			return false
		}
		d.count(ctx, d.metrics.EventsProcessed, outcome)
	}
	return true
}

func (d *Dispatcher) count(ctx context.Context, counter metric.Int64Counter, outcome string) {
	counter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("consumer", d.consumerID),
		attribute.String("outcome", outcome)))
}

// sleep waits for dur or ctx, reporting false on cancellation.
func sleep(ctx context.Context, dur time.Duration) bool {
	t := time.NewTimer(dur)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
