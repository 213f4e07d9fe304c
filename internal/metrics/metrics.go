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

// Package metrics holds the OpenTelemetry instruments of the control plane,
// bridged into a Prometheus registry that each binary serves on its metrics
// port.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Metrics carries the instruments shared by the event consumers and the
// gitops writer.
type Metrics struct {
	EventsProcessed metric.Int64Counter
	EventsFailed    metric.Int64Counter
	BatchesWritten  metric.Int64Counter
	PushRetries     metric.Int64Counter
	RenderDuration  metric.Float64Histogram
}

// New builds the instruments on meter.
func New(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}

	var err error
	if m.EventsProcessed, err = meter.Int64Counter("deployplane_events_processed_total",
		metric.WithDescription("Events processed and acknowledged, by consumer and outcome")); err != nil {
		return nil, err
	}
	if m.EventsFailed, err = meter.Int64Counter("deployplane_events_failed_total",
		metric.WithDescription("Events that hit a retryable failure, by consumer")); err != nil {
		return nil, err
	}
	if m.BatchesWritten, err = meter.Int64Counter("deployplane_gitops_batches_total",
		metric.WithDescription("Commits pushed by the gitops writer")); err != nil {
		return nil, err
	}
	if m.PushRetries, err = meter.Int64Counter("deployplane_gitops_push_retries_total",
		metric.WithDescription("Push attempts repeated after a remote conflict")); err != nil {
		return nil, err
	}
	if m.RenderDuration, err = meter.Float64Histogram("deployplane_render_duration_seconds",
		metric.WithDescription("Template render duration per deployment")); err != nil {
		return nil, err
	}
	return m, nil
}

// NewNop returns instruments that record nothing, for tests.
func NewNop() *Metrics {
	m, _ := New(noop.NewMeterProvider().Meter("nop"))
	return m
}

// Handler builds a meter backed by a fresh Prometheus registry and the HTTP
// handler that serves it.
func Handler(service string) (metric.Meter, http.Handler, error) {
	registry := prometheus.NewRegistry()
	exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return nil, nil, err
	}
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	return provider.Meter(service), promhttp.HandlerFor(registry, promhttp.HandlerOpts{}), nil
}
