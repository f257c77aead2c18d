/*
Copyright (C) 2026 Opsfloor Labs

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// OptimizerPassesTotal counts whole-day optimizer passes.
	OptimizerPassesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lineplan_optimizer_passes_total",
		Help: "Number of day optimizer passes executed.",
	})

	// OptimizerRelocationsTotal counts runs given a new slot by the optimizer.
	OptimizerRelocationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lineplan_optimizer_relocations_total",
		Help: "Number of runs relocated by the day optimizer.",
	})

	// OptimizerUnoptimizedTotal counts runs the optimizer could not place.
	OptimizerUnoptimizedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lineplan_optimizer_unoptimized_total",
		Help: "Number of runs left unoptimized by the day optimizer.",
	})

	// OptimizerPassDuration observes wall time of optimizer passes.
	OptimizerPassDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "lineplan_optimizer_pass_duration_seconds",
		Help:    "Duration of day optimizer passes.",
		Buckets: prometheus.DefBuckets,
	})

	// ClockTicksTotal counts run status clock ticks.
	ClockTicksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lineplan_runclock_ticks_total",
		Help: "Number of run status clock ticks.",
	})

	// ClockTransitionsTotal counts committed status transitions by target status.
	ClockTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lineplan_runclock_transitions_total",
		Help: "Number of run status transitions committed by the clock.",
	}, []string{"to_status"})

	// MoveValidationsTotal counts interactive move validations by verdict reason.
	MoveValidationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lineplan_move_validations_total",
		Help: "Number of interactive move validations by outcome.",
	}, []string{"reason"})

	// CommitFailuresTotal counts persistence failures by caller.
	CommitFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lineplan_commit_failures_total",
		Help: "Number of failed run commits.",
	}, []string{"source"})

	// APIRequestsTotal counts HTTP API requests.
	APIRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lineplan_api_requests_total",
		Help: "Number of HTTP API requests.",
	}, []string{"method", "endpoint", "status"})

	// APIRequestDuration observes HTTP API request latency.
	APIRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lineplan_api_request_duration_seconds",
		Help:    "Duration of HTTP API requests.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint", "status"})

	// APIActiveConnections gauges in-flight HTTP requests.
	APIActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lineplan_api_active_connections",
		Help: "In-flight HTTP API requests.",
	})
)

// Handler exposes the prometheus metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
