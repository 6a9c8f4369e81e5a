// Package metrics exposes prometheus counters for scheduling outcomes.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "intro_scheduler",
			Name:      "runs_total",
			Help:      "Scheduling runs started, by mode.",
		},
		[]string{"mode"},
	)

	BookingsSucceeded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "intro_scheduler",
			Name:      "bookings_succeeded_total",
			Help:      "Meetings successfully booked, by mode.",
		},
		[]string{"mode"},
	)

	BookingsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "intro_scheduler",
			Name:      "bookings_failed_total",
			Help:      "Meetings that could not be booked, by mode.",
		},
		[]string{"mode"},
	)

	DeadlineTruncations = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "intro_scheduler",
			Name:      "deadline_truncations_total",
			Help:      "Runs cut short by the hard deadline.",
		},
	)

	NotifyFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "intro_scheduler",
			Name:      "notify_failures_total",
			Help:      "Notifications dropped after exhausting retries.",
		},
	)
)
