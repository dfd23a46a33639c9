package session

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	loginsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_logins_total",
			Help: "Login attempts by result",
		},
		[]string{"result"},
	)

	registrationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_registrations_total",
			Help: "Registration attempts by result",
		},
		[]string{"result"},
	)

	logoutsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "session_logouts_total",
			Help: "Logout requests",
		},
	)

	identityFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_identity_fetches_total",
			Help: "Identity fetches against the account service by result",
		},
		[]string{"result"},
	)

	guardDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_guard_decisions_total",
			Help: "Route guard decisions by outcome",
		},
		[]string{"decision"},
	)
)
