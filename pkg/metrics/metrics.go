// Package metrics exposes the console's Prometheus instruments. Everything
// registers against the default registry; pkg/api serves it at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ChainVerifications counts custody chain verifications by outcome
	// ("valid" or "invalid"). Invalid verifications are the signal an
	// operator alert must be wired to.
	ChainVerifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "warden_chain_verifications_total",
		Help: "Custody chain verifications by result.",
	}, []string{"result"})

	// ManifestsBuilt counts forensic export manifests generated.
	ManifestsBuilt = promauto.NewCounter(prometheus.CounterOpts{
		Name: "warden_manifests_built_total",
		Help: "Forensic export manifests built.",
	})

	// PurgeDeleted and PurgeFailed track purge execution outcomes.
	PurgeDeleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "warden_purge_deleted_total",
		Help: "Evidence records deleted by purge execution.",
	})
	PurgeFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "warden_purge_failed_total",
		Help: "Evidence record deletions that failed.",
	})

	// PurgePlannedDeletes is the delete count of the most recent plan, set
	// by the purge worker so retention drift is visible before execution.
	PurgePlannedDeletes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "warden_purge_planned_deletes",
		Help: "Delete-eligible records in the latest purge plan.",
	})

	// CommandsDispatched counts device commands by command name and outcome.
	CommandsDispatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "warden_commands_dispatched_total",
		Help: "Device commands dispatched by command and status.",
	}, []string{"command", "status"})

	// ThreatEvents counts classifier events by category and severity.
	ThreatEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "warden_threat_events_total",
		Help: "Threat events received from the classifier.",
	}, []string{"category", "severity"})
)
