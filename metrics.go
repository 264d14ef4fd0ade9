package goPortal

import (
	"time"

	"github.com/MrEthical07/goPortal/internal/metrics"
)

// MetricID defines a public type used by goPortal APIs.
//
// MetricID instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricID uint16

const (
	// MetricLoginSuccess counts completed logins.
	MetricLoginSuccess MetricID = iota
	// MetricLoginFailure counts rejected logins.
	MetricLoginFailure
	// MetricRegisterSuccess counts completed registrations.
	MetricRegisterSuccess
	// MetricRegisterFailure counts rejected registrations.
	MetricRegisterFailure
	// MetricLogout counts every session end, whatever its reason.
	MetricLogout
	// MetricLogoutInactive counts sessions ended for inactivity.
	MetricLogoutInactive
	// MetricRefreshSuccess counts refresh calls that produced a token.
	MetricRefreshSuccess
	// MetricRefreshFailure counts refresh calls that failed.
	MetricRefreshFailure
	// MetricRequestReplayed counts requests re-sent after a 401.
	MetricRequestReplayed
	// MetricRequestRejected counts requests failed because their refresh failed.
	MetricRequestRejected
	// MetricSessionRestored counts sessions resumed from the store.
	MetricSessionRestored
	// MetricProfileUpdated counts profile updates.
	MetricProfileUpdated
	// MetricPasswordChanged counts password changes.
	MetricPasswordChanged
	// MetricSyncApplied counts identity changes adopted from other clients.
	MetricSyncApplied
	// MetricActivityRecorded counts activity writes.
	MetricActivityRecorded
	// MetricRedirectRejected counts unsafe login redirect targets.
	MetricRedirectRejected
	// MetricRefreshLatency is the refresh call latency histogram.
	MetricRefreshLatency
	metricIDCount
)

// Metrics defines a public type used by goPortal APIs.
//
// Metrics instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Metrics struct {
	reg *metrics.Registry
}

// MetricsSnapshot defines a public type used by goPortal APIs.
//
// MetricsSnapshot instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics describes the newmetrics operation and its observable behavior.
//
// NewMetrics never fails; a disabled configuration yields a Metrics that ignores writes.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{reg: metrics.New(int(metricIDCount), cfg.Enabled, cfg.EnableLatencyHistograms)}
}

// Enabled reports whether counters are recorded.
func (m *Metrics) Enabled() bool {
	return m != nil && m.reg.Enabled()
}

// LatencyEnabled reports whether histograms are recorded.
func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.reg.LatencyEnabled()
}

// Inc describes the inc operation and its observable behavior.
//
// Inc is lock-free and safe for concurrent use.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || id >= metricIDCount {
		return
	}
	m.reg.Inc(int(id))
}

// Observe records a latency. Only MetricRefreshLatency carries a histogram.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || id != MetricRefreshLatency {
		return
	}
	m.reg.Observe(int(id), d)
}

// Value describes the value operation and its observable behavior.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return m.reg.Value(int(id))
}

// Snapshot describes the snapshot operation and its observable behavior.
//
// Snapshot returns empty maps when metrics are disabled.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if !m.Enabled() {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 1),
	}
	for id := MetricID(0); id < metricIDCount; id++ {
		if id == MetricRefreshLatency {
			continue
		}
		s.Counters[id] = m.reg.Value(int(id))
	}
	if m.LatencyEnabled() {
		s.Histograms[MetricRefreshLatency] = m.reg.Buckets(int(MetricRefreshLatency))
	}
	return s
}
