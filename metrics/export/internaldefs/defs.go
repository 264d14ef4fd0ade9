package internaldefs

import (
	goPortal "github.com/MrEthical07/goPortal"
)

// CounterDef names one exported counter.
type CounterDef struct {
	ID   goPortal.MetricID
	Name string
	Help string
}

// HistogramDef names one exported latency histogram.
type HistogramDef struct {
	ID   goPortal.MetricID
	Name string
	Help string
}

// EventsDroppedName is the counter for session events lost to a full buffer.
const EventsDroppedName = "portal_events_dropped_total"

// EventsDroppedHelp is the help text of EventsDroppedName.
const EventsDroppedHelp = "Session events dropped due to dispatcher backpressure."

// CounterDefs lists every counter in exposition order.
var CounterDefs = []CounterDef{
	{ID: goPortal.MetricLoginSuccess, Name: "portal_login_success_total", Help: "Completed logins."},
	{ID: goPortal.MetricLoginFailure, Name: "portal_login_failure_total", Help: "Rejected logins."},
	{ID: goPortal.MetricRegisterSuccess, Name: "portal_register_success_total", Help: "Completed registrations."},
	{ID: goPortal.MetricRegisterFailure, Name: "portal_register_failure_total", Help: "Rejected registrations."},
	{ID: goPortal.MetricLogout, Name: "portal_logout_total", Help: "Ended sessions, whatever the reason."},
	{ID: goPortal.MetricLogoutInactive, Name: "portal_logout_inactive_total", Help: "Sessions ended for inactivity."},
	{ID: goPortal.MetricRefreshSuccess, Name: "portal_refresh_success_total", Help: "Refresh calls that produced a token."},
	{ID: goPortal.MetricRefreshFailure, Name: "portal_refresh_failure_total", Help: "Failed refresh calls."},
	{ID: goPortal.MetricRequestReplayed, Name: "portal_request_replayed_total", Help: "Requests re-sent after a token refresh."},
	{ID: goPortal.MetricRequestRejected, Name: "portal_request_rejected_total", Help: "Requests failed because their refresh failed."},
	{ID: goPortal.MetricSessionRestored, Name: "portal_session_restored_total", Help: "Sessions resumed from the store."},
	{ID: goPortal.MetricProfileUpdated, Name: "portal_profile_updated_total", Help: "Profile updates."},
	{ID: goPortal.MetricPasswordChanged, Name: "portal_password_changed_total", Help: "Password changes."},
	{ID: goPortal.MetricSyncApplied, Name: "portal_sync_applied_total", Help: "Identity changes adopted from other clients."},
	{ID: goPortal.MetricActivityRecorded, Name: "portal_activity_recorded_total", Help: "Activity timestamps written."},
	{ID: goPortal.MetricRedirectRejected, Name: "portal_redirect_rejected_total", Help: "Unsafe login redirect targets."},
}

// HistogramDefs lists every histogram in exposition order.
var HistogramDefs = []HistogramDef{
	{ID: goPortal.MetricRefreshLatency, Name: "portal_refresh_latency_seconds", Help: "Token refresh latency histogram."},
}

// HistogramBounds are the upper bounds of the eight latency buckets.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix spells HistogramBounds for instrument names.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets pads or truncates raw to eight buckets.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
