// Package prometheus renders portal client metrics in Prometheus text
// exposition format.
//
// [NewPrometheusExporter] reads a [goPortal.Client] and exposes an
// [http.Handler]. Counters are named portal_*_total; the single histogram
// is portal_refresh_latency_seconds.
//
// The exporter registers nothing globally. Callers mount the Handler.
package prometheus
