// Package metrics provides lock-free counters and latency histograms for
// the portal client.
//
// Counters are stored in cache-line-padded uint64 slots and incremented
// atomically. Histograms use 8 fixed buckets (<=5ms ... +Inf). Both are
// allocation-free on the write path.
//
// This package owns storage only. Metric names live in the root package
// and export (Prometheus, OTel) lives in metrics/export/.
package metrics
