// Package internaldefs holds the metric names and bucket bounds shared by
// the exporters, so Prometheus and OTel expose identical series.
//
// This package performs no I/O.
package internaldefs
