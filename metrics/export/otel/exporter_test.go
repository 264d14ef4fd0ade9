package otel

import (
	"context"
	"sync"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	goPortal "github.com/MrEthical07/goPortal"
)

type fakeSource struct {
	mu       sync.RWMutex
	snapshot goPortal.MetricsSnapshot
	dropped  uint64
}

func (f *fakeSource) MetricsSnapshot() goPortal.MetricsSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := goPortal.MetricsSnapshot{
		Counters:   make(map[goPortal.MetricID]uint64, len(f.snapshot.Counters)),
		Histograms: make(map[goPortal.MetricID][]uint64, len(f.snapshot.Histograms)),
	}
	for k, v := range f.snapshot.Counters {
		out.Counters[k] = v
	}
	for k, buckets := range f.snapshot.Histograms {
		out.Histograms[k] = append([]uint64(nil), buckets...)
	}
	return out
}

func (f *fakeSource) EventsDropped() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.dropped
}

func newMeter() (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	reader := sdkmetric.NewManualReader()
	return reader, sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
}

// int64Value returns the single data point of the named sum or gauge.
func int64Value(t *testing.T, rm metricdata.ResourceMetrics, name string) int64 {
	t.Helper()
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				return data.DataPoints[0].Value
			case metricdata.Gauge[int64]:
				return data.DataPoints[0].Value
			default:
				t.Fatalf("%s has unexpected data %T", name, m.Data)
			}
		}
	}
	t.Fatalf("metric %s not collected", name)
	return 0
}

func TestExporterRegistersAndCollects(t *testing.T) {
	reader, provider := newMeter()
	src := &fakeSource{
		snapshot: goPortal.MetricsSnapshot{
			Counters: map[goPortal.MetricID]uint64{
				goPortal.MetricLoginSuccess:    3,
				goPortal.MetricRequestReplayed: 5,
			},
			Histograms: map[goPortal.MetricID][]uint64{
				goPortal.MetricRefreshLatency: {1, 1, 1, 1, 1, 1, 1, 1},
			},
		},
		dropped: 1,
	}

	exp, err := NewOTelExporterFromSource(provider.Meter("portal-test"), src)
	if err != nil {
		t.Fatalf("NewOTelExporterFromSource failed: %v", err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	}()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if got := int64Value(t, rm, "portal_login_success_total"); got != 3 {
		t.Fatalf("login success = %d", got)
	}
	if got := int64Value(t, rm, "portal_request_replayed_total"); got != 5 {
		t.Fatalf("request replayed = %d", got)
	}
	if got := int64Value(t, rm, "portal_refresh_latency_seconds_bucket_le_0_025"); got != 3 {
		t.Fatalf("cumulative bucket = %d", got)
	}
	if got := int64Value(t, rm, "portal_refresh_latency_seconds_count"); got != 8 {
		t.Fatalf("histogram count = %d", got)
	}
	if got := int64Value(t, rm, "portal_events_dropped_total"); got != 1 {
		t.Fatalf("events dropped = %d", got)
	}
}

func TestExporterRejectsNilInputs(t *testing.T) {
	_, provider := newMeter()
	if _, err := NewOTelExporterFromSource(provider.Meter("portal-test"), nil); err != ErrNilSource {
		t.Fatalf("expected ErrNilSource, got %v", err)
	}
	if _, err := NewOTelExporter(provider.Meter("portal-test"), nil); err != ErrNilSource {
		t.Fatalf("expected ErrNilSource, got %v", err)
	}
	if _, err := NewOTelExporterFromSource(nil, &fakeSource{}); err != ErrNilMeter {
		t.Fatalf("expected ErrNilMeter, got %v", err)
	}
}

func TestExporterConcurrentCollectNoPanic(t *testing.T) {
	reader, provider := newMeter()
	src := &fakeSource{
		snapshot: goPortal.MetricsSnapshot{
			Counters:   map[goPortal.MetricID]uint64{goPortal.MetricLoginSuccess: 1},
			Histograms: map[goPortal.MetricID][]uint64{goPortal.MetricRefreshLatency: {1, 0, 0, 0, 0, 0, 0, 0}},
		},
	}

	exp, err := NewOTelExporterFromSource(provider.Meter("portal-test"), src)
	if err != nil {
		t.Fatalf("NewOTelExporterFromSource failed: %v", err)
	}
	defer func() { _ = exp.Close() }()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(v uint64) {
			defer wg.Done()
			src.mu.Lock()
			src.snapshot.Counters[goPortal.MetricLoginSuccess] = v
			src.mu.Unlock()

			var rm metricdata.ResourceMetrics
			_ = reader.Collect(context.Background(), &rm)
		}(uint64(i + 1))
	}
	wg.Wait()
}
