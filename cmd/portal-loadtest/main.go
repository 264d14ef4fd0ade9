// Command portal-loadtest measures the client's request path and its
// single-flight token refresh under concurrency.
//
// It serves the portal API in-process from the embedded catalog, signs one
// live-mode client in and runs two phases: steady authenticated reads, and
// expiry rounds in which the server clock jumps past the access-token
// lifetime before every caller fires at once. Each expiry round must cost
// exactly one refresh call.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	goPortal "github.com/MrEthical07/goPortal"
	"github.com/MrEthical07/goPortal/model"
	"github.com/MrEthical07/goPortal/offline"
	"github.com/MrEthical07/goPortal/stubserver"
)

const refreshRoute = "POST " + stubserver.DefaultPrefix + "/auth/token/refresh"

func main() {
	var (
		concurrency = flag.Int("concurrency", 64, "number of concurrent callers")
		ops         = flag.Int("ops", 5000, "authenticated reads in the steady phase")
		rounds      = flag.Int("rounds", 20, "token expiry rounds")
		latency     = flag.Duration("latency", 0, "artificial server delay per call")
		redisAddr   = flag.String("redis-addr", "", "redis address for the session store; if empty, REDIS_ADDR env or miniredis is used")
	)
	flag.Parse()

	if *concurrency <= 0 || *ops <= 0 || *rounds <= 0 {
		fmt.Fprintln(os.Stderr, "concurrency, ops, and rounds must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		rdb     redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		rdb = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
		cleanup = func() {
			_ = rdb.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", mr.Addr())
	} else {
		rdb = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() { _ = rdb.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	serverClock := clockwork.NewFakeClock()
	backend, err := offline.Open(ctx, offline.Config{
		DSN:   "file:" + uuid.NewString() + "?mode=memory&cache=shared",
		Clock: serverClock,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "open catalog: %v\n", err)
		os.Exit(1)
	}
	defer backend.Close()

	stub := stubserver.New(backend, stubserver.Options{Latency: *latency})
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		fmt.Fprintf(os.Stderr, "listen: %v\n", err)
		os.Exit(1)
	}
	srv := &http.Server{Handler: stub, ReadHeaderTimeout: 5 * time.Second}
	go func() { _ = srv.Serve(ln) }()
	defer srv.Close()

	cfg := goPortal.DefaultConfig()
	cfg.API.BaseURL = "http://" + ln.Addr().String()
	cfg.Storage.Backend = goPortal.StorageRedis
	cfg.Storage.Namespace = "loadtest-" + uuid.NewString()
	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = true

	client, err := goPortal.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithLogger(zap.NewNop()).
		WithHTTPClient(&http.Client{Transport: &http.Transport{MaxIdleConnsPerHost: *concurrency}}).
		Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "build client: %v\n", err)
		os.Exit(1)
	}
	defer client.Close()

	if _, err := client.Login(ctx, model.Credentials{Email: "client@realestate.com", Password: "Client123!"}); err != nil {
		fmt.Fprintf(os.Stderr, "login: %v\n", err)
		os.Exit(1)
	}

	steady := runSteadyPhase(ctx, client, *ops, *concurrency)
	expiry := runExpiryPhase(ctx, client, serverClock, *rounds, *concurrency)

	snap := client.MetricsSnapshot()
	refreshes := stub.Hits(refreshRoute)

	fmt.Println("---- results ----")
	printStats("steady", steady)
	printStats("expiry", expiry)
	fmt.Printf("refresh calls=%d rounds=%d replayed=%d rejected=%d\n",
		refreshes,
		*rounds,
		snap.Counters[goPortal.MetricRequestReplayed],
		snap.Counters[goPortal.MetricRequestRejected],
	)
	if refreshes != *rounds {
		fmt.Fprintf(os.Stderr, "expected one refresh per round, got %d for %d rounds\n", refreshes, *rounds)
		os.Exit(1)
	}
}

func runSteadyPhase(ctx context.Context, client *goPortal.Client, ops, concurrency int) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				_, err := client.DataSource().CurrentUser(ctx)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
}

// runExpiryPhase expires the access token on the server, then releases
// every caller at once so they all meet the 401 together.
func runExpiryPhase(ctx context.Context, client *goPortal.Client, serverClock *clockwork.FakeClock, rounds, concurrency int) phaseStats {
	var (
		failures  int64
		latencies = make([]time.Duration, 0, rounds*concurrency)
		mu        sync.Mutex
		total     time.Duration
	)

	for r := 0; r < rounds; r++ {
		serverClock.Advance(16 * time.Minute)

		var wg sync.WaitGroup
		release := make(chan struct{})
		for w := 0; w < concurrency; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-release
				t0 := time.Now()
				_, err := client.DataSource().CurrentUser(ctx)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}()
		}
		start := time.Now()
		close(release)
		wg.Wait()
		total += time.Since(start)
	}
	return computeStats(total, latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	return samples[(len(samples)-1)*p/100]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
