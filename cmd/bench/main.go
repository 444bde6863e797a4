// Command bench runs a synthetic memoization workload against the cache
// and exposes optional pprof/Prometheus endpoints.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	_ "net/http/pprof" // registers /debug/pprof/* on DefaultServeMux
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/memocache/memo/memo"
	pmet "github.com/memocache/memo/metrics/prom"
	"github.com/memocache/memo/policy"
	"github.com/memocache/memo/policy/twoq"
)

func main() {
	// ---- Flags ----
	var (
		countLimit = flag.Int("count", 100_000, "entry count limit (0 = unlimited)")
		costLimit  = flag.Int64("cost", 0, "total cost limit (0 = unlimited)")
		shards     = flag.Int("shards", 0, "number of shards (0 = auto)")
		polName    = flag.String("policy", "lru", "eviction policy: lru | 2q")

		modeName = flag.String("mode", "exclusive", "fetch mode: exclusive | relaxed")
		workers  = flag.Int("workers", 2*runtime.GOMAXPROCS(0), "number of worker goroutines")
		duration = flag.Duration("duration", 10*time.Second, "benchmark duration")
		workDur  = flag.Duration("work", 0, "simulated producer latency")

		keys  = flag.Int("keys", 1_000_000, "keyspace size (distinct subjects)")
		zipfS = flag.Float64("zipf_s", 1.1, "Zipf s > 1 (skew)")
		zipfV = flag.Float64("zipf_v", 1.0, "Zipf v")
		seed  = flag.Int64("seed", time.Now().UnixNano(), "random seed")

		pprofAddr   = flag.String("pprof", "", "serve pprof at addr (e.g. :6060); empty = disabled")
		metricsAddr = flag.String("http", ":8080", "serve Prometheus metrics at addr")
	)
	flag.Parse()

	mode := memo.Exclusive
	if *modeName == "relaxed" {
		mode = memo.Relaxed
	}

	// ---- pprof server (on DefaultServeMux) ----
	if *pprofAddr != "" {
		go func() {
			log.Printf("pprof: serving at %s", *pprofAddr)
			log.Println(http.ListenAndServe(*pprofAddr, nil))
		}()
	}

	// ---- Prometheus metrics (on DefaultServeMux) ----
	metrics := pmet.New(nil, "memo", "bench", nil)
	http.Handle("/metrics", promhttp.Handler())
	go func() {
		log.Printf("metrics: serving at %s", *metricsAddr)
		log.Println(http.ListenAndServe(*metricsAddr, nil))
	}()

	// ---- Cache ----
	var pol policy.Policy[memo.Key[int, string], int]
	if *polName == "2q" {
		// Size the 2Q queues per shard.
		sh := *shards
		if sh <= 0 {
			sh = runtime.GOMAXPROCS(0) * 2
		}
		perShard := (*countLimit + sh - 1) / sh
		if perShard < 4 {
			perShard = 4
		}
		pol = twoq.New[memo.Key[int, string], int](perShard/4, perShard/2)
	}

	c := memo.New[memo.Key[int, string], int](memo.Options[memo.Key[int, string], int]{
		CountLimit: *countLimit,
		CostLimit:  *costLimit,
		Cost: func(int) int {
			return 1
		},
		Shards:  *shards,
		Policy:  pol,
		Metrics: metrics,
	})
	defer func() { _ = c.Close() }()

	// ---- Workload ----
	log.Printf("bench: mode=%s workers=%d keys=%d count=%d policy=%s duration=%v",
		mode, *workers, *keys, *countLimit, *polName, *duration)

	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	var ops atomic.Int64
	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < *workers; w++ {
		g.Go(func() error {
			r := rand.New(rand.NewSource(*seed + int64(w)*7919))
			zipf := rand.NewZipf(r, *zipfS, *zipfV, uint64(*keys-1))
			for ctx.Err() == nil {
				subject := int(zipf.Uint64())
				k := memo.NewKey(subject, "square")
				_, err := c.Fetch(k, mode, func() (int, error) {
					if *workDur > 0 {
						time.Sleep(*workDur)
					}
					return subject * subject, nil
				})
				if err != nil {
					return err
				}
				ops.Add(1)
			}
			return nil
		})
	}
	start := time.Now()
	if err := g.Wait(); err != nil {
		log.Fatalf("worker failed: %v", err)
	}
	elapsed := time.Since(start)

	// ---- Report ----
	st := c.Stats()
	total := ops.Load()
	fmt.Printf("ops:        %d (%.0f ops/s)\n", total, float64(total)/elapsed.Seconds())
	fmt.Printf("hit rate:   %.2f%% (hits=%d misses=%d)\n", 100*st.HitRate(), st.Hits, st.Misses)
	fmt.Printf("produces:   %d\n", st.Produces)
	fmt.Printf("evictions:  %d\n", st.Evictions)
	fmt.Printf("resident:   %d entries, cost=%d\n", st.Entries, st.Cost)
}
