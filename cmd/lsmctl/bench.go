package main

import (
	"context"
	"fmt"
	"io"
	"slices"
	"sync"
	"time"

	"lsmstore/pkg/store"

	"github.com/spf13/cobra"
)

type BenchmarkResult struct {
	TotalOps      int
	SuccessfulOps int
	FailedOps     int
	Duration      time.Duration
	OpsPerSec     float64
	AvgLatency    time.Duration
	MinLatency    time.Duration
	MaxLatency    time.Duration
	P50Latency    time.Duration
	P99Latency    time.Duration
}

func newBenchCmd(a *app) *cobra.Command {
	var ops, concurrency int

	benchCmd := &cobra.Command{
		Use:   "bench",
		Short: "Measure write and read throughput against the store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if ops < 1 || concurrency < 1 {
				return fmt.Errorf("--ops and --concurrency must be positive")
			}
			out := cmd.OutOrStdout()
			return a.withStore(func(s *store.Store) error {
				ctx := cmd.Context()

				fmt.Fprintf(out, "Writes (%d operations, %d goroutines)\n", ops, concurrency)
				printResult(out, runBenchmark(ctx, ops, concurrency, func(g, j int) error {
					return s.PutString(benchKey(g, j), fmt.Sprintf("bench_value_%d_%d", g, j))
				}))

				fmt.Fprintf(out, "\nReads (%d operations, %d goroutines)\n", ops, concurrency)
				printResult(out, runBenchmark(ctx, ops, concurrency, func(g, j int) error {
					_, found, err := s.GetString(benchKey(g, j))
					if err == nil && !found {
						err = errNotFound
					}
					return err
				}))
				return ctx.Err()
			})
		},
	}

	benchCmd.Flags().IntVar(&ops, "ops", 10_000, "operations per phase")
	benchCmd.Flags().IntVar(&concurrency, "concurrency", 4, "number of goroutines")
	return benchCmd
}

func benchKey(goroutine, op int) string {
	return fmt.Sprintf("bench_key_%d_%d", goroutine, op)
}

// runBenchmark splits totalOps over concurrency goroutines. Goroutine g runs
// op(g, 0..n-1), so two phases with the same shape touch the same keys.
func runBenchmark(ctx context.Context, totalOps, concurrency int, op func(g, j int) error) BenchmarkResult {
	start := time.Now()
	var wg sync.WaitGroup
	var mu sync.Mutex

	successful := 0
	failed := 0
	latencies := make([]time.Duration, 0, totalOps)

	opsPerGoroutine := totalOps / concurrency
	remainder := totalOps % concurrency

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(goroutineID int) {
			defer wg.Done()

			n := opsPerGoroutine
			if goroutineID < remainder {
				n++
			}

			for j := 0; j < n && ctx.Err() == nil; j++ {
				opStart := time.Now()
				err := op(goroutineID, j)
				latency := time.Since(opStart)

				mu.Lock()
				if err == nil {
					successful++
				} else {
					failed++
				}
				latencies = append(latencies, latency)
				mu.Unlock()
			}
		}(i)
	}

	wg.Wait()
	duration := time.Since(start)

	slices.Sort(latencies)
	var minLat, maxLat, sum time.Duration
	for _, lat := range latencies {
		sum += lat
	}
	var avgLatency time.Duration
	if len(latencies) > 0 {
		minLat = latencies[0]
		maxLat = latencies[len(latencies)-1]
		avgLatency = sum / time.Duration(len(latencies))
	}

	return BenchmarkResult{
		TotalOps:      len(latencies),
		SuccessfulOps: successful,
		FailedOps:     failed,
		Duration:      duration,
		OpsPerSec:     float64(successful) / duration.Seconds(),
		AvgLatency:    avgLatency,
		MinLatency:    minLat,
		MaxLatency:    maxLat,
		P50Latency:    percentile(latencies, 50),
		P99Latency:    percentile(latencies, 99),
	}
}

// percentile uses the nearest-rank method on sorted latencies.
func percentile(sorted []time.Duration, p int) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	rank := (p*len(sorted) + 99) / 100
	if rank < 1 {
		rank = 1
	}
	return sorted[rank-1]
}

func printResult(w io.Writer, result BenchmarkResult) {
	fmt.Fprintf(w, "  Total Operations: %d\n", result.TotalOps)
	fmt.Fprintf(w, "  Successful: %d\n", result.SuccessfulOps)
	fmt.Fprintf(w, "  Failed: %d\n", result.FailedOps)
	fmt.Fprintf(w, "  Duration: %v\n", result.Duration)
	fmt.Fprintf(w, "  Operations/sec: %.2f\n", result.OpsPerSec)
	fmt.Fprintf(w, "  Avg Latency: %v\n", result.AvgLatency)
	fmt.Fprintf(w, "  Min Latency: %v\n", result.MinLatency)
	fmt.Fprintf(w, "  Max Latency: %v\n", result.MaxLatency)
	fmt.Fprintf(w, "  P50 Latency: %v\n", result.P50Latency)
	fmt.Fprintf(w, "  P99 Latency: %v\n", result.P99Latency)
}
