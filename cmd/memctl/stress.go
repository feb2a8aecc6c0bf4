package main

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/joshuapare/memkit/internal/logger"
	"github.com/joshuapare/memkit/mem/category"
	"github.com/joshuapare/memkit/mem/index"
	"github.com/joshuapare/memkit/mem/pool"
	"github.com/joshuapare/memkit/mem/tracked"
)

var (
	stressGoroutines int
	stressOps        int
	stressCapacity   int
)

func init() {
	cmd := newStressCmd()
	cmd.Flags().IntVarP(&stressGoroutines, "goroutines", "g", 8, "Number of concurrent workers")
	cmd.Flags().IntVarP(&stressOps, "ops", "n", 10000, "Operations per worker")
	cmd.Flags().IntVar(&stressCapacity, "capacity", 64, "Index allocator capacity")
	rootCmd.AddCommand(cmd)
}

func newStressCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stress",
		Short: "Hammer the index allocator and object pool from many goroutines",
		Long: `The stress command runs concurrent allocate/free traffic against the
lock-free index allocator and store/resolve/remove traffic against the object
pool, checking that no index is handed out twice, that every handle resolves
to the value stored under it, and that pool storage is fully returned.

Example:
  memctl stress
  memctl stress -g 32 -n 100000 --capacity 16
  memctl stress --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStress(cmd.Context(), stressOptions{
				Goroutines: stressGoroutines,
				Ops:        stressOps,
				Capacity:   stressCapacity,
			})
		},
	}
	return cmd
}

type stressOptions struct {
	Goroutines int
	Ops        int
	Capacity   int
}

// StressReport is the output of the stress command.
type StressReport struct {
	Goroutines     int           `json:"goroutines"`
	OpsPerWorker   int           `json:"ops_per_worker"`
	IndexAllocs    uint64        `json:"index_allocs"`
	IndexExhausted uint64        `json:"index_exhausted"`
	PoolStores     uint64        `json:"pool_stores"`
	PoolCapacity   int           `json:"pool_capacity"`
	Elapsed        time.Duration `json:"elapsed_ns"`
}

type stressItem struct {
	Worker uint32
	Seq    uint32
}

func runStress(ctx context.Context, opts stressOptions) error {
	report, err := stress(ctx, opts)
	if err != nil {
		return err
	}
	if jsonOut {
		return printJSON(report)
	}
	printInfo("\nStress run: %d workers x %d ops in %s\n", report.Goroutines, report.OpsPerWorker, report.Elapsed)
	printInfo("  index: %d allocations, %d empty results (capacity %d)\n",
		report.IndexAllocs, report.IndexExhausted, opts.Capacity)
	printInfo("  pool:  %d stores, grew to %d slots\n", report.PoolStores, report.PoolCapacity)
	printInfo("OK\n")
	return nil
}

// stress runs the workers and returns the first invariant violation found.
func stress(ctx context.Context, opts stressOptions) (*StressReport, error) {
	if opts.Goroutines <= 0 || opts.Ops <= 0 || opts.Capacity <= 0 {
		return nil, fmt.Errorf("goroutines, ops and capacity must be positive")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	reg := category.NewRegistry()
	catPool := reg.Allocate("Stress Pool")
	ta := tracked.New(tracked.Options{Registry: reg, LargeThreshold: tracked.DefaultLargeThreshold})

	ids := index.New(opts.Capacity)
	owned := make([]atomic.Bool, opts.Capacity)
	p := pool.NewHot[stressItem](1, pool.Options{Allocator: ta, Category: catPool})

	var allocs, exhausted, stores atomic.Uint64
	start := time.Now()

	g, ctx := errgroup.WithContext(ctx)
	for w := range opts.Goroutines {
		g.Go(func() error {
			for n := range opts.Ops {
				if err := ctx.Err(); err != nil {
					return err
				}

				i := ids.Allocate()
				if i == index.Invalid {
					exhausted.Add(1)
				} else {
					if !owned[i].CompareAndSwap(false, true) {
						return fmt.Errorf("index %d handed out twice", i)
					}
					allocs.Add(1)
					owned[i].Store(false)
					ids.Free(i)
				}

				want := stressItem{Worker: uint32(w), Seq: uint32(n)}
				h := p.StoreHot(want)
				stores.Add(1)
				got, ok := p.LoadHot(h)
				if !ok || got != want {
					return fmt.Errorf("pool handle %v resolved to %+v (ok=%t), want %+v", h, got, ok, want)
				}
				if !p.Remove(h) {
					return fmt.Errorf("pool handle %v could not be removed", h)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		p.Close()
		return nil, err
	}

	report := &StressReport{
		Goroutines:     opts.Goroutines,
		OpsPerWorker:   opts.Ops,
		IndexAllocs:    allocs.Load(),
		IndexExhausted: exhausted.Load(),
		PoolStores:     stores.Load(),
		PoolCapacity:   p.Capacity(),
		Elapsed:        time.Since(start),
	}

	if n := p.Len(); n != 0 {
		p.Close()
		return nil, fmt.Errorf("pool still holds %d objects after every handle was removed", n)
	}
	p.Close()
	if st := reg.Stats(catPool); st.Allocations != 0 || st.Bytes != 0 {
		return nil, fmt.Errorf("pool storage leaked: %d blocks, %d bytes", st.Allocations, st.Bytes)
	}

	// Every index must be back on the free list.
	for range opts.Capacity {
		if ids.Allocate() == index.Invalid {
			return nil, fmt.Errorf("index allocator lost indices")
		}
	}
	if ids.Allocate() != index.Invalid {
		return nil, fmt.Errorf("index allocator handed out more than its capacity")
	}

	logger.Debug("stress: done", "workers", opts.Goroutines, "ops", opts.Ops, "elapsed", report.Elapsed)
	return report, nil
}
