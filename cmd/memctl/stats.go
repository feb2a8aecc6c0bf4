package main

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/joshuapare/memkit/internal/logger"
	"github.com/joshuapare/memkit/mem/bump"
	"github.com/joshuapare/memkit/mem/category"
	"github.com/joshuapare/memkit/mem/handle"
	"github.com/joshuapare/memkit/mem/index"
	"github.com/joshuapare/memkit/mem/pool"
	"github.com/joshuapare/memkit/mem/scoped"
	"github.com/joshuapare/memkit/mem/tracked"
	"github.com/joshuapare/memkit/mem/vmem"
)

var (
	statsObjects   int
	statsBlockSize int
	statsArenaSize int
)

func init() {
	cmd := newStatsCmd()
	cmd.Flags().IntVar(&statsObjects, "objects", 256, "Number of blocks and pool objects to create")
	cmd.Flags().IntVar(&statsBlockSize, "block-size", 512, "Size of each tracked heap block in bytes")
	cmd.Flags().IntVar(&statsArenaSize, "arena-size", 1<<20, "Capacity of the bump and scoped arenas in bytes")
	rootCmd.AddCommand(cmd)
}

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Run a sample workload and show per-category statistics",
		Long: `The stats command runs a representative workload through every allocator
against a private category registry and prints the counters of each category
at the workload's peak, along with process-wide virtual memory totals.

Example:
  memctl stats
  memctl stats --objects 10000 --block-size 64
  memctl stats --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(workloadOptions{
				Objects:   statsObjects,
				BlockSize: statsBlockSize,
				ArenaSize: statsArenaSize,
			})
		},
	}
	return cmd
}

type workloadOptions struct {
	Objects   int
	BlockSize int
	ArenaSize int
}

// StatsReport is the output of the stats command.
type StatsReport struct {
	PageSize   int              `json:"page_size"`
	VMem       vmem.Usage       `json:"vmem"`
	Categories []category.Stats `json:"categories"`
	Pool       PoolReport       `json:"pool"`
}

// PoolReport summarises the object pool part of the workload.
type PoolReport struct {
	Live         int `json:"live"`
	Capacity     int `json:"capacity"`
	StaleHandles int `json:"stale_handles"`
}

const kindSample handle.Kind = 1

type sampleHot struct {
	ID    uint32
	Value uint64
}

type sampleCold struct {
	Label [16]byte
}

func runStats(opts workloadOptions) error {
	report, err := runWorkload(opts)
	if err != nil {
		return err
	}

	if jsonOut {
		return printJSON(report)
	}

	printInfo("\nPage size: %d bytes\n", report.PageSize)
	printInfo("Virtual memory: %s reserved, %s committed\n\n",
		formatBytes(report.VMem.Reserved), formatBytes(report.VMem.Committed))

	printInfo("%s\n", renderCategoryTable(report.Categories))
	printInfo("\nPool: %d live of %d slots, %d stale handles rejected\n",
		report.Pool.Live, report.Pool.Capacity, report.Pool.StaleHandles)
	return nil
}

// runWorkload drives every allocator against a fresh registry and snapshots
// the counters before anything is torn down.
func runWorkload(opts workloadOptions) (*StatsReport, error) {
	if opts.Objects <= 0 || opts.BlockSize <= 0 || opts.ArenaSize <= 0 {
		return nil, fmt.Errorf("objects, block size and arena size must be positive")
	}

	reg := category.NewRegistry()
	var (
		catGeneral = reg.Allocate("General")
		catLarge   = reg.Allocate("Large Blocks")
		catArena   = reg.Allocate("Bump Arena")
		catScratch = reg.Allocate("Scratch")
		catPool    = reg.Allocate("Object Pool")
	)
	ta := tracked.New(tracked.Options{Registry: reg, LargeThreshold: tracked.DefaultLargeThreshold})

	// Tracked heap: allocate, then free every other block.
	printVerbose("tracked: %d blocks of %d bytes\n", opts.Objects, opts.BlockSize)
	blocks := make([]*tracked.Block, 0, opts.Objects)
	defer func() {
		for _, b := range blocks {
			ta.Free(b)
		}
	}()
	for i := range opts.Objects {
		b, err := ta.Alloc(catGeneral, opts.BlockSize, 16)
		if err != nil {
			return nil, fmt.Errorf("tracked alloc: %w", err)
		}
		if i%2 == 1 {
			ta.Free(b)
			continue
		}
		blocks = append(blocks, b)
	}

	large, err := ta.Alloc(catLarge, 2*tracked.DefaultLargeThreshold, 4096)
	if err != nil {
		return nil, fmt.Errorf("large alloc: %w", err)
	}
	defer ta.Free(large)

	// Bump arena: fill half, rewind a quarter, purge the tail.
	printVerbose("bump: %d byte arena\n", opts.ArenaSize)
	arena, err := bump.New(opts.ArenaSize, bump.Options{Registry: reg, Category: catArena})
	if err != nil {
		return nil, err
	}
	defer arena.Release()
	chunk := max(1, arena.Capacity()/64)
	for range 32 {
		if arena.Allocate(chunk, 8) == nil {
			return nil, fmt.Errorf("bump: commit failed at offset %d", arena.Used())
		}
	}
	arena.RewindTo(arena.Used() / 2)
	if err := arena.Purge(); err != nil {
		return nil, err
	}

	// Scoped arena: nested scopes with deleters, fully reclaimed.
	sa, err := scoped.NewArena(opts.ArenaSize, scoped.Options{Registry: reg, Category: catScratch})
	if err != nil {
		return nil, err
	}
	defer sa.Close()
	if err := scratchWork(sa, opts.Objects); err != nil {
		return nil, err
	}

	// Object pool with dense IDs from the index allocator.
	printVerbose("pool: %d objects\n", opts.Objects)
	ids := index.New(opts.Objects)
	p := pool.New[sampleHot, sampleCold](4, pool.Options{
		Allocator: ta,
		Category:  catPool,
		Kind:      kindSample,
		Cold:      true,
	})
	defer p.Close()

	handles := make([]handle.Handle, 0, opts.Objects)
	for i := range opts.Objects {
		id := ids.Allocate()
		if id == index.Invalid {
			return nil, fmt.Errorf("index allocator exhausted after %d ids", i)
		}
		var cold sampleCold
		copy(cold.Label[:], fmt.Sprintf("obj-%d", id))
		handles = append(handles, p.Store(sampleHot{ID: id, Value: uint64(i)}, cold))
	}

	stale := 0
	for i, h := range handles {
		if i%2 == 0 {
			continue
		}
		hot := p.GetHot(h)
		if hot == nil {
			return nil, fmt.Errorf("pool: handle %v did not resolve", h)
		}
		ids.Free(hot.ID)
		p.Remove(h)
		if p.GetHot(h) == nil {
			stale++
		}
	}

	report := &StatsReport{
		PageSize: vmem.PageSize(),
		VMem:     vmem.CurrentUsage(),
		Pool: PoolReport{
			Live:         p.Len(),
			Capacity:     p.Capacity(),
			StaleHandles: stale,
		},
	}
	reg.Each(func(_ category.ID, st category.Stats) bool {
		report.Categories = append(report.Categories, st)
		return true
	})
	return report, nil
}

// scratchWork exercises a scoped arena the way a frame of work would.
func scratchWork(a *scoped.Arena, n int) error {
	outer := a.Scope()
	defer outer.Close()
	outer.Defer(func() { logger.Debug("scratch: frame released", "iterations", n) })

	for i := range n {
		if err := func() error {
			s := a.Scope()
			defer s.Close()
			vals := scoped.AllocSlice[uint64](s, 64)
			if vals == nil {
				return fmt.Errorf("scoped: arena exhausted at iteration %d", i)
			}
			for j := range vals {
				vals[j] = uint64(i * j)
			}
			return nil
		}(); err != nil {
			return err
		}
	}

	if a.Offset() != 0 {
		return fmt.Errorf("scoped: offset %d after nested scopes closed", a.Offset())
	}
	return nil
}

func renderCategoryTable(cats []category.Stats) string {
	re := lipgloss.NewRenderer(stdout)
	if noColor {
		re.SetColorProfile(termenv.Ascii)
	}
	header := re.NewStyle().Bold(true).Padding(0, 1)
	cell := re.NewStyle().Padding(0, 1)
	number := cell.Align(lipgloss.Right)

	rows := make([][]string, 0, len(cats))
	for _, st := range cats {
		rows = append(rows, []string{
			st.Name,
			strconv.FormatInt(st.Allocations, 10),
			formatBytes(st.Bytes),
			strconv.FormatUint(st.TotalAllocs, 10),
			strconv.FormatUint(st.TotalFrees, 10),
		})
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(re.NewStyle().Foreground(lipgloss.Color("8"))).
		Headers("CATEGORY", "LIVE", "BYTES", "ALLOCS", "FREES").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return header
			case col == 0:
				return cell
			default:
				return number
			}
		})
	return t.Render()
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit && n > -unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit || m <= -unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
