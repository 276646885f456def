// memsim runs a demonstration simulation of the memory hierarchy: a CPU
// actor and a DMA actor share one cache, region table, and DRAM
// controller. Counters are printed when both actors finish.
package main

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/rowbuf/memsim/datarecording"
	"github.com/rowbuf/memsim/device/timer"
	"github.com/rowbuf/memsim/mem"
	"github.com/rowbuf/memsim/mem/cache"
	"github.com/rowbuf/memsim/mem/dram"
	"github.com/rowbuf/memsim/mem/region"
	"github.com/rowbuf/memsim/monitoring"
)

type config struct {
	numChannel int
	numRank    int
	numBank    int
	numRow     int
	numCol     int

	cacheSize   int
	blockSize   int
	assoc       int
	replacement string
	writePolicy string

	cpuAccesses int
	dmaBytes    int
	dmaDelay    time.Duration

	monitorPort int
	openBrowser bool
	traceDB     string
}

func main() {
	// A .env file can pre-set any MEMSIM_* default; flags win.
	_ = godotenv.Load()

	cfg := config{}

	rootCmd := &cobra.Command{
		Use:   "memsim",
		Short: "A memory hierarchy simulator",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run a CPU+DMA simulation over the memory hierarchy",
		RunE: func(_ *cobra.Command, _ []string) error {
			return run(cfg)
		},
	}

	flags := runCmd.Flags()
	flags.IntVar(&cfg.numChannel, "channels", envInt("MEMSIM_CHANNELS", 1),
		"number of DRAM channels")
	flags.IntVar(&cfg.numRank, "ranks", envInt("MEMSIM_RANKS", 2),
		"ranks per channel")
	flags.IntVar(&cfg.numBank, "banks", envInt("MEMSIM_BANKS", 8),
		"banks per rank")
	flags.IntVar(&cfg.numRow, "rows", envInt("MEMSIM_ROWS", 1024),
		"rows per bank")
	flags.IntVar(&cfg.numCol, "cols", envInt("MEMSIM_COLS", 1024),
		"columns per row")
	flags.IntVar(&cfg.cacheSize, "cache-size",
		envInt("MEMSIM_CACHE_SIZE", 32768), "cache capacity in bytes")
	flags.IntVar(&cfg.blockSize, "block-size",
		envInt("MEMSIM_BLOCK_SIZE", 64), "cache block size in bytes")
	flags.IntVar(&cfg.assoc, "associativity",
		envInt("MEMSIM_ASSOCIATIVITY", 4), "cache ways per set")
	flags.StringVar(&cfg.replacement, "replacement",
		envStr("MEMSIM_REPLACEMENT", "lru"),
		"replacement policy, lru or fifo")
	flags.StringVar(&cfg.writePolicy, "write-policy",
		envStr("MEMSIM_WRITE_POLICY", "writeback"),
		"write policy, writeback or writethrough")
	flags.IntVar(&cfg.cpuAccesses, "cpu-accesses",
		envInt("MEMSIM_CPU_ACCESSES", 4096),
		"number of accesses the CPU actor performs")
	flags.IntVar(&cfg.dmaBytes, "dma-bytes",
		envInt("MEMSIM_DMA_BYTES", 1024),
		"number of bytes the DMA actor copies")
	flags.DurationVar(&cfg.dmaDelay, "dma-delay", 0,
		"injected delay between DMA bytes")
	flags.IntVar(&cfg.monitorPort, "monitor-port", 0,
		"start the monitoring server on this port (0 disables)")
	flags.BoolVar(&cfg.openBrowser, "open-browser", false,
		"open the monitor page in the local browser")
	flags.StringVar(&cfg.traceDB, "trace-db", "",
		"record an access trace into this SQLite database")

	rootCmd.AddCommand(runCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cfg config) error {
	ctrlBuilder := dram.MakeBuilder().
		WithNumChannel(cfg.numChannel).
		WithNumRank(cfg.numRank).
		WithNumBank(cfg.numBank).
		WithNumRow(cfg.numRow).
		WithNumCol(cfg.numCol)

	cacheBuilder := cache.MakeBuilder().
		WithCacheSize(cfg.cacheSize).
		WithBlockSize(cfg.blockSize).
		WithAssociativity(cfg.assoc).
		WithReplacementPolicy(parseReplacement(cfg.replacement)).
		WithWritePolicy(parseWritePolicy(cfg.writePolicy))

	var logger *datarecording.AccessLogger
	if cfg.traceDB != "" {
		logger = datarecording.NewAccessLogger(
			datarecording.New(cfg.traceDB))
		ctrlBuilder = ctrlBuilder.WithAdditionalHooks(logger)
		cacheBuilder = cacheBuilder.WithAdditionalHooks(logger)
	}

	ctrl := ctrlBuilder.Build("DRAM")
	table := region.NewTable(ctrl)
	l1 := cacheBuilder.WithBackingStore(table).Build("L1")

	layout, err := mapRegions(table, ctrl.PhysicalSize())
	if err != nil {
		return err
	}

	tmr := timer.New()
	if err := table.RegisterMMIOHandler(
		layout.mmioStart, timer.RegionSize, tmr); err != nil {
		return err
	}

	if err := programTimer(table, layout.mmioStart); err != nil {
		return err
	}

	if cfg.monitorPort != 0 {
		monitor := monitoring.NewMonitor().WithPortNumber(cfg.monitorPort)
		if cfg.openBrowser {
			monitor = monitor.WithBrowser()
		}
		monitor.RegisterCache(l1)
		monitor.RegisterController(ctrl)
		monitor.RegisterRegionTable(table)
		monitor.StartServer()
	}

	g, ctx := errgroup.WithContext(context.Background())
	g.Go(func() error {
		return cpuLoop(ctx, l1, tmr, ctrl, layout, cfg.cpuAccesses)
	})
	g.Go(func() error {
		return dmaLoop(ctx, l1, layout, cfg.dmaBytes, cfg.dmaDelay)
	})

	if err := g.Wait(); err != nil {
		return err
	}

	printReport(l1, ctrl, tmr)

	return nil
}

type layout struct {
	codeStart uint64
	codeSize  uint64
	heapStart uint64
	heapSize  uint64
	dmaStart  uint64
	dmaSize   uint64
	mmioStart uint64
}

// programTimer sets up the timer through its memory-mapped registers,
// exercising the uncached MMIO path.
func programTimer(table *region.Table, base uint64) error {
	var word [4]byte

	binary.LittleEndian.PutUint32(word[:], 1000)
	if _, err := table.WriteBytes(base+timer.OffPeriod, word[:]); err != nil {
		return err
	}

	binary.LittleEndian.PutUint32(word[:], timer.CtrlEnable|timer.CtrlIRQEnable)
	if _, err := table.WriteBytes(base+timer.OffCtrl, word[:]); err != nil {
		return err
	}

	return nil
}

// mapRegions carves the physical space into code, heap, DMA buffer, and
// MMIO regions.
func mapRegions(table *region.Table, physSize uint64) (layout, error) {
	quarter := physSize / 4

	l := layout{
		codeStart: 0,
		codeSize:  quarter,
		heapStart: quarter,
		heapSize:  quarter,
		dmaStart:  2 * quarter,
		dmaSize:   quarter,
		mmioStart: physSize - timer.RegionSize,
	}

	mappings := []struct {
		name  string
		start uint64
		size  uint64
		perm  mem.Perm
	}{
		{"code", l.codeStart, l.codeSize, mem.PermRead | mem.PermExec},
		{"heap", l.heapStart, l.heapSize, mem.PermRead | mem.PermWrite},
		{"dma", l.dmaStart, l.dmaSize, mem.PermRead | mem.PermWrite},
		{"mmio", l.mmioStart, timer.RegionSize,
			mem.PermRead | mem.PermWrite},
	}

	for _, m := range mappings {
		if err := table.Map(m.name, m.start, m.size, m.perm); err != nil {
			return layout{}, err
		}
	}

	return l, nil
}

// cpuLoop models the CPU actor: strided code fetches and heap
// reads/writes, advancing the timer with the cycles each access consumed.
func cpuLoop(
	ctx context.Context,
	l1 *cache.Comp,
	tmr *timer.Device,
	ctrl *dram.Comp,
	l layout,
	accesses int,
) error {
	lastCycle := ctrl.CurrentCycle()

	for i := 0; i < accesses; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		fetchAddr := l.codeStart + uint64(i*4)%l.codeSize
		if _, _, err := l1.ReadBytes(fetchAddr, 1); err != nil {
			return err
		}

		heapAddr := l.heapStart + uint64(i*64)%l.heapSize
		if i%4 == 0 {
			if _, err := l1.WriteBytes(
				heapAddr, []byte{byte(i)}); err != nil {
				return err
			}
		} else {
			if _, _, err := l1.ReadBytes(heapAddr, 1); err != nil {
				return err
			}
		}

		cycle := ctrl.CurrentCycle()
		tmr.Tick(cycle - lastCycle)
		lastCycle = cycle
	}

	return nil
}

// dmaLoop models the DMA actor: a byte-granular copy through the same
// cache path the CPU uses, with an injected delay between bytes.
func dmaLoop(
	ctx context.Context,
	l1 *cache.Comp,
	l layout,
	bytes int,
	delay time.Duration,
) error {
	half := l.dmaSize / 2

	for i := 0; i < bytes; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		src := l.dmaStart + uint64(i)%half
		dst := l.dmaStart + half + uint64(i)%half

		data, _, err := l1.ReadBytes(src, 1)
		if err != nil {
			return err
		}

		if _, err := l1.WriteBytes(dst, data); err != nil {
			return err
		}

		if delay > 0 {
			time.Sleep(delay)
		}
	}

	return nil
}

func printReport(l1 *cache.Comp, ctrl *dram.Comp, tmr *timer.Device) {
	cacheStats := l1.CurrentStats()
	dramStats := ctrl.CurrentStats()

	fmt.Printf("cache:    %s\n", l1.Topology())
	fmt.Printf("dram:     %s\n", ctrl.Topology())
	fmt.Printf("cycle:    %d\n", ctrl.CurrentCycle())
	fmt.Printf("reads:    %d\n", cacheStats.Reads)
	fmt.Printf("writes:   %d\n", cacheStats.Writes)
	fmt.Printf("hits:     %d\n", cacheStats.Hits)
	fmt.Printf("misses:   %d\n", cacheStats.Misses)
	fmt.Printf("flushes:  %d\n", cacheStats.BackingWrites)
	fmt.Printf("row hits: %d\n", dramStats.RowBufferHits)
	fmt.Printf("timer:    %d events\n", tmr.EventsGenerated())
}

func parseReplacement(s string) cache.ReplacementPolicy {
	if s == "fifo" {
		return cache.FIFO
	}

	return cache.LRU
}

func parseWritePolicy(s string) cache.WritePolicy {
	if s == "writethrough" {
		return cache.WriteThrough
	}

	return cache.WriteBack
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}

	return def
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return def
}
