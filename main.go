// ════════════════════════════════════════════════════════════════════════════════════════════════
// Multiprocessor Bring-up - Main Entry Point
// ────────────────────────────────────────────────────────────────────────────────────────────────
// Project: Multiprocessor Bring-up Coordinator
// Component: Boot Flow Driver
//
// Description:
//   Drives one simulated boot flow end to end: load the topology, enumerate the units,
//   exercise every dispatch mode, hand over to a reconfigured coordinator for the next boot
//   phase, and tear the units down.
//
// Architecture:
//   - Phase 1: Enumeration of every responding unit
//   - Phase 2: Dispatch (broadcast, single-threaded, targeted, asynchronous)
//   - Phase 3: Reconfiguration for a later boot phase, then dispatch again
//
// ════════════════════════════════════════════════════════════════════════════════════════════════

package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	rtdebug "runtime/debug"
	"strconv"
	"sync/atomic"
	"syscall"

	"mpboot/debug"
	"mpboot/journal"
	"mpboot/mp"
	"mpboot/platform"
	"mpboot/topology"

	"github.com/joeycumines/logiface"
)

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// FLAGS
// ═══════════════════════════════════════════════════════════════════════════════════════════════

var (
	topologyPath = flag.String("topology", "", "topology JSON file (default: generated)")
	unitCount    = flag.Int("units", 4, "unit count for the generated topology")
	pinUnits     = flag.Bool("pin", false, "lock each unit to an OS thread pinned to its core")
	journalPath  = flag.String("journal", "", "SQLite journal path (empty: no journal)")
	logLevel     = flag.String("level", "info", "log level: debug, info, warning, error")
	timeoutUs    = flag.Uint64("timeout", 5_000_000, "dispatch timeout in microseconds (0: infinite)")
	phases       = flag.Int("phases", 2, "boot phases to run; each phase after the first reconfigures")
)

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// MAIN ORCHESTRATION
// ═══════════════════════════════════════════════════════════════════════════════════════════════

func main() {
	flag.Parse()

	level, err := parseLevel(*logLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	debug.SetLogger(debug.New(os.Stderr, level))

	if err := run(); err != nil {
		debug.DropError("BOOT", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := loadTopology()
	if err != nil {
		return err
	}

	// The primary unit is this goroutine for the whole boot flow.
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	p, err := platform.New(cfg)
	if err != nil {
		return err
	}
	p.BindPrimary()
	defer p.Shutdown()
	setupSignalHandling(p)

	mcfg := mp.Config{
		DiscoveryWindowMicros: cfg.DiscoveryWindowMicros,
		TraceDepth:            cfg.TraceRing(),
	}
	if *journalPath != "" {
		store, err := journal.Open(*journalPath)
		if err != nil {
			return err
		}
		defer store.Close()
		mcfg.Recorder = store
	}

	// PHASE 1: Enumeration
	c := mp.New(p, mcfg)
	if err := c.Initialize(); err != nil {
		return err
	}
	report(c)

	for phase := 1; ; phase++ {
		// PHASE 2: Dispatch
		if err := exercise(c); err != nil {
			return err
		}
		if phase >= *phases {
			break
		}

		// Settle the heap before the next boot phase
		runtime.GC()
		runtime.GC()
		rtdebug.FreeOSMemory()

		// PHASE 3: Reconfiguration
		next, err := c.Reconfigure()
		if err != nil {
			return err
		}
		c = next
		report(c)
	}

	debug.DropMessage("DONE", "boot flow complete at generation "+strconv.FormatUint(uint64(c.Generation()), 10))
	return nil
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// PHASES
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// report logs the registry.
func report(c *mp.Coordinator) {
	total, enabled, err := c.GetProcessorCount()
	if err != nil {
		debug.DropError("REPORT", err)
		return
	}
	debug.DropMessage("UNITS", strconv.Itoa(total)+" total, "+strconv.Itoa(enabled)+" enabled")

	for i := 0; i < total; i++ {
		info, err := c.GetUnitInfo(i)
		if err != nil {
			debug.DropError("REPORT", err)
			continue
		}
		debug.Logger().Info().
			Str("tag", "UNIT").
			Int("index", info.Index).
			Uint64("identity", uint64(info.Identity)).
			Bool("bsp", info.IsBSP).
			Bool("healthy", info.Healthy).
			Bool("enabled", info.Enabled).
			Log(info.State.String())
	}
}

// exercise runs every dispatch mode once.
func exercise(c *mp.Coordinator) error {
	var hits atomic.Int64
	count := func(any) { hits.Add(1) }

	// Broadcast, primary included
	if err := c.RunOnAll(count, nil, false, false, *timeoutUs, nil); err != nil {
		return fmt.Errorf("broadcast: %w", err)
	}
	debug.DropMessage("ALL", strconv.FormatInt(hits.Swap(0), 10)+" units ran the broadcast")

	// Single-threaded, ascending registry order
	var (
		order []int64
		slot  atomic.Int64
	)
	record := func(any) {
		if idx, err := c.WhoAmI(); err == nil {
			slot.Store(int64(idx))
		}
	}
	err := c.RunOnAll(func(arg any) {
		record(arg)
		hits.Add(1)
	}, nil, true, true, *timeoutUs, nil)
	if err != nil && !errors.Is(err, mp.ErrNotStarted) {
		return fmt.Errorf("single-threaded: %w", err)
	}
	debug.DropMessage("SERIAL", strconv.FormatInt(hits.Swap(0), 10)+" units ran in order")

	// Targeted, every enabled secondary
	total, _, err := c.GetProcessorCount()
	if err != nil {
		return err
	}
	for i := 0; i < total; i++ {
		info, err := c.GetUnitInfo(i)
		if err != nil || info.IsBSP || !info.Enabled {
			continue
		}
		if err := c.RunOnOne(record, nil, i, *timeoutUs, nil); err != nil {
			debug.DropError("ONE", err)
			continue
		}
		order = append(order, slot.Load())
	}
	debug.DropMessage("ONE", fmt.Sprintf("targeted units answered %v", order))

	// Asynchronous broadcast advanced by Poll
	done := mp.NewEvent(nil)
	if err := c.RunOnAll(count, nil, true, false, *timeoutUs, done); err != nil {
		if errors.Is(err, mp.ErrNotStarted) {
			return nil
		}
		return fmt.Errorf("async: %w", err)
	}
	for !done.Signaled() {
		if _, err := c.Poll(); err != nil {
			return err
		}
		runtime.Gosched()
	}
	if err := done.Err(); err != nil {
		debug.DropError("ASYNC", err)
	}
	debug.DropMessage("ASYNC", strconv.FormatInt(hits.Load(), 10)+" units completed asynchronously")
	return nil
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// SUPPORT
// ═══════════════════════════════════════════════════════════════════════════════════════════════

func loadTopology() (topology.Config, error) {
	var (
		cfg topology.Config
		err error
	)
	if *topologyPath != "" {
		cfg, err = topology.Load(*topologyPath)
	} else {
		cfg = topology.Default(*unitCount)
		err = cfg.Validate()
	}
	if *pinUnits {
		cfg.Pin = true
	}
	return cfg, err
}

func parseLevel(s string) (logiface.Level, error) {
	switch s {
	case "debug":
		return logiface.LevelDebug, nil
	case "info":
		return logiface.LevelInformational, nil
	case "warning":
		return logiface.LevelWarning, nil
	case "error":
		return logiface.LevelError, nil
	}
	return 0, fmt.Errorf("unknown log level %q", s)
}

// setupSignalHandling tears the units down on SIGINT/SIGTERM.
func setupSignalHandling(p *platform.Platform) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		debug.DropMessage("SIGNAL", "Received interrupt, shutting down...")
		p.Shutdown()
		os.Exit(0)
	}()
}
