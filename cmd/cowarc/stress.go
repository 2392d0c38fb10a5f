// stress.go implements the 'cowarc stress' command.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/kolkov/cowarc/cow"
)

// stressConfig holds parsed 'cowarc stress' arguments.
type stressConfig struct {
	workers    int
	iterations int
	trace      bool
}

const (
	defaultWorkers    = 8
	defaultIterations = 1000

	// tableSize is the number of entries in the stressed page table.
	tableSize = 64
)

// table is the value shared by the stress workers: a page table whose
// entries the workers map in private copies.
type table struct {
	entries [tableSize]uint64
}

// stressCommand implements the 'cowarc stress' command.
//
// Flow:
//  1. Parse flags
//  2. Create one root table
//  3. Start workers; each repeatedly forks a child lineage, is refused the
//     write, copies, writes its copy, and releases everything
//  4. Check the root was never modified and is Exclusive again
//  5. Print a report
//
// Example:
//
//	cowarc stress -workers 32 -iterations 5000 -trace
func stressCommand(args []string) {
	cfg, err := parseStressArgs(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := runStress(cfg, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Stress failed: %v\n", err)
		os.Exit(1)
	}
}

// parseStressArgs parses stress flags.
//
// Supported:
//
//	-workers N, -workers=N
//	-iterations N, -iterations=N
//	-trace
//
// Returns an error for unknown flags, missing values and non-positive counts.
func parseStressArgs(args []string) (*stressConfig, error) {
	cfg := &stressConfig{
		workers:    defaultWorkers,
		iterations: defaultIterations,
		trace:      cow.ConfigFromEnv().TraceOrigins,
	}

	for i := 0; i < len(args); i++ {
		name, value, hasValue := splitFlag(args[i])

		switch name {
		case "-trace", "--trace":
			if hasValue {
				on, err := strconv.ParseBool(value)
				if err != nil {
					return nil, fmt.Errorf("invalid value %q for %s", value, name)
				}
				cfg.trace = on
			} else {
				cfg.trace = true
			}
		case "-workers", "--workers", "-iterations", "--iterations":
			if !hasValue {
				if i+1 >= len(args) {
					return nil, fmt.Errorf("flag %s requires a value", name)
				}
				i++
				value = args[i]
			}
			n, err := strconv.Atoi(value)
			if err != nil || n <= 0 {
				return nil, fmt.Errorf("flag %s needs a positive integer, got %q", name, value)
			}
			if name == "-workers" || name == "--workers" {
				cfg.workers = n
			} else {
				cfg.iterations = n
			}
		default:
			return nil, fmt.Errorf("unknown flag: %s", args[i])
		}
	}

	return cfg, nil
}

// splitFlag splits "-name=value" into its parts.
func splitFlag(arg string) (name, value string, hasValue bool) {
	for i := 0; i < len(arg); i++ {
		if arg[i] == '=' {
			return arg[:i], arg[i+1:], true
		}
	}
	return arg, "", false
}

// runStress runs the workload described by cfg and writes a report to w.
func runStress(cfg *stressConfig, w io.Writer) error {
	prev := cow.CurrentConfig()
	cow.Configure(cow.Config{TraceOrigins: cfg.trace})
	defer cow.Configure(prev)

	before := cow.ReadStats()
	start := time.Now()

	root := cow.New(table{})
	weakRoot := root.Downgrade()

	errs := make(chan error, cfg.workers)
	var wg sync.WaitGroup
	for id := 0; id < cfg.workers; id++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			if err := stressWorker(id, cfg.iterations, root, weakRoot); err != nil {
				errs <- err
			}
		}(id)
	}
	wg.Wait()
	close(errs)

	var failures []error
	for err := range errs {
		failures = append(failures, err)
	}

	if root.IsShared() {
		failures = append(failures, newInvariantError("root",
			fmt.Sprintf("root still Shared (share count %d) after all workers finished", root.ShareCount()),
			"A worker leaked a child lineage; rerun with -trace to see where it was created"))
	}
	var untouched bool
	root.Read(func(t *table) { untouched = *t == (table{}) })
	if !untouched {
		failures = append(failures, newInvariantError("root",
			"root table modified by a worker holding only a child lineage", ""))
	}

	root.Release()
	if _, ok := weakRoot.Upgrade(); ok {
		failures = append(failures, newInvariantError("root",
			"weak handle upgraded after the root lineage was released", ""))
	}
	weakRoot.Release()

	elapsed := time.Since(start)
	after := cow.ReadStats()
	printStressReport(w, cfg, elapsed, diffStats(after, before), len(failures))

	return errors.Join(failures...)
}

// stressWorker forks, copies and writes iterations times.
func stressWorker(id, iterations int, root *cow.CowArc[table], weakRoot *cow.CowWeak[table]) error {
	step := fmt.Sprintf("stress worker %d", id)
	slot := id % tableSize

	for i := 0; i < iterations; i++ {
		child := root.Clone()

		if child.TryWrite(func(t *table) { t.entries[slot] = uint64(i + 1) }) {
			child.Release()
			msg := "write granted on a child sharing the root value"
			if origin := root.Origin(); origin != "" {
				msg += "\nroot created at:\n" + origin
			}
			return newInvariantError(step, msg,
				"Check that Clone bumps the share count before returning")
		}

		var private table
		child.Read(func(t *table) { private = *t })
		child.Release()

		private.entries[slot] = uint64(i + 1)
		fresh := cow.New(private)
		if !fresh.TryWrite(func(t *table) { t.entries[slot]++ }) {
			fresh.Release()
			return newInvariantError(step, "write refused on a freshly created copy", "")
		}

		handle := fresh.CloneShallow()
		if handle.IsShared() {
			handle.Release()
			fresh.Release()
			return newInvariantError(step, "shallow clone made a private copy Shared", "")
		}
		handle.Release()
		fresh.Release()

		if u, ok := weakRoot.Upgrade(); ok {
			u.Release()
		} else {
			return newInvariantError(step, "weak root failed to upgrade while the root was live", "")
		}
	}
	return nil
}

// diffStats returns the counters accumulated between two snapshots.
func diffStats(after, before cow.Stats) cow.Stats {
	return cow.Stats{
		Created:         after.Created - before.Created,
		Clones:          after.Clones - before.Clones,
		ShallowClones:   after.ShallowClones - before.ShallowClones,
		Downgrades:      after.Downgrades - before.Downgrades,
		Upgrades:        after.Upgrades - before.Upgrades,
		UpgradesFailed:  after.UpgradesFailed - before.UpgradesFailed,
		WritesDenied:    after.WritesDenied - before.WritesDenied,
		LineagesDropped: after.LineagesDropped - before.LineagesDropped,
		ValuesDropped:   after.ValuesDropped - before.ValuesDropped,
	}
}

func printStressReport(w io.Writer, cfg *stressConfig, elapsed time.Duration, s cow.Stats, failures int) {
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "==================\n")
	fmt.Fprintf(w, "cowarc Stress Report\n")
	fmt.Fprintf(w, "==================\n")
	fmt.Fprintf(w, "Workers:          %d\n", cfg.workers)
	fmt.Fprintf(w, "Iterations:       %d\n", cfg.iterations)
	fmt.Fprintf(w, "Tracing:          %v\n", cfg.trace)
	fmt.Fprintf(w, "Elapsed:          %v\n", elapsed)
	fmt.Fprintf(w, "Values created:   %d (dropped %d)\n", s.Created, s.ValuesDropped)
	fmt.Fprintf(w, "Lineages cloned:  %d (shallow %d)\n", s.Clones, s.ShallowClones)
	fmt.Fprintf(w, "Writes denied:    %d\n", s.WritesDenied)
	fmt.Fprintf(w, "Weak upgrades:    %d (failed %d)\n", s.Upgrades, s.UpgradesFailed)

	if failures == 0 {
		fmt.Fprintf(w, "✓ All invariants held.\n")
	} else {
		fmt.Fprintf(w, "WARNING: %d invariant violation(s)!\n", failures)
	}
	fmt.Fprintf(w, "==================\n\n")
}
