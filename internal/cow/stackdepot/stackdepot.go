// Package stackdepot stores deduplicated call stacks for lineage tracing.
//
// When origin tracing is enabled, every Create and Clone of a copy-on-write
// cell records the stack that produced the new lineage. A writer whose
// mutation was refused can then ask where the competing lineages came from.
//
// Stacks are kept once, keyed by a 64-bit FNV-1a hash of their program
// counters, so a hot call site costs one hash lookup after the first capture.
//
// Usage:
//
//	hash := stackdepot.Capture(1)
//	...
//	fmt.Print(stackdepot.Lookup(hash).Format())
package stackdepot

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"runtime"
	"strings"
	"sync"
)

// MaxFrames is the number of frames kept per stack.
// Lineages are usually created a few calls away from the interesting code.
const MaxFrames = 8

// Stack is a captured call stack of at most MaxFrames frames.
type Stack struct {
	PC [MaxFrames]uintptr
}

// depot maps stack hash to *Stack.
// Written once per distinct stack, read on every lookup.
var depot sync.Map

// Capture records the caller's stack and returns its hash.
//
// skip is the number of frames above Capture's caller to omit; 0 starts the
// stack at the function that called Capture.
//
// Returns 0 if no frames are available.
//
// Thread Safety: Safe for concurrent calls.
func Capture(skip int) uint64 {
	var pcs [MaxFrames]uintptr
	// +2 skips runtime.Callers and Capture itself.
	n := runtime.Callers(skip+2, pcs[:])
	if n == 0 {
		return 0
	}

	hash := hashPCs(pcs[:n])
	if _, exists := depot.Load(hash); exists {
		return hash
	}
	depot.LoadOrStore(hash, &Stack{PC: pcs})
	return hash
}

// Lookup returns the stack stored under hash, or nil if there is none.
func Lookup(hash uint64) *Stack {
	if hash == 0 {
		return nil
	}
	v, ok := depot.Load(hash)
	if !ok {
		return nil
	}
	return v.(*Stack)
}

func hashPCs(pcs []uintptr) uint64 {
	h := fnv.New64a()
	var buf [8]byte
	for _, pc := range pcs {
		binary.LittleEndian.PutUint64(buf[:], uint64(pc))
		_, _ = h.Write(buf[:])
	}
	return h.Sum64()
}

// Format renders the stack one frame per two lines:
//
//	main.forkProcess()
//	      /src/kernel/proc.go:88
//
// Runtime frames are left out. A nil stack formats as "  <unknown>\n".
func (s *Stack) Format() string {
	if s == nil {
		return "  <unknown>\n"
	}

	var buf strings.Builder
	frames := runtime.CallersFrames(trimmed(s.PC[:]))
	for {
		frame, more := frames.Next()
		if frame.PC != 0 && !strings.HasPrefix(frame.Function, "runtime.") {
			fmt.Fprintf(&buf, "  %s()\n", frame.Function)
			fmt.Fprintf(&buf, "      %s:%d\n", frame.File, frame.Line)
		}
		if !more {
			break
		}
	}

	if buf.Len() == 0 {
		return "  <runtime internal>\n"
	}
	return buf.String()
}

// trimmed drops the unused zero tail of a fixed-size PC array.
func trimmed(pcs []uintptr) []uintptr {
	for i, pc := range pcs {
		if pc == 0 {
			return pcs[:i]
		}
	}
	return pcs
}

// Count returns the number of distinct stacks stored.
// O(N); meant for diagnostics.
func Count() int {
	n := 0
	depot.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Reset empties the depot.
//
// Thread Safety: NOT safe for concurrent use with Capture or Lookup. Tests
// only.
func Reset() {
	depot = sync.Map{}
}
