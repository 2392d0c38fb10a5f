// demo.go implements the 'cowarc demo' command.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/kolkov/cowarc/cow"
)

// demoCommand implements the 'cowarc demo' command.
func demoCommand(_ []string) {
	if err := runDemo(os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// runDemo performs the create / write / clone / deny / release sequence and
// narrates each step to w. It returns an *InvariantError if any step does
// not behave as documented.
func runDemo(w io.Writer) error {
	fmt.Fprintln(w, "=== Copy-on-Write Cell Demo ===")
	fmt.Fprintln(w)

	c := cow.New(42)
	defer c.Release()
	fmt.Fprintf(w, "1. c := New(42)           state=%v\n", c.State())
	if c.IsShared() {
		return newInvariantError("create", "fresh cell is Shared", "")
	}

	if !c.TryWrite(func(v *int) { *v = 43 }) {
		return newInvariantError("write", "write refused on Exclusive cell", "")
	}
	fmt.Fprintf(w, "2. TryWrite(c, 43)        granted\n")

	c2 := c.Clone()
	fmt.Fprintf(w, "3. c2 := Clone(c)         c=%v c2=%v\n", c.State(), c2.State())
	if !c.IsShared() || !c2.IsShared() {
		c2.Release()
		return newInvariantError("clone", "cells not Shared after Clone",
			"Clone must add a lineage to the share count")
	}

	if c.TryWrite(func(v *int) { *v = 44 }) {
		c2.Release()
		return newInvariantError("deny", "write granted on Shared cell", "")
	}
	fmt.Fprintf(w, "4. TryWrite(c, 44)        denied (Shared)\n")

	var got int
	c2.Read(func(v *int) { got = *v })
	fmt.Fprintf(w, "5. Read(c2)               %d\n", got)
	if got != 43 {
		c2.Release()
		return newInvariantError("read", fmt.Sprintf("clone read %d, want 43", got), "")
	}

	c2.Release()
	fmt.Fprintf(w, "6. Release(c2)            c=%v\n", c.State())
	if c.IsShared() {
		return newInvariantError("release", "cell still Shared after last sibling released", "")
	}

	if !c.TryWrite(func(v *int) { *v = 44 }) {
		return newInvariantError("rewrite", "write refused after return to Exclusive", "")
	}
	fmt.Fprintf(w, "7. TryWrite(c, 44)        granted\n")

	fmt.Fprintln(w)
	fmt.Fprintln(w, "=== Demo Complete ===")
	return nil
}
