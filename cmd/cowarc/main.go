// Package main implements the cowarc CLI tool.
//
// The tool exercises the copy-on-write container outside of a test binary:
//
//	cowarc demo              # Walk one cell through Exclusive and Shared
//	cowarc stress -workers 8 # Hammer clone/copy/release from many goroutines
//	cowarc version           # Print version information
//
// It is used to check a build of the container on a target machine, where
// the test suite may not be available.
package main

import (
	"fmt"
	"os"

	"github.com/kolkov/cowarc/cow"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	switch command {
	case "demo":
		demoCommand(os.Args[2:])
	case "stress":
		stressCommand(os.Args[2:])
	case "version", "--version", "-v":
		versionCommand(os.Args[2:])
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

// versionCommand prints the package version, or checks compatibility with
// the version given as the only argument.
//
// Example:
//
//	cowarc version          # cowarc version v0.1.0 (spin lock)
//	cowarc version 0.4.2    # exit 0 if compatible, 1 otherwise
func versionCommand(args []string) {
	info := cow.GetInfo()
	if len(args) == 0 {
		fmt.Printf("cowarc version %s (%s lock)\n", cow.Canonical(info.Version), info.Lock)
		return
	}

	want := args[0]
	if cow.Compatible(want) {
		fmt.Printf("%s is compatible with cowarc %s\n", cow.Canonical(want), cow.Canonical(info.Version))
		return
	}
	fmt.Fprintf(os.Stderr, "%s is not compatible with cowarc %s\n", want, cow.Canonical(info.Version))
	os.Exit(1)
}

func printUsage() {
	fmt.Print(`cowarc - copy-on-write reference-counted container tool

USAGE:
    cowarc <command> [arguments]

COMMANDS:
    demo       Walk one cell through Exclusive and Shared states
    stress     Run concurrent clone/copy/release workers and check invariants
    version    Show version information, or check compatibility with a version
    help       Show this help message

STRESS FLAGS:
    -workers N       Number of worker goroutines (default 8)
    -iterations N    Iterations per worker (default 1000)
    -trace           Record lineage origins (same as COWARC_TRACE=1)

EXAMPLES:
    # Show the state machine step by step
    cowarc demo

    # Stress with 32 workers
    cowarc stress -workers 32 -iterations 5000

    # Check that code built against v0.3.1 can use this build
    cowarc version v0.3.1

ENVIRONMENT:
    COWARC_TRACE     Record the call stack that created each lineage

`)
}
