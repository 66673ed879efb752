// Lamarck CLI - the main entry point for running lamarck programs
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/tliron/commonlog"

	"github.com/chazu/lamarck/machine"
	"github.com/chazu/lamarck/manifest"
	"github.com/chazu/lamarck/server"

	_ "github.com/tliron/commonlog/simple"
)

func main() {
	verbosity := flag.Int("v", 0, "Log verbosity (higher is noisier)")
	programName := flag.String("program", "", "Run a single named program")
	list := flag.Bool("list", false, "List available programs")
	format := flag.String("format", "text", "Report format: text, json, or yaml")
	limit := flag.Uint64("limit", 0, "Step limit per program (0 = no limit)")
	tracePath := flag.String("trace", "", "Record collection telemetry to this SQLite file")
	serveMode := flag.Bool("serve", false, "Start the evaluation server (Connect HTTP, CBOR+JSON)")
	addr := flag.String("addr", manifest.DefaultServerAddr, "Evaluation server address (used with -serve)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: lam [options]\n\n")
		fmt.Fprintf(os.Stderr, "Evaluates lambda calculus programs on a heap-managed abstract machine\n")
		fmt.Fprintf(os.Stderr, "that collects garbage after every transition.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  lam                          # Run every built-in program\n")
		fmt.Fprintf(os.Stderr, "  lam -list                    # Show the program catalog\n")
		fmt.Fprintf(os.Stderr, "  lam -program omega -limit 50 # Run one program with a step limit\n")
		fmt.Fprintf(os.Stderr, "  lam -format yaml             # Emit the report as YAML\n")
		fmt.Fprintf(os.Stderr, "  lam -trace runs.db           # Record collection telemetry\n")
		fmt.Fprintf(os.Stderr, "  lam -serve -addr :8080       # Start the evaluation server\n")
	}
	flag.Parse()

	if flag.NArg() > 0 {
		fmt.Fprintf(os.Stderr, "Error: unexpected arguments: %v\n", flag.Args())
		flag.Usage()
		os.Exit(1)
	}

	// Manifest values fill in anything not set explicitly on the
	// command line.
	man, err := manifest.FindAndLoad(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	stepLimit := *limit
	serverAddr := *addr
	traceDB := *tracePath
	logVerbosity := *verbosity
	if man != nil {
		set := map[string]bool{}
		flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
		if !set["limit"] && man.Run.StepLimit > 0 {
			stepLimit = man.Run.StepLimit
		}
		if !set["addr"] {
			serverAddr = man.Server.Addr
		}
		if !set["trace"] && man.TracePath() != "" {
			traceDB = man.TracePath()
		}
		if !set["v"] && man.Log.Verbosity > 0 {
			logVerbosity = man.Log.Verbosity
		}
	}

	commonlog.Configure(logVerbosity, nil)

	if *serveMode {
		runServer(serverAddr, stepLimit)
		return
	}

	if *list {
		listPrograms(os.Stdout)
		return
	}

	progs := catalog()
	if *programName != "" {
		p := findProgram(progs, *programName)
		if p == nil {
			fmt.Fprintf(os.Stderr, "Error: unknown program %q (use -list to see the catalog)\n", *programName)
			os.Exit(1)
		}
		progs = []Program{*p}
	}

	report, err := runPrograms(progs, stepLimit, traceDB)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := writeReport(os.Stdout, *format, report); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if report.Failed > 0 {
		os.Exit(1)
	}
}

// runServer starts the evaluation server and blocks until it exits.
func runServer(addr string, stepLimit uint64) {
	var opts []server.Option
	if stepLimit > 0 {
		opts = append(opts, server.WithMachineOptions(machine.WithStepLimit(stepLimit)))
	}
	srv := server.New(opts...)
	defer srv.Stop()

	fmt.Printf("lamarck evaluation server listening on %s\n", addr)
	fmt.Printf("  Run:   http://%s%s\n", addr, server.EvalProcedure)
	fmt.Printf("  Stats: http://%s%s\n", addr, server.StatsProcedure)
	if err := srv.ListenAndServe(addr); err != nil {
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		os.Exit(1)
	}
}
