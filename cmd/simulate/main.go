package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/zensu/focusflow/internal/simulate"
)

// Default configuration constants.
const (
	defaultNumUsers   = 200
	defaultTopN       = 50
	defaultWorkers    = 2 // multiplier for runtime.NumCPU()
	defaultPace       = 100 * time.Millisecond
	defaultTimeout    = 30 * time.Second
	defaultRunTimeout = 10 * time.Minute
)

func main() {
	var (
		baseURL    = flag.String("url", "http://localhost:9080", "Base URL of the service")
		numUsers   = flag.Int("users", defaultNumUsers, "Number of synthetic users to simulate")
		topN       = flag.Int("top", defaultTopN, "Number of top entries to fetch from leaderboard")
		workers    = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent workers")
		pace       = flag.Duration("pace", defaultPace, "Delay between heartbeats per user")
		timeout    = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		scope      = flag.String("scope", "global", "Leaderboard scope to drive and query")
		outputFile = flag.String("output", "", "Output file for the generated plan (default: session_plan_TIMESTAMP.json)")
		logFile    = flag.String("log", "", "Log file for simulation output (default: simulation_log_TIMESTAMP.log)")
		verbose    = flag.Bool("verbose", false, "Enable verbose logging")
		help       = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		simulate.ShowHelp()
		return
	}

	if err := simulate.SetupLogging(*logFile); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultRunTimeout)
	defer cancel()

	config := &simulate.Config{
		BaseURL:    *baseURL,
		NumUsers:   *numUsers,
		TopN:       *topN,
		Workers:    *workers,
		Pace:       *pace,
		Timeout:    *timeout,
		OutputFile: *outputFile,
		LogFile:    *logFile,
		Scope:      *scope,
		Verbose:    *verbose,
	}

	if err := simulate.Run(ctx, config); err != nil {
		os.Stderr.WriteString("Simulation failed: " + err.Error() + "\n")
		return
	}
}
