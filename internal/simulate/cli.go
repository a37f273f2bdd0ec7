package simulate

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/zensu/focusflow/pkg/logger"
)

// File permission constants.
const (
	logFilePermission = 0600
)

// SetupLogging configures logging to both console and file.
// If logFile is empty, a timestamped filename is generated.
func SetupLogging(logFile string) error {
	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	if logFile == "" {
		timestamp := time.Now().Format("20060102_150405")
		logFile = "simulation_log_" + timestamp + ".log"
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}

	multiWriter := io.MultiWriter(os.Stdout, file)
	log.SetOutput(multiWriter)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	logger.Get().Info(context.Background(), "logging to file", logger.String("logFile", logFile))
	return nil
}

// ShowHelp prints usage information for the simulation tool.
func ShowHelp() {
	os.Stdout.WriteString(`FocusFlow Session Simulator
===========================

A concurrent tool that drives synthetic focus sessions across timezones
and verifies leaderboard consistency.

Usage:
  go run cmd/simulate/main.go [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:9080")
  -users int
        Number of synthetic users to simulate (default 200)
  -top int
        Number of top entries to fetch from leaderboard (default 50)
  -workers int
        Number of concurrent workers (default CPU cores * 2)
  -pace duration
        Delay between heartbeats per user (default 100ms)
  -timeout duration
        HTTP request timeout (default 30s)
  -scope string
        Leaderboard scope to drive and query (default "global")
  -output string
        Output file for the generated plan (default: session_plan_TIMESTAMP.json)
  -log string
        Log file for simulation output (default: simulation_log_TIMESTAMP.log)
  -verbose
        Enable verbose logging
  -help
        Show this help message

Examples:
  # Simulate with default settings
  go run cmd/simulate/main.go

  # Heavier run against a remote instance
  go run cmd/simulate/main.go -users 2000 -workers 16 -url http://localhost:8080

  # Slow-paced run that accumulates more focus seconds per user
  go run cmd/simulate/main.go -users 100 -pace 1s

  # Custom log file
  go run cmd/simulate/main.go -users 500 -log my_run.log
`)
}
