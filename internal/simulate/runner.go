package simulate

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	json "github.com/goccy/go-json"
	"github.com/zensu/focusflow/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0750
)

// Run executes the complete simulation.
func Run(ctx context.Context, config *Config) error {
	stats := &Stats{
		StartTime: time.Now(),
	}

	logger.Get().Info(ctx, "starting focusflow session simulation",
		logger.String("baseURL", config.BaseURL),
		logger.Int("users", config.NumUsers),
		logger.Int("workers", config.Workers),
		logger.String("pace", config.Pace.String()),
		logger.String("timeout", config.Timeout.String()),
		logger.Int("topN", config.TopN),
		logger.String("scope", config.Scope),
		logger.Any("verbose", config.Verbose))

	// Step 1: Check service health
	if err := checkServiceHealth(ctx, config); err != nil {
		return fmt.Errorf("service health check failed: %w", err)
	}

	// Step 2: Generate session plans
	plans, err := generatePlans(ctx, config, stats)
	if err != nil {
		return fmt.Errorf("plan generation failed: %w", err)
	}

	// Step 3: Drive the sessions concurrently
	if err := driveSessions(ctx, config, plans, stats); err != nil {
		return fmt.Errorf("session driving failed: %w", err)
	}

	// Step 4: Wait for the delta pipeline to settle
	logger.Get().Info(ctx, "waiting for deltas to be applied")
	time.Sleep(SettleDelay)

	// Step 5: Retrieve per-user ranks concurrently
	ranks, err := retrieveRanks(ctx, config, plans, stats)
	if err != nil {
		return fmt.Errorf("rank retrieval failed: %w", err)
	}

	// Step 6: Get leaderboard
	leaderboard, err := getLeaderboard(ctx, config, stats)
	if err != nil {
		return fmt.Errorf("leaderboard retrieval failed: %w", err)
	}

	// Step 7: Verify results
	if err := verifyResults(config, ranks, leaderboard); err != nil {
		return fmt.Errorf("result verification failed: %w", err)
	}

	// Step 8: Save the plan to file
	if err := savePlansToFile(ctx, config, plans); err != nil {
		logger.Get().Warn(ctx, "failed to save plans to file", logger.Error(err))
	}

	// Final statistics
	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)

	displayFinalStats(stats)

	logger.Get().Info(ctx, "simulation completed successfully")
	return nil
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, config *Config) error {
	logger.Get().Info(ctx, "checking service health")

	client := newHTTPClient(config.Timeout)
	url := config.BaseURL + "/healthz"

	resp, err := client.Get(ctx, url)
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Get().Error(context.Background(), "failed to close response body", logger.Error(err))
		}
	}()

	// Any 200 counts as healthy (the endpoint serves Prometheus metrics).
	if resp.StatusCode != StatusOK {
		return fmt.Errorf("service health check failed with status: %d", resp.StatusCode)
	}

	logger.Get().Info(ctx, "service is healthy")
	return nil
}

// savePlansToFile saves the generated session plans to a JSON file.
func savePlansToFile(ctx context.Context, config *Config, plans []UserPlan) error {
	if len(plans) == 0 {
		return fmt.Errorf("no plans to save")
	}

	filename := config.OutputFile
	if filename == "" {
		timestamp := time.Now().Format("20060102_150405")
		filename = "session_plan_" + timestamp + ".json"
	}

	dir := filepath.Dir(filename)
	if dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			logger.Get().Error(context.Background(), "failed to close file", logger.Error(err))
		}
	}()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(plans); err != nil {
		return fmt.Errorf("failed to encode plans: %w", err)
	}

	logger.Get().Info(ctx, "plans saved to file", logger.String("filename", filename))
	return nil
}

// displayFinalStats prints the final simulation statistics.
func displayFinalStats(stats *Stats) {
	var successRate, sessionsPerSecond float64

	if stats.UsersPlanned > 0 {
		successRate = float64(stats.SessionsCompleted) / float64(stats.UsersPlanned) * PercentageMultiplier
	}

	if stats.Duration > 0 {
		sessionsPerSecond = float64(stats.SessionsCompleted) / stats.Duration.Seconds()
	}

	logger.Get().Info(context.Background(), "final statistics",
		logger.Int("usersPlanned", stats.UsersPlanned),
		logger.Int("sessionsCompleted", stats.SessionsCompleted),
		logger.Int("sessionsFailed", stats.SessionsFailed),
		logger.Int("heartbeatsSent", stats.HeartbeatsSent),
		logger.Int("ranksRetrieved", stats.RanksRetrieved),
		logger.Int("leaderboardEntries", stats.LeaderboardEntries),
		logger.String("duration", stats.Duration.String()),
		logger.Float64("successRate", successRate),
		logger.Float64("sessionsPerSecond", sessionsPerSecond))
}
