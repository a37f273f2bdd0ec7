package simulate

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	json "github.com/goccy/go-json"
)

// retrieveRanks fetches the per-user rank for every completed session
// concurrently.
func retrieveRanks(ctx context.Context, config *Config, plans []UserPlan, stats *Stats) ([]Entry, error) {
	log.Printf("🏆 Retrieving ranks for %d users with %d workers...", len(plans), config.Workers)

	client := newHTTPClient(config.Timeout)

	ranks := make([]Entry, len(plans))
	var (
		retrieved int64
		failed    int64
	)

	var lastReport time.Time
	reportInterval := 1 * time.Second

	indexChan := make(chan int, config.Workers*WorkerChannelMultiplier)
	var wg sync.WaitGroup

	for i := 0; i < config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			for index := range indexChan {
				select {
				case <-ctx.Done():
					return
				default:
				}

				plan := plans[index]
				entry, err := retrieveSingleRank(ctx, client, config, plan)
				if err != nil {
					atomic.AddInt64(&failed, 1)
					if config.Verbose {
						log.Printf("⚠️  Failed to get rank for %s: %v", plan.UserID, err)
					}
				} else {
					ranks[index] = entry
					atomic.AddInt64(&retrieved, 1)
				}

				if time.Since(lastReport) >= reportInterval {
					lastReport = time.Now()
					total := atomic.LoadInt64(&retrieved) + atomic.LoadInt64(&failed)
					log.Printf("📊 Rank progress: %d/%d (success: %d, failed: %d)",
						total, len(plans), atomic.LoadInt64(&retrieved), atomic.LoadInt64(&failed))
				}
			}
		}()
	}

	go func() {
		defer close(indexChan)
		for i := range plans {
			select {
			case <-ctx.Done():
				return
			case indexChan <- i:
			}
		}
	}()

	wg.Wait()

	// Filter out empty entries (failed retrievals).
	validRanks := make([]Entry, 0, len(ranks))
	for _, entry := range ranks {
		if entry.UserID != "" {
			validRanks = append(validRanks, entry)
		}
	}

	stats.RanksRetrieved = len(validRanks)

	log.Printf(`✅ Rank retrieval completed:
   Retrieved: %d
   Failed: %d
`, len(validRanks), int(atomic.LoadInt64(&failed)))

	return validRanks, nil
}

// retrieveSingleRank fetches one user's rank in their own timezone's
// current day.
func retrieveSingleRank(ctx context.Context, client *HTTPClient, config *Config, plan UserPlan) (Entry, error) {
	u := fmt.Sprintf("%s/rank/%s?scope=%s&tz=%s",
		config.BaseURL, plan.UserID, url.QueryEscape(config.Scope), url.QueryEscape(plan.Timezone))

	resp, err := client.Get(ctx, u)
	if err != nil {
		return Entry{}, fmt.Errorf("request failed: %w", err)
	}

	body, err := readResponseBody(resp)
	if err != nil {
		return Entry{}, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != StatusOK {
		return Entry{}, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}

	var entry Entry
	if err := json.Unmarshal(body, &entry); err != nil {
		return Entry{}, fmt.Errorf("failed to parse response: %w", err)
	}

	return entry, nil
}

// getLeaderboard retrieves the top N entries for the UTC day.
func getLeaderboard(ctx context.Context, config *Config, stats *Stats) ([]Entry, error) {
	log.Printf("🥇 Getting top %d leaderboard entries...", config.TopN)

	client := newHTTPClient(config.Timeout)
	u := fmt.Sprintf("%s/leaderboard?scope=%s&tz=UTC&limit=%d",
		config.BaseURL, url.QueryEscape(config.Scope), config.TopN)

	resp, err := client.Get(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	body, err := readResponseBody(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}

	var leaderboard []Entry
	if err := json.Unmarshal(body, &leaderboard); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	stats.LeaderboardEntries = len(leaderboard)
	log.Printf("✅ Retrieved %d leaderboard entries", len(leaderboard))

	return leaderboard, nil
}
