package simulate

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	json "github.com/goccy/go-json"
)

// HTTPClient wraps http.Client with a request timeout.
type HTTPClient struct {
	client  *http.Client
	timeout time.Duration
}

// newHTTPClient creates a new HTTP client with timeout.
func newHTTPClient(timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		client: &http.Client{
			Timeout: timeout,
		},
		timeout: timeout,
	}
}

// Get performs a GET request.
func (c *HTTPClient) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return c.client.Do(req)
}

// Post performs a POST request with a JSON body.
func (c *HTTPClient) Post(ctx context.Context, url string, body interface{}) (*http.Response, error) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	return c.client.Do(req)
}

// readResponseBody reads and closes the response body.
func readResponseBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

// driveSessions runs every user plan concurrently: start the session,
// pace the heartbeats, optionally flag an interruption, then complete.
func driveSessions(ctx context.Context, config *Config, plans []UserPlan, stats *Stats) error {
	log.Printf("🎯 Driving %d sessions with %d workers (pace %s)...", len(plans), config.Workers, config.Pace)

	client := newHTTPClient(config.Timeout)

	var (
		started    int64
		completed  int64
		failed     int64
		heartbeats int64
	)

	var lastReport time.Time
	reportInterval := 1 * time.Second

	planChan := make(chan UserPlan, config.Workers*WorkerChannelMultiplier)
	var wg sync.WaitGroup

	for i := 0; i < config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			for plan := range planChan {
				select {
				case <-ctx.Done():
					return
				default:
				}

				sent, err := driveSingleSession(ctx, client, config, plan)
				atomic.AddInt64(&heartbeats, int64(sent))
				if err != nil {
					atomic.AddInt64(&failed, 1)
					if config.Verbose {
						log.Printf("⚠️  Session for %s failed: %v", plan.UserID, err)
					}
				} else {
					atomic.AddInt64(&started, 1)
					atomic.AddInt64(&completed, 1)
				}

				if time.Since(lastReport) >= reportInterval {
					lastReport = time.Now()
					done := atomic.LoadInt64(&completed) + atomic.LoadInt64(&failed)
					log.Printf("📊 Progress: %d/%d sessions (completed: %d, failed: %d, heartbeats: %d)",
						done, len(plans), atomic.LoadInt64(&completed), atomic.LoadInt64(&failed), atomic.LoadInt64(&heartbeats))
				}
			}
		}()
	}

	go func() {
		defer close(planChan)
		for _, plan := range plans {
			select {
			case <-ctx.Done():
				return
			case planChan <- plan:
			}
		}
	}()

	wg.Wait()

	stats.SessionsStarted = int(atomic.LoadInt64(&started))
	stats.SessionsCompleted = int(atomic.LoadInt64(&completed))
	stats.SessionsFailed = int(atomic.LoadInt64(&failed))
	stats.HeartbeatsSent = int(atomic.LoadInt64(&heartbeats))

	log.Printf(`✅ Session driving completed:
   Completed: %d
   Failed: %d
   Heartbeats: %d
`, stats.SessionsCompleted, stats.SessionsFailed, stats.HeartbeatsSent)

	return nil
}

// driveSingleSession walks one plan through the full session lifecycle.
// It returns the number of heartbeats delivered.
func driveSingleSession(ctx context.Context, client *HTTPClient, config *Config, plan UserPlan) (int, error) {
	startBody := map[string]interface{}{
		"user_id":    plan.UserID,
		"subject_id": plan.SubjectID,
		"timezone":   plan.Timezone,
		"scopes":     []string{config.Scope},
	}
	resp, err := client.Post(ctx, config.BaseURL+"/sessions/start", startBody)
	if err != nil {
		return 0, fmt.Errorf("start request failed: %w", err)
	}
	body, _ := readResponseBody(resp)
	if resp.StatusCode != StatusCreated {
		return 0, fmt.Errorf("start rejected with HTTP %d: %s", resp.StatusCode, string(body))
	}

	userBody := map[string]string{"user_id": plan.UserID}
	sent := 0
	for i := 0; i < plan.Heartbeats; i++ {
		select {
		case <-ctx.Done():
			return sent, ctx.Err()
		case <-time.After(config.Pace):
		}

		resp, err := client.Post(ctx, config.BaseURL+"/sessions/heartbeat", userBody)
		if err != nil {
			return sent, fmt.Errorf("heartbeat request failed: %w", err)
		}
		_, _ = readResponseBody(resp)
		if resp.StatusCode != StatusOK {
			return sent, fmt.Errorf("heartbeat rejected with HTTP %d", resp.StatusCode)
		}
		sent++

		// Flag an interruption roughly mid-session, then resume focus.
		if plan.Interrupt && i == plan.Heartbeats/2 {
			if err := postLifecycle(ctx, client, config.BaseURL+"/sessions/interrupt", userBody); err != nil {
				return sent, err
			}
			if err := postLifecycle(ctx, client, config.BaseURL+"/sessions/focus", userBody); err != nil {
				return sent, err
			}
		}
	}

	resp, err = client.Post(ctx, config.BaseURL+"/sessions/complete", userBody)
	if err != nil {
		return sent, fmt.Errorf("complete request failed: %w", err)
	}
	body, err = readResponseBody(resp)
	if err != nil {
		return sent, fmt.Errorf("failed to read complete response: %w", err)
	}
	if resp.StatusCode != StatusOK {
		return sent, fmt.Errorf("complete rejected with HTTP %d: %s", resp.StatusCode, string(body))
	}

	var done CompleteResponse
	if err := json.Unmarshal(body, &done); err != nil {
		return sent, fmt.Errorf("failed to parse complete response: %w", err)
	}
	if done.UserID != plan.UserID {
		return sent, fmt.Errorf("complete response user mismatch: got %s", done.UserID)
	}

	return sent, nil
}

// postLifecycle posts a lifecycle transition and checks for success.
func postLifecycle(ctx context.Context, client *HTTPClient, url string, body interface{}) error {
	resp, err := client.Post(ctx, url, body)
	if err != nil {
		return fmt.Errorf("lifecycle request failed: %w", err)
	}
	_, _ = readResponseBody(resp)
	if resp.StatusCode != StatusOK {
		return fmt.Errorf("lifecycle rejected with HTTP %d", resp.StatusCode)
	}
	return nil
}
