package simulate

import "time"

// Config holds configuration for a simulation run.
type Config struct {
	BaseURL    string        // Base URL of the service
	NumUsers   int           // Number of synthetic users to drive
	TopN       int           // Number of top entries to fetch
	Workers    int           // Number of concurrent workers
	Pace       time.Duration // Delay between heartbeats per user
	Timeout    time.Duration // HTTP request timeout
	OutputFile string        // Output file for the generated plan
	LogFile    string        // Log file for simulation output
	Scope      string        // Leaderboard scope to drive and query
	Verbose    bool          // Enable verbose logging
}

// UserPlan describes one synthetic user's focus session.
type UserPlan struct {
	UserID     string `json:"user_id"`
	SubjectID  string `json:"subject_id"`
	Timezone   string `json:"timezone"`
	Heartbeats int    `json:"heartbeats"`
	Interrupt  bool   `json:"interrupt"`
}

// Entry mirrors one leaderboard row returned by the service.
type Entry struct {
	Rank    int    `json:"rank"`
	UserID  string `json:"user_id"`
	Seconds int64  `json:"seconds"`
}

// CompleteResponse is the payload returned when a session completes.
type CompleteResponse struct {
	SessionID       string `json:"session_id"`
	UserID          string `json:"user_id"`
	DurationSeconds int64  `json:"duration_seconds"`
	Interruptions   int    `json:"interruptions"`
}

// Stats holds simulation statistics.
type Stats struct {
	UsersPlanned       int
	SessionsStarted    int
	SessionsCompleted  int
	SessionsFailed     int
	HeartbeatsSent     int
	RanksRetrieved     int
	LeaderboardEntries int
	StartTime          time.Time
	EndTime            time.Time
	Duration           time.Duration
}
