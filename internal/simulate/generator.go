package simulate

import (
	"context"
	"crypto/rand"
	"math/big"

	"github.com/google/uuid"
	"github.com/zensu/focusflow/pkg/logger"
)

// Constants for random number generation.
const (
	sessionShapeDivisor = 8
	interruptDivisor    = 5
)

// Constants for heartbeat count ranges per session shape.
const (
	quickSessionMin      = 2
	quickSessionRange    = 4
	shortSessionMin      = 5
	shortSessionRange    = 6
	typicalSessionMin    = 10
	typicalSessionRange  = 11
	longSessionMin       = 20
	longSessionRange     = 16
	marathonSessionMin   = 40
	marathonSessionRange = 21
)

// Constants for session shape cases.
const (
	caseQuickSession    = 0
	caseShortSession    = 1
	caseTypicalSession  = 2
	caseLongSession     = 3
	caseMarathonSession = 4
)

// timezones is the pool synthetic users are spread across. Mixing
// offsets on both sides of UTC exercises local-day attribution.
var timezones = []string{
	"UTC",
	"Asia/Tokyo",
	"Asia/Kolkata",
	"Europe/Berlin",
	"Europe/London",
	"America/New_York",
	"America/Sao_Paulo",
	"Australia/Sydney",
}

// subjects is the pool of study subjects assigned to sessions.
var subjects = []string{
	"math",
	"physics",
	"history",
	"language",
	"music",
	"programming",
}

// randomInt returns a uniform random int in [0, n) using crypto/rand.
func randomInt(n int64) int64 {
	v, _ := rand.Int(rand.Reader, big.NewInt(n))
	return v.Int64()
}

// generatePlans creates the specified number of user session plans
// with unique user IDs spread across the timezone pool.
func generatePlans(ctx context.Context, config *Config, stats *Stats) ([]UserPlan, error) {
	logger.Get().Info(ctx, "generating session plans", logger.Int("numUsers", config.NumUsers))

	plans := make([]UserPlan, config.NumUsers)
	for i := range plans {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		plans[i] = generateSinglePlan()
	}

	stats.UsersPlanned = len(plans)
	logger.Get().Info(ctx, "generated session plans", logger.Int("count", len(plans)))

	return plans, nil
}

// generateSinglePlan creates one synthetic user plan.
func generateSinglePlan() UserPlan {
	return UserPlan{
		UserID:     uuid.New().String(),
		SubjectID:  subjects[randomInt(int64(len(subjects)))],
		Timezone:   timezones[randomInt(int64(len(timezones)))],
		Heartbeats: generateHeartbeatCount(),
		Interrupt:  randomInt(interruptDivisor) == 0,
	}
}

// generateHeartbeatCount draws a session length from a skewed
// distribution so the leaderboard gets a meaningful spread.
func generateHeartbeatCount() int {
	switch randomInt(sessionShapeDivisor) {
	case caseQuickSession:
		// Quick check-ins (2-5 heartbeats)
		return quickSessionMin + int(randomInt(quickSessionRange))
	case caseShortSession:
		// Short sessions (5-10)
		return shortSessionMin + int(randomInt(shortSessionRange))
	case caseLongSession:
		// Long sessions (20-35)
		return longSessionMin + int(randomInt(longSessionRange))
	case caseMarathonSession:
		// Marathon sessions (40-60) - rare
		return marathonSessionMin + int(randomInt(marathonSessionRange))
	default:
		// Typical sessions (10-20) - most common
		return typicalSessionMin + int(randomInt(typicalSessionRange))
	}
}
