package simulate

import (
	"fmt"
	"log"
	"sort"
)

// verifyResults checks the leaderboard invariants against the ranks
// the service handed back per user.
func verifyResults(config *Config, ranks, leaderboard []Entry) error {
	log.Println("🔍 Verifying results...")

	if len(ranks) == 0 {
		return fmt.Errorf("no ranks to verify")
	}

	if len(leaderboard) > 0 {
		if err := verifyLeaderboardOrdering(leaderboard); err != nil {
			return fmt.Errorf("leaderboard ordering violated: %w", err)
		}
		log.Println("✅ Leaderboard ordering verified")

		if err := verifyDenseRanks(leaderboard); err != nil {
			return fmt.Errorf("rank numbering violated: %w", err)
		}
		log.Println("✅ Dense rank numbering verified")
	}

	displayTopPerformers(ranks, leaderboard, config.Verbose)

	log.Println("✅ Result verification completed")
	return nil
}

// verifyLeaderboardOrdering checks seconds descending with user ID as
// the tiebreaker.
func verifyLeaderboardOrdering(leaderboard []Entry) error {
	for i := 1; i < len(leaderboard); i++ {
		prev, cur := leaderboard[i-1], leaderboard[i]
		if cur.Seconds > prev.Seconds {
			return fmt.Errorf("entry %d (%d seconds) outranks entry %d (%d seconds)",
				i, cur.Seconds, i-1, prev.Seconds)
		}
		if cur.Seconds == prev.Seconds && cur.UserID < prev.UserID {
			return fmt.Errorf("tie between entries %d and %d not broken by user ID", i-1, i)
		}
	}
	return nil
}

// verifyDenseRanks checks that tied totals share a rank and each new
// total advances the rank by exactly one.
func verifyDenseRanks(leaderboard []Entry) error {
	if leaderboard[0].Rank != 1 {
		return fmt.Errorf("top entry has rank %d, want 1", leaderboard[0].Rank)
	}
	for i := 1; i < len(leaderboard); i++ {
		prev, cur := leaderboard[i-1], leaderboard[i]
		switch {
		case cur.Seconds == prev.Seconds && cur.Rank != prev.Rank:
			return fmt.Errorf("entries %d and %d tie on seconds but carry ranks %d and %d",
				i-1, i, prev.Rank, cur.Rank)
		case cur.Seconds < prev.Seconds && cur.Rank != prev.Rank+1:
			return fmt.Errorf("entry %d has rank %d after rank %d", i, cur.Rank, prev.Rank)
		}
	}
	return nil
}

// displayTopPerformers shows the top users from ranks and leaderboard.
func displayTopPerformers(ranks, leaderboard []Entry, verbose bool) {
	sorted := make([]Entry, len(ranks))
	copy(sorted, ranks)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Seconds != sorted[j].Seconds {
			return sorted[i].Seconds > sorted[j].Seconds
		}
		return sorted[i].UserID < sorted[j].UserID
	})

	topN := 10
	if len(sorted) < topN {
		topN = len(sorted)
	}

	log.Printf("🏆 Top %d users from per-user ranks:", topN)
	for i := 0; i < topN; i++ {
		entry := sorted[i]
		log.Printf("   %d. %s - %ds (rank %d)", i+1, entry.UserID, entry.Seconds, entry.Rank)
	}

	if len(leaderboard) > 0 {
		boardTopN := topN
		if len(leaderboard) < boardTopN {
			boardTopN = len(leaderboard)
		}

		log.Printf("🥇 Top %d entries from leaderboard:", boardTopN)
		for i := 0; i < boardTopN; i++ {
			entry := leaderboard[i]
			log.Printf("   %d. %s - %ds (rank %d)", i+1, entry.UserID, entry.Seconds, entry.Rank)
		}
	}

	if verbose && len(sorted) > 0 {
		var sum int64
		for _, entry := range sorted {
			sum += entry.Seconds
		}
		log.Printf(`📊 Focus seconds statistics:
   Average: %.1f
   Maximum: %d
   Minimum: %d
`, float64(sum)/float64(len(sorted)), sorted[0].Seconds, sorted[len(sorted)-1].Seconds)
	}
}
