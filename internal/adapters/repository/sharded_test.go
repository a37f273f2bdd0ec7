package repository

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/zensu/focusflow/internal/domain/types"
	"github.com/zensu/focusflow/pkg/clock"
	"github.com/zensu/focusflow/pkg/logger"
)

func init() {
	// Initialize logging for tests
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

const (
	testScope = "global"
	testDay   = "2024-03-10"
)

func newTestStore(opts ...Option) (*ShardedStore, *clock.Fake) {
	fake := clock.NewFake(time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC))
	all := append([]Option{
		WithStoreClock(fake),
		WithSweepInterval(time.Hour),
	}, opts...)
	return NewShardedStore(context.Background(), all...), fake
}

func TestShardedStoreIncrement(t *testing.T) {
	ctx := context.Background()

	Convey("Given an empty store", t, func() {
		s, _ := newTestStore()
		defer s.Close()

		Convey("increments accumulate per user", func() {
			total, err := s.Increment(ctx, testScope, testDay, "alice", 30)
			So(err, ShouldBeNil)
			So(total, ShouldEqual, int64(30))

			total, err = s.Increment(ctx, testScope, testDay, "alice", 15)
			So(err, ShouldBeNil)
			So(total, ShouldEqual, int64(45))

			sec, err := s.UserSeconds(ctx, testScope, testDay, "alice")
			So(err, ShouldBeNil)
			So(sec, ShouldEqual, int64(45))
		})

		Convey("a non-positive increment changes nothing", func() {
			_, err := s.Increment(ctx, testScope, testDay, "alice", 30)
			So(err, ShouldBeNil)

			total, err := s.Increment(ctx, testScope, testDay, "alice", 0)
			So(err, ShouldBeNil)
			So(total, ShouldEqual, int64(30))
		})

		Convey("unknown users and shards read as zero", func() {
			sec, err := s.UserSeconds(ctx, testScope, testDay, "nobody")
			So(err, ShouldBeNil)
			So(sec, ShouldEqual, int64(0))

			top, err := s.TopN(ctx, "other-scope", testDay, 10)
			So(err, ShouldBeNil)
			So(top, ShouldBeEmpty)
		})

		Convey("scopes and days do not bleed into each other", func() {
			_, err := s.Increment(ctx, "global", testDay, "alice", 10)
			So(err, ShouldBeNil)
			_, err = s.Increment(ctx, "class-7b", testDay, "alice", 20)
			So(err, ShouldBeNil)
			_, err = s.Increment(ctx, "global", "2024-03-11", "alice", 40)
			So(err, ShouldBeNil)

			sec, _ := s.UserSeconds(ctx, "global", testDay, "alice")
			So(sec, ShouldEqual, int64(10))
			sec, _ = s.UserSeconds(ctx, "class-7b", testDay, "alice")
			So(sec, ShouldEqual, int64(20))
			sec, _ = s.UserSeconds(ctx, "global", "2024-03-11", "alice")
			So(sec, ShouldEqual, int64(40))
		})
	})
}

func TestShardedStoreConcurrency(t *testing.T) {
	ctx := context.Background()

	Convey("Concurrent increments lose nothing", t, func() {
		s, _ := newTestStore()
		defer s.Close()

		const users = 8
		const perUser = 200

		var wg sync.WaitGroup
		for u := 0; u < users; u++ {
			userID := fmt.Sprintf("user-%d", u)
			for w := 0; w < 4; w++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for i := 0; i < perUser/4; i++ {
						_, _ = s.Increment(ctx, testScope, testDay, userID, 1)
					}
				}()
			}
		}
		wg.Wait()

		for u := 0; u < users; u++ {
			sec, err := s.UserSeconds(ctx, testScope, testDay, fmt.Sprintf("user-%d", u))
			So(err, ShouldBeNil)
			So(sec, ShouldEqual, int64(perUser))
		}
		So(s.Count(ctx, testScope, testDay), ShouldEqual, users)
	})
}

func TestShardedStoreTopN(t *testing.T) {
	ctx := context.Background()

	Convey("Given a board with ties", t, func() {
		s, _ := newTestStore()
		defer s.Close()

		seed := map[string]int64{
			"dora":    300,
			"alice":   500,
			"charlie": 300,
			"bob":     500,
			"eve":     100,
		}
		for id, sec := range seed {
			_, err := s.Increment(ctx, testScope, testDay, id, sec)
			So(err, ShouldBeNil)
		}

		Convey("ordering is seconds DESC, userID ASC", func() {
			top, err := s.TopN(ctx, testScope, testDay, 10)
			So(err, ShouldBeNil)
			So(top, ShouldResemble, []types.Entry{
				{Rank: 1, UserID: "alice", Seconds: 500},
				{Rank: 1, UserID: "bob", Seconds: 500},
				{Rank: 2, UserID: "charlie", Seconds: 300},
				{Rank: 2, UserID: "dora", Seconds: 300},
				{Rank: 3, UserID: "eve", Seconds: 100},
			})
		})

		Convey("repeated queries are deterministic", func() {
			first, err := s.TopN(ctx, testScope, testDay, 3)
			So(err, ShouldBeNil)
			for i := 0; i < 5; i++ {
				again, err := s.TopN(ctx, testScope, testDay, 3)
				So(err, ShouldBeNil)
				So(again, ShouldResemble, first)
			}
		})

		Convey("the limit truncates the board", func() {
			top, err := s.TopN(ctx, testScope, testDay, 2)
			So(err, ShouldBeNil)
			So(len(top), ShouldEqual, 2)
			So(top[0].UserID, ShouldEqual, "alice")
			So(top[1].UserID, ShouldEqual, "bob")
		})

		Convey("an invalid limit is rejected", func() {
			_, err := s.TopN(ctx, testScope, testDay, 0)
			So(err, ShouldEqual, ErrInvalidLimit)
		})

		Convey("Rank matches the board positions", func() {
			for _, want := range []types.Entry{
				{Rank: 1, UserID: "alice", Seconds: 500},
				{Rank: 1, UserID: "bob", Seconds: 500},
				{Rank: 2, UserID: "dora", Seconds: 300},
				{Rank: 3, UserID: "eve", Seconds: 100},
			} {
				got, err := s.Rank(ctx, testScope, testDay, want.UserID)
				So(err, ShouldBeNil)
				So(got, ShouldResemble, want)
			}
		})

		Convey("Rank for an unknown user is ErrNotFound", func() {
			_, err := s.Rank(ctx, testScope, testDay, "nobody")
			So(err, ShouldEqual, ErrNotFound)
		})

		Convey("an overtake reorders the board", func() {
			_, err := s.Increment(ctx, testScope, testDay, "eve", 1000)
			So(err, ShouldBeNil)

			top, err := s.TopN(ctx, testScope, testDay, 1)
			So(err, ShouldBeNil)
			So(top[0].UserID, ShouldEqual, "eve")
			So(top[0].Seconds, ShouldEqual, int64(1100))
		})
	})
}

func TestShardedStoreRetention(t *testing.T) {
	ctx := context.Background()

	Convey("Given a shard written at noon", t, func() {
		s, fake := newTestStore()
		defer s.Close()

		_, err := s.Increment(ctx, testScope, testDay, "alice", 600)
		So(err, ShouldBeNil)

		Convey("47 hours later the day is still queryable", func() {
			fake.Advance(47 * time.Hour)
			top, err := s.TopN(ctx, testScope, testDay, 10)
			So(err, ShouldBeNil)
			So(len(top), ShouldEqual, 1)
			So(top[0].Seconds, ShouldEqual, int64(600))
		})

		Convey("49 hours later the shard is gone", func() {
			fake.Advance(49 * time.Hour)
			top, err := s.TopN(ctx, testScope, testDay, 10)
			So(err, ShouldBeNil)
			So(top, ShouldBeEmpty)

			sec, err := s.UserSeconds(ctx, testScope, testDay, "alice")
			So(err, ShouldBeNil)
			So(sec, ShouldEqual, int64(0))

			_, err = s.Rank(ctx, testScope, testDay, "alice")
			So(err, ShouldEqual, ErrNotFound)
		})

		Convey("a write after expiry starts a fresh shard", func() {
			fake.Advance(49 * time.Hour)
			total, err := s.Increment(ctx, testScope, testDay, "alice", 5)
			So(err, ShouldBeNil)
			So(total, ShouldEqual, int64(5))
		})

		Convey("the sweep drops expired shards", func() {
			fake.Advance(49 * time.Hour)
			s.sweep(ctx)
			So(s.ShardCount(), ShouldEqual, 0)
		})

		Convey("retention below the 48h floor is clamped", func() {
			short := NewShardedStore(ctx,
				WithStoreClock(fake),
				WithRetention(time.Hour),
				WithSweepInterval(time.Hour),
			)
			defer short.Close()

			_, err := short.Increment(ctx, testScope, testDay, "bob", 60)
			So(err, ShouldBeNil)
			fake.Advance(47 * time.Hour)
			sec, err := short.UserSeconds(ctx, testScope, testDay, "bob")
			So(err, ShouldBeNil)
			So(sec, ShouldEqual, int64(60))
		})
	})
}

func TestShardedStoreSnapshot(t *testing.T) {
	ctx := context.Background()

	Convey("Given a store with snapshot persistence", t, func() {
		dir := t.TempDir()
		path := filepath.Join(dir, "leaderboard.json.gz")

		fake := clock.NewFake(time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC))
		s := NewShardedStore(ctx,
			WithStoreClock(fake),
			WithSweepInterval(time.Hour),
			WithSnapshot(path, time.Hour),
		)

		_, err := s.Increment(ctx, "global", testDay, "alice", 500)
		So(err, ShouldBeNil)
		_, err = s.Increment(ctx, "global", testDay, "bob", 300)
		So(err, ShouldBeNil)
		_, err = s.Increment(ctx, "class-7b", testDay, "alice", 120)
		So(err, ShouldBeNil)

		Convey("a restart restores every live shard", func() {
			So(s.Close(), ShouldBeNil)

			restored := NewShardedStore(ctx,
				WithStoreClock(fake),
				WithSweepInterval(time.Hour),
				WithSnapshot(path, time.Hour),
			)
			defer restored.Close()

			top, err := restored.TopN(ctx, "global", testDay, 10)
			So(err, ShouldBeNil)
			So(top, ShouldResemble, []types.Entry{
				{Rank: 1, UserID: "alice", Seconds: 500},
				{Rank: 2, UserID: "bob", Seconds: 300},
			})

			sec, err := restored.UserSeconds(ctx, "class-7b", testDay, "alice")
			So(err, ShouldBeNil)
			So(sec, ShouldEqual, int64(120))
		})

		Convey("expired shards are skipped on load", func() {
			So(s.Close(), ShouldBeNil)

			fake.Advance(50 * time.Hour)
			restored := NewShardedStore(ctx,
				WithStoreClock(fake),
				WithSweepInterval(time.Hour),
				WithSnapshot(path, time.Hour),
			)
			defer restored.Close()

			So(restored.ShardCount(), ShouldEqual, 0)
		})

		Convey("a missing snapshot file is not an error", func() {
			s.Close()
			fresh := NewShardedStore(ctx,
				WithStoreClock(fake),
				WithSweepInterval(time.Hour),
				WithSnapshot(filepath.Join(dir, "absent.json.gz"), time.Hour),
			)
			defer fresh.Close()
			So(fresh.ShardCount(), ShouldEqual, 0)
		})
	})
}
