package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/zensu/focusflow/internal/adapters/mq/queue"
	"github.com/zensu/focusflow/internal/domain/model"
	"github.com/zensu/focusflow/pkg/logger"
	"github.com/zensu/focusflow/pkg/retry"
)

func init() {
	// Initialize logging for tests
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

// recordingApplier captures increments keyed by scope/day/user.
type recordingApplier struct {
	mu       sync.Mutex
	totals   map[string]int64
	failures int
}

func newRecordingApplier() *recordingApplier {
	return &recordingApplier{totals: make(map[string]int64)}
}

func (a *recordingApplier) Increment(_ context.Context, scope, day, userID string, seconds int64) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.failures > 0 {
		a.failures--
		return 0, errors.New("transient store failure")
	}
	key := scope + "/" + day + "/" + userID
	a.totals[key] += seconds
	return a.totals[key], nil
}

func (a *recordingApplier) total(key string) int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.totals[key]
}

func delta(id, tz string, at time.Time, scopes []string, seconds int64) Delta {
	return model.HeartbeatDelta{
		DeltaID:  id,
		UserID:   "alice",
		Seconds:  seconds,
		Timezone: tz,
		Scopes:   scopes,
		At:       at,
	}
}

func fastRetrier() *retry.Retrier {
	return retry.New(
		retry.WithMaxAttempts(3),
		retry.WithInitialDelay(time.Millisecond),
		retry.WithMaxDelay(5*time.Millisecond),
	)
}

func TestInMemoryWorker(t *testing.T) {
	convey.Convey("Given a worker over a queue and applier", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		q := queue.NewInMemoryQueue(queue.WithCapacity(100))
		applier := newRecordingApplier()
		w := NewInMemoryWorker(q, applier, WithRetrier(fastRetrier()))
		go w.Run(ctx)

		at := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

		convey.Convey("When a delta with two scopes arrives", func() {
			q.Enqueue(ctx, delta("s-1#1", "UTC", at, []string{"global", "class-7b"}, 30))

			convey.Convey("Then both scope shards receive the seconds", func() {
				convey.So(waitFor(func() bool {
					return applier.total("global/2024-03-10/alice") == 30 &&
						applier.total("class-7b/2024-03-10/alice") == 30
				}), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the delta's timezone is ahead of UTC", func() {
			// 23:30 in Tokyo is 14:30 UTC of the same date; the day key
			// must follow the session's local calendar.
			tokyoEvening := time.Date(2024, 3, 10, 14, 30, 0, 0, time.UTC)
			q.Enqueue(ctx, delta("s-1#2", "Asia/Tokyo", tokyoEvening, []string{"global"}, 10))

			convey.Convey("Then the increment lands in the local day", func() {
				convey.So(waitFor(func() bool {
					return applier.total("global/2024-03-10/alice") == 10
				}), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the timezone cannot be resolved", func() {
			q.Enqueue(ctx, delta("s-1#3", "Not/AZone", at, []string{"global"}, 7))

			convey.Convey("Then the seconds are counted under UTC instead of dropped", func() {
				convey.So(waitFor(func() bool {
					return applier.total("global/2024-03-10/alice") == 7
				}), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the store fails transiently", func() {
			applier.mu.Lock()
			applier.failures = 2
			applier.mu.Unlock()
			q.Enqueue(ctx, delta("s-1#4", "UTC", at, []string{"global"}, 12))

			convey.Convey("Then the increment is retried until it lands", func() {
				convey.So(waitFor(func() bool {
					return applier.total("global/2024-03-10/alice") == 12
				}), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When shutting down", func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Second)
			defer shutdownCancel()

			convey.Convey("Then it stops cleanly", func() {
				convey.So(w.Shutdown(shutdownCtx), convey.ShouldBeNil)
			})
		})
	})
}

func TestWorkerPool(t *testing.T) {
	convey.Convey("Given a pool of workers", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		q := queue.NewInMemoryQueue(queue.WithCapacity(1000))
		applier := newRecordingApplier()
		pool := NewPool(4, q, applier, WithRetrier(fastRetrier()))
		pool.Start(ctx)

		convey.Convey("it reports its size", func() {
			convey.So(pool.Size(), convey.ShouldEqual, 4)
		})

		convey.Convey("When many deltas are enqueued", func() {
			at := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
			for i := 0; i < 100; i++ {
				q.Enqueue(ctx, delta("s-1#x", "UTC", at, []string{"global"}, 1))
			}

			convey.Convey("Then every delta is applied exactly once", func() {
				convey.So(waitFor(func() bool {
					return applier.total("global/2024-03-10/alice") == 100
				}), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When shutting down the pool", func() {
			convey.Convey("Then the backlog drains before workers stop", func() {
				at := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
				for i := 0; i < 50; i++ {
					q.Enqueue(ctx, delta("s-1#y", "UTC", at, []string{"global"}, 2))
				}
				convey.So(pool.Shutdown(context.Background()), convey.ShouldBeNil)
				convey.So(applier.total("global/2024-03-10/alice"), convey.ShouldEqual, int64(100))
			})
		})

		convey.Convey("A pool with an invalid count falls back to a default", func() {
			fallback := NewPool(0, q, applier)
			convey.So(fallback.Size(), convey.ShouldBeGreaterThan, 0)
		})
	})
}

// waitFor polls cond for up to two seconds.
func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}
