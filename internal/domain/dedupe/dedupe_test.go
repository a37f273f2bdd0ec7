package dedupe_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/zensu/focusflow/internal/domain/dedupe"
)

func TestCacheDeduper(t *testing.T) {
	Convey("Given a new cache deduper", t, func() {
		d := dedupe.NewCacheDeduper(
			dedupe.WithCacheSizeMB(1),
			dedupe.WithTTLSeconds(60),
		)
		ctx := context.Background()

		Convey("When recording a fresh id", func() {
			first := d.SeenAndRecord(ctx, "session-1#1")

			Convey("Then it reports unseen and is recorded", func() {
				So(first, ShouldBeFalse)
				So(d.Size(), ShouldEqual, 1)
			})

			Convey("And recording the same id again reports seen", func() {
				So(d.SeenAndRecord(ctx, "session-1#1"), ShouldBeTrue)
				So(d.Size(), ShouldEqual, 1)
			})
		})

		Convey("When unrecording an id", func() {
			d.SeenAndRecord(ctx, "session-1#2")
			d.Unrecord(ctx, "session-1#2")

			Convey("Then it can be recorded again", func() {
				So(d.SeenAndRecord(ctx, "session-1#2"), ShouldBeFalse)
			})
		})

		Convey("When unrecording a nonexistent id", func() {
			So(func() { d.Unrecord(ctx, "never-seen") }, ShouldNotPanic)
			So(d.Size(), ShouldEqual, 0)
		})

		Convey("When many goroutines race on the same id", func() {
			const goroutines = 32
			var wg sync.WaitGroup
			var mu sync.Mutex
			fresh := 0

			wg.Add(goroutines)
			for i := 0; i < goroutines; i++ {
				go func() {
					defer wg.Done()
					if !d.SeenAndRecord(ctx, "contended") {
						mu.Lock()
						fresh++
						mu.Unlock()
					}
				}()
			}
			wg.Wait()

			Convey("Then exactly one wins", func() {
				So(fresh, ShouldEqual, 1)
			})
		})

		Convey("When recording many distinct ids", func() {
			for i := 0; i < 1000; i++ {
				So(d.SeenAndRecord(ctx, fmt.Sprintf("s#%d", i)), ShouldBeFalse)
			}

			Convey("Then all are tracked", func() {
				So(d.Size(), ShouldEqual, 1000)
			})
		})
	})
}
