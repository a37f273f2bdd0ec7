package store_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/zensu/focusflow/internal/domain/model"
	"github.com/zensu/focusflow/internal/session/store"
)

func record(userID string) model.SessionRecord {
	return model.SessionRecord{
		SessionID: "sess-" + userID,
		UserID:    userID,
		SubjectID: "math",
		Timezone:  "Asia/Tokyo",
		Scopes:    []string{"global"},
		Start:     time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC),
		State:     model.StateActive,
	}
}

func TestMemoryStore(t *testing.T) {
	Convey("Given a memory store", t, func() {
		s := store.NewMemoryStore()
		ctx := context.Background()

		Convey("When getting a missing user", func() {
			_, err := s.Get(ctx, "nobody")
			So(errors.Is(err, store.ErrNotFound), ShouldBeTrue)
		})

		Convey("When putting and getting a record", func() {
			So(s.Put(ctx, record("u1")), ShouldBeNil)
			got, err := s.Get(ctx, "u1")
			So(err, ShouldBeNil)
			So(got.SessionID, ShouldEqual, "sess-u1")

			Convey("And mutating the returned record does not leak back", func() {
				got.Scopes[0] = "mutated"
				again, err := s.Get(ctx, "u1")
				So(err, ShouldBeNil)
				So(again.Scopes[0], ShouldEqual, "global")
			})
		})

		Convey("When deleting", func() {
			So(s.Put(ctx, record("u2")), ShouldBeNil)
			So(s.Delete(ctx, "u2"), ShouldBeNil)
			_, err := s.Get(ctx, "u2")
			So(errors.Is(err, store.ErrNotFound), ShouldBeTrue)

			Convey("And deleting again is not an error", func() {
				So(s.Delete(ctx, "u2"), ShouldBeNil)
			})
		})

		Convey("When listing all records", func() {
			So(s.Put(ctx, record("a")), ShouldBeNil)
			So(s.Put(ctx, record("b")), ShouldBeNil)
			all, err := s.All(ctx)
			So(err, ShouldBeNil)
			So(len(all), ShouldEqual, 2)
		})
	})
}

func TestFileStore(t *testing.T) {
	Convey("Given a file store in a temp dir", t, func() {
		path := filepath.Join(t.TempDir(), "sessions.json")
		s, err := store.NewFileStore(path)
		So(err, ShouldBeNil)
		ctx := context.Background()

		Convey("When putting a record and reopening the store", func() {
			So(s.Put(ctx, record("u1")), ShouldBeNil)

			reopened, err := store.NewFileStore(path)
			So(err, ShouldBeNil)

			Convey("Then the record survives the restart", func() {
				got, err := reopened.Get(ctx, "u1")
				So(err, ShouldBeNil)
				So(got.SessionID, ShouldEqual, "sess-u1")
				So(got.Timezone, ShouldEqual, "Asia/Tokyo")
				So(got.Start.Equal(time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)), ShouldBeTrue)
			})
		})

		Convey("When deleting a record and reopening", func() {
			So(s.Put(ctx, record("u2")), ShouldBeNil)
			So(s.Delete(ctx, "u2"), ShouldBeNil)

			reopened, err := store.NewFileStore(path)
			So(err, ShouldBeNil)
			_, err = reopened.Get(ctx, "u2")
			So(errors.Is(err, store.ErrNotFound), ShouldBeTrue)
		})

		Convey("When opening a store on a missing file", func() {
			fresh, err := store.NewFileStore(filepath.Join(t.TempDir(), "absent.json"))
			So(err, ShouldBeNil)
			all, err := fresh.All(ctx)
			So(err, ShouldBeNil)
			So(len(all), ShouldEqual, 0)
		})

		Convey("When multiple users are stored", func() {
			So(s.Put(ctx, record("a")), ShouldBeNil)
			So(s.Put(ctx, record("b")), ShouldBeNil)
			So(s.Put(ctx, record("c")), ShouldBeNil)

			reopened, err := store.NewFileStore(path)
			So(err, ShouldBeNil)
			all, err := reopened.All(ctx)
			So(err, ShouldBeNil)
			So(len(all), ShouldEqual, 3)
		})
	})
}
