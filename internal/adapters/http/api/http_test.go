package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/zensu/focusflow/internal/adapters/http/api"
	"github.com/zensu/focusflow/internal/adapters/repository"
	"github.com/zensu/focusflow/internal/domain/daykey"
	"github.com/zensu/focusflow/internal/domain/model"
	"github.com/zensu/focusflow/internal/domain/types"
	"github.com/zensu/focusflow/internal/session"
)

// mockService implements api.Dependencies with scripted responses.
type mockService struct {
	startErr    error
	completeErr error
	sessionErr  error
	rankErr     error
	topNErr     error

	elapsed int64
	topN    []types.Entry
	rank    types.Entry
}

func (m *mockService) StartSession(_ context.Context, userID, subjectID, tz string, scopes []string) (model.SessionRecord, error) {
	if m.startErr != nil {
		return model.SessionRecord{}, m.startErr
	}
	if len(scopes) == 0 {
		scopes = []string{"global"}
	}
	return model.SessionRecord{
		SessionID: "s-1",
		UserID:    userID,
		SubjectID: subjectID,
		Timezone:  tz,
		Scopes:    scopes,
		Start:     time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC),
		State:     model.StateActive,
	}, nil
}

func (m *mockService) Heartbeat(_ context.Context, userID string) (int64, error) {
	if m.sessionErr != nil {
		return 0, m.sessionErr
	}
	return m.elapsed, nil
}

func (m *mockService) MarkInterrupted(_ context.Context, userID string) error  { return m.sessionErr }
func (m *mockService) MarkResumedFocus(_ context.Context, userID string) error { return m.sessionErr }

func (m *mockService) CompleteSession(_ context.Context, userID string) (model.CompletedSession, error) {
	if m.completeErr != nil {
		return model.CompletedSession{}, m.completeErr
	}
	return model.CompletedSession{
		SessionID:       "s-1",
		UserID:          userID,
		DurationSeconds: 1500,
		Interruptions:   2,
	}, nil
}

func (m *mockService) Elapsed(userID string) (int64, error) {
	if m.sessionErr != nil {
		return 0, m.sessionErr
	}
	return m.elapsed, nil
}

func (m *mockService) TopN(_ context.Context, scope, tz string, n int) ([]types.Entry, error) {
	if m.topNErr != nil {
		return nil, m.topNErr
	}
	if n > len(m.topN) {
		return m.topN, nil
	}
	return m.topN[:n], nil
}

func (m *mockService) Rank(_ context.Context, scope, tz, userID string) (types.Entry, error) {
	if m.rankErr != nil {
		return types.Entry{}, m.rankErr
	}
	return m.rank, nil
}

func (m *mockService) UserToday(_ context.Context, scope, tz, userID string) (int64, error) {
	return m.elapsed, nil
}

func (m *mockService) GetStats() map[string]interface{} {
	return map[string]interface{}{"started": true}
}

func newTestServer(m *mockService) *httptest.Server {
	srv := api.NewServer(m, m, 50)
	mux := http.NewServeMux()
	srv.Register(context.Background(), mux)
	return httptest.NewServer(mux)
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("post %s: %v", url, err)
	}
	return resp
}

func TestSessionEndpoints(t *testing.T) {
	Convey("Given the API over a mock service", t, func() {
		m := &mockService{elapsed: 90}
		ts := newTestServer(m)
		defer ts.Close()

		Convey("POST /sessions/start creates a session", func() {
			resp := postJSON(t, ts.URL+"/sessions/start", map[string]any{
				"user_id":  "alice",
				"timezone": "Asia/Tokyo",
				"scopes":   []string{"global", "class-7b"},
			})
			defer resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusCreated)

			var body map[string]any
			So(json.NewDecoder(resp.Body).Decode(&body), ShouldBeNil)
			So(body["user_id"], ShouldEqual, "alice")
			So(body["state"], ShouldEqual, "active")
		})

		Convey("POST /sessions/start without a timezone is rejected", func() {
			resp := postJSON(t, ts.URL+"/sessions/start", map[string]any{"user_id": "alice"})
			defer resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
		})

		Convey("a second start conflicts", func() {
			m.startErr = session.ErrSessionExists
			resp := postJSON(t, ts.URL+"/sessions/start", map[string]any{
				"user_id": "alice", "timezone": "UTC",
			})
			defer resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusConflict)
		})

		Convey("an unknown timezone maps to 400", func() {
			m.startErr = daykey.ErrUnknownTimezone
			resp := postJSON(t, ts.URL+"/sessions/start", map[string]any{
				"user_id": "alice", "timezone": "Nope/Nowhere",
			})
			defer resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
		})

		Convey("POST /sessions/heartbeat returns elapsed seconds", func() {
			resp := postJSON(t, ts.URL+"/sessions/heartbeat", map[string]any{"user_id": "alice"})
			defer resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusOK)

			var body map[string]any
			So(json.NewDecoder(resp.Body).Decode(&body), ShouldBeNil)
			So(body["elapsed_seconds"], ShouldEqual, float64(90))
		})

		Convey("lifecycle calls without a session map to 404", func() {
			m.sessionErr = session.ErrNoActiveSession
			m.completeErr = session.ErrNoActiveSession
			for _, path := range []string{
				"/sessions/heartbeat", "/sessions/interrupt",
				"/sessions/focus", "/sessions/complete",
			} {
				resp := postJSON(t, ts.URL+path, map[string]any{"user_id": "ghost"})
				So(resp.StatusCode, ShouldEqual, http.StatusNotFound)
				resp.Body.Close()
			}
		})

		Convey("non-lifecycle service failures map to 500", func() {
			// Queue pressure never surfaces on heartbeat: the tracker
			// re-offers the delta next tick, so anything else the
			// service returns is an internal failure.
			m.sessionErr = fmt.Errorf("apply delta: %w", errors.New("delta queue full"))
			resp := postJSON(t, ts.URL+"/sessions/heartbeat", map[string]any{"user_id": "alice"})
			defer resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusInternalServerError)
		})

		Convey("POST /sessions/complete returns the session fact", func() {
			resp := postJSON(t, ts.URL+"/sessions/complete", map[string]any{"user_id": "alice"})
			defer resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusOK)

			var body map[string]any
			So(json.NewDecoder(resp.Body).Decode(&body), ShouldBeNil)
			So(body["duration_seconds"], ShouldEqual, float64(1500))
			So(body["interruptions"], ShouldEqual, float64(2))
		})

		Convey("GET /sessions/elapsed reads live elapsed time", func() {
			resp, err := http.Get(ts.URL + "/sessions/elapsed?user_id=alice")
			So(err, ShouldBeNil)
			defer resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusOK)
		})

		Convey("a missing user_id is rejected everywhere", func() {
			resp := postJSON(t, ts.URL+"/sessions/heartbeat", map[string]any{})
			defer resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestLeaderboardEndpoints(t *testing.T) {
	Convey("Given the API over a mock service", t, func() {
		m := &mockService{
			topN: []types.Entry{
				{Rank: 1, UserID: "alice", Seconds: 500},
				{Rank: 2, UserID: "bob", Seconds: 300},
			},
			rank: types.Entry{Rank: 2, UserID: "bob", Seconds: 300},
		}
		ts := newTestServer(m)
		defer ts.Close()

		Convey("GET /leaderboard returns entries", func() {
			resp, err := http.Get(ts.URL + "/leaderboard?scope=global&tz=UTC&limit=10")
			So(err, ShouldBeNil)
			defer resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusOK)

			var entries []types.Entry
			So(json.NewDecoder(resp.Body).Decode(&entries), ShouldBeNil)
			So(len(entries), ShouldEqual, 2)
			So(entries[0].UserID, ShouldEqual, "alice")
		})

		Convey("the limit defaults when omitted", func() {
			resp, err := http.Get(ts.URL + "/leaderboard")
			So(err, ShouldBeNil)
			defer resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusOK)
		})

		Convey("a limit over the cap is rejected", func() {
			resp, err := http.Get(ts.URL + "/leaderboard?limit=500")
			So(err, ShouldBeNil)
			defer resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
		})

		Convey("a malformed limit is rejected", func() {
			resp, err := http.Get(ts.URL + "/leaderboard?limit=abc")
			So(err, ShouldBeNil)
			defer resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
		})

		Convey("an unknown timezone maps to 400", func() {
			m.topNErr = daykey.ErrUnknownTimezone
			resp, err := http.Get(ts.URL + "/leaderboard?tz=Nope/Nowhere")
			So(err, ShouldBeNil)
			defer resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
		})

		Convey("GET /rank/{user} returns the entry", func() {
			resp, err := http.Get(ts.URL + "/rank/bob?scope=global&tz=UTC")
			So(err, ShouldBeNil)
			defer resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusOK)

			var entry types.Entry
			So(json.NewDecoder(resp.Body).Decode(&entry), ShouldBeNil)
			So(entry.Rank, ShouldEqual, 2)
		})

		Convey("an unranked user maps to 404", func() {
			m.rankErr = repository.ErrNotFound
			resp, err := http.Get(ts.URL + "/rank/ghost")
			So(err, ShouldBeNil)
			defer resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusNotFound)
		})

		Convey("an empty rank path is rejected", func() {
			resp, err := http.Get(ts.URL + "/rank/")
			So(err, ShouldBeNil)
			defer resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
		})

		Convey("GET /stats reports service state", func() {
			resp, err := http.Get(ts.URL + "/stats")
			So(err, ShouldBeNil)
			defer resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusOK)

			var stats map[string]any
			So(json.NewDecoder(resp.Body).Decode(&stats), ShouldBeNil)
			So(stats["started"], ShouldEqual, true)
		})

		Convey("GET /healthz serves the metrics registry", func() {
			resp, err := http.Get(ts.URL + "/healthz")
			So(err, ShouldBeNil)
			defer resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusOK)
		})
	})
}
