package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goalwatch/goalwatch/internal/config"
	"github.com/goalwatch/goalwatch/internal/detector"
	"github.com/goalwatch/goalwatch/internal/model"
	"github.com/goalwatch/goalwatch/internal/notify"
	"github.com/goalwatch/goalwatch/internal/poller"
	"github.com/goalwatch/goalwatch/internal/retry"
	"github.com/goalwatch/goalwatch/internal/scheduler"
	"github.com/goalwatch/goalwatch/internal/tracker"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type staticStore struct {
	matches map[string]model.Match
}

func (s *staticStore) Load(context.Context) (map[string]model.Match, error) {
	return s.matches, nil
}

func (s *staticStore) Save(context.Context, map[string]model.Match) error { return nil }

func newTestServer(t *testing.T, matches map[string]model.Match) *httptest.Server {
	t.Helper()

	trk := tracker.New(nil, nil, &staticStore{matches: matches}, nil,
		retry.Policy{MaxRetries: 1, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, BackoffFactor: 1},
		nil, testLogger)
	p := poller.New(trk, detector.New(testLogger), notify.NewDispatcher(testLogger),
		scheduler.New(time.Second, testLogger), poller.Config{}, testLogger)
	cfg := &config.Config{CORSAllowOrigins: []string{"*"}}

	srv := httptest.NewServer(NewRouter(trk, p, cfg, testLogger))
	t.Cleanup(srv.Close)
	return srv
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode %s: %v", url, err)
	}
	return resp.StatusCode
}

func testMatches() map[string]model.Match {
	start := time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC)
	return map[string]model.Match{
		"1": {
			ID:        "1",
			HomeTeam:  model.Team{ID: "10", Name: "Arsenal"},
			AwayTeam:  model.Team{ID: "20", Name: "Chelsea"},
			StartTime: start,
			Status:    model.StatusInPlay,
			Score:     model.Score{Home: 1, Away: 0},
		},
		"2": {
			ID:        "2",
			HomeTeam:  model.Team{ID: "30", Name: "Liverpool"},
			AwayTeam:  model.Team{ID: "40", Name: "Everton"},
			StartTime: start.Add(24 * time.Hour),
			Status:    model.StatusScheduled,
		},
	}
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t, nil)

	var body map[string]string
	if code := getJSON(t, srv.URL+"/health", &body); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if body["status"] != "ok" {
		t.Errorf("body = %v", body)
	}
}

func TestListMatches(t *testing.T) {
	srv := newTestServer(t, testMatches())

	var body struct {
		Count   int           `json:"count"`
		Matches []model.Match `json:"matches"`
	}
	if code := getJSON(t, srv.URL+"/api/v1/matches", &body); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if body.Count != 2 || len(body.Matches) != 2 {
		t.Errorf("count = %d, matches = %d", body.Count, len(body.Matches))
	}
	// Sorted by start time.
	if body.Matches[0].ID != "1" {
		t.Errorf("matches[0].ID = %s", body.Matches[0].ID)
	}
}

func TestListMatchesStatusFilter(t *testing.T) {
	srv := newTestServer(t, testMatches())

	var body struct {
		Count   int           `json:"count"`
		Matches []model.Match `json:"matches"`
	}
	getJSON(t, srv.URL+"/api/v1/matches?status=SCHEDULED", &body)
	if body.Count != 1 || body.Matches[0].ID != "2" {
		t.Errorf("filtered result = %+v", body)
	}
}

func TestActiveMatches(t *testing.T) {
	srv := newTestServer(t, testMatches())

	var body struct {
		Count   int           `json:"count"`
		Matches []model.Match `json:"matches"`
	}
	getJSON(t, srv.URL+"/api/v1/matches/active", &body)
	if body.Count != 1 || body.Matches[0].ID != "1" {
		t.Errorf("active result = %+v", body)
	}
}

func TestMatchByID(t *testing.T) {
	srv := newTestServer(t, testMatches())

	var m model.Match
	if code := getJSON(t, srv.URL+"/api/v1/matches/1", &m); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if m.ID != "1" || m.Score.Home != 1 {
		t.Errorf("match = %+v", m)
	}

	var errBody map[string]string
	if code := getJSON(t, srv.URL+"/api/v1/matches/999", &errBody); code != http.StatusNotFound {
		t.Errorf("status for missing match = %d, want 404", code)
	}
}

func TestRecentEventsEmpty(t *testing.T) {
	srv := newTestServer(t, nil)

	var body struct {
		Count  int           `json:"count"`
		Events []model.Event `json:"events"`
	}
	if code := getJSON(t, srv.URL+"/api/v1/events/recent", &body); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if body.Count != 0 {
		t.Errorf("count = %d, want 0", body.Count)
	}
}
