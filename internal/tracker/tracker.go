// Package tracker maintains the authoritative collection of known matches:
// discovering fixtures for configured teams inside a rolling date window,
// refreshing status and score for matches that need polling, and pruning
// terminal matches past the retention window.
//
// Remote calls go through the retry layer; parsing and persistence are
// collaborators behind small interfaces. The tracker is the single writer
// of the match collection; returned Match values are snapshots and must
// not be mutated by callers.
package tracker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/goalwatch/goalwatch/internal/model"
	"github.com/goalwatch/goalwatch/internal/retry"
)

// --------------------------------------------------------------------------
// Collaborator contracts
// --------------------------------------------------------------------------

// API is the upstream fixtures client.
type API interface {
	MatchesForTeam(ctx context.Context, teamID string, from, to time.Time) (json.RawMessage, error)
	MatchByID(ctx context.Context, matchID string) (json.RawMessage, error)
	LiveMatches(ctx context.Context) (json.RawMessage, error)
}

// Parser turns raw response bodies into model values.
type Parser interface {
	ParseMatches(raw json.RawMessage) ([]model.Match, error)
}

// Store persists the match collection. Implementations must round-trip
// every Match field losslessly.
type Store interface {
	Load(ctx context.Context) (map[string]model.Match, error)
	Save(ctx context.Context, matches map[string]model.Match) error
}

// Team is one tracked team from configuration.
type Team struct {
	ID   string
	Name string
}

// --------------------------------------------------------------------------
// Tracker
// --------------------------------------------------------------------------

const (
	endpointFixtures = "fixtures"

	defaultDiscoveryDays = 3
	defaultRetentionDays = 7
)

// Tracker tracks matches for a set of configured teams.
type Tracker struct {
	api      API
	parser   Parser
	store    Store // optional
	teams    []Team
	policy   retry.Policy
	breakers *retry.Registry
	logger   *slog.Logger

	mu      sync.Mutex
	matches map[string]model.Match

	now func() time.Time // injectable for tests
}

// New creates a Tracker and loads previously persisted matches from the
// store. A nil store disables persistence; a load failure starts the
// tracker empty rather than failing construction.
func New(api API, parser Parser, store Store, teams []Team, policy retry.Policy, breakers *retry.Registry, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	t := &Tracker{
		api:      api,
		parser:   parser,
		store:    store,
		teams:    teams,
		policy:   policy,
		breakers: breakers,
		logger:   logger,
		matches:  make(map[string]model.Match),
		now:      time.Now,
	}

	if store != nil {
		loaded, err := store.Load(context.Background())
		if err != nil {
			logger.Error("Failed to load persisted matches, starting empty", "error", err)
		} else if len(loaded) > 0 {
			t.matches = loaded
			logger.Info("Loaded persisted matches", "count", len(loaded))
		}
	}
	return t
}

// Discover fetches fixtures for every configured team within the window
// [today, today+days] and records them. A failure for one team is logged
// and skipped so it does not block the others. Returns only the matches
// not previously known.
func (t *Tracker) Discover(ctx context.Context, days int) ([]model.Match, error) {
	if days <= 0 {
		days = defaultDiscoveryDays
	}
	if len(t.teams) == 0 {
		t.logger.Warn("No teams configured for match discovery")
		return nil, nil
	}

	from := t.now()
	to := from.AddDate(0, 0, days)

	t.logger.Info("Discovering matches", "teams", len(t.teams), "days", days)

	var discovered []model.Match
	for _, team := range t.teams {
		raw, err := retry.Do(ctx, endpointFixtures, t.breakers, t.policy, t.logger,
			func(ctx context.Context) (json.RawMessage, error) {
				return t.api.MatchesForTeam(ctx, team.ID, from, to)
			})
		if err != nil {
			t.logger.Error("Match discovery failed for team",
				"team", team.Name, "team_id", team.ID, "error", err)
			continue
		}

		matches, err := t.parser.ParseMatches(raw)
		if err != nil {
			t.logger.Error("Parsing discovered matches failed",
				"team", team.Name, "error", err)
			continue
		}

		t.mu.Lock()
		for _, m := range matches {
			if _, known := t.matches[m.ID]; known {
				t.matches[m.ID] = m
				continue
			}
			t.matches[m.ID] = m
			discovered = append(discovered, m)
			t.logger.Info("Discovered new match",
				"match", m.Title(), "start", m.StartTime, "status", m.Status)
		}
		t.mu.Unlock()
	}

	t.persist(ctx)
	return discovered, nil
}

// Refresh polls the current state of one known match, stores the new
// snapshot, and reports whether its status changed since the last one.
func (t *Tracker) Refresh(ctx context.Context, matchID string) (model.Match, bool, error) {
	t.mu.Lock()
	old, known := t.matches[matchID]
	t.mu.Unlock()
	if !known {
		return model.Match{}, false, fmt.Errorf("refresh: unknown match %s", matchID)
	}

	raw, err := retry.Do(ctx, endpointFixtures, t.breakers, t.policy, t.logger,
		func(ctx context.Context) (json.RawMessage, error) {
			return t.api.MatchByID(ctx, matchID)
		})
	if err != nil {
		return model.Match{}, false, fmt.Errorf("refresh match %s: %w", matchID, err)
	}

	matches, err := t.parser.ParseMatches(raw)
	if err != nil {
		return model.Match{}, false, fmt.Errorf("parse match %s: %w", matchID, err)
	}
	if len(matches) == 0 {
		return model.Match{}, false, fmt.Errorf("refresh match %s: no data returned", matchID)
	}

	updated := matches[0]
	statusChanged := old.Status != updated.Status

	if statusChanged {
		t.logger.Info("Match status changed",
			"match", updated.Title(), "from", old.Status, "to", updated.Status)
	}
	if old.Score != updated.Score {
		t.logger.Info("Score changed",
			"match", updated.Title(), "from", old.Score, "to", updated.Score)
	}

	t.mu.Lock()
	t.matches[updated.ID] = updated
	t.mu.Unlock()

	t.persist(ctx)
	return updated, statusChanged, nil
}

// Prune removes terminal matches that started more than the given number
// of days ago. Returns the number removed.
func (t *Tracker) Prune(ctx context.Context, days int) int {
	if days <= 0 {
		days = defaultRetentionDays
	}
	cutoff := t.now().AddDate(0, 0, -days)

	t.mu.Lock()
	var old []string
	for id, m := range t.matches {
		if m.Status.IsTerminal() && m.StartTime.Before(cutoff) {
			old = append(old, id)
		}
	}
	for _, id := range old {
		delete(t.matches, id)
	}
	t.mu.Unlock()

	if len(old) > 0 {
		t.logger.Info("Pruned old matches", "count", len(old), "retention_days", days)
		t.persist(ctx)
	}
	return len(old)
}

// --------------------------------------------------------------------------
// Accessors. All return snapshots sorted by start time.
// --------------------------------------------------------------------------

// Match returns one match by id.
func (t *Tracker) Match(matchID string) (model.Match, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	m, ok := t.matches[matchID]
	return m, ok
}

// All returns every known match.
func (t *Tracker) All() []model.Match {
	return t.filter(func(model.Match) bool { return true })
}

// ByStatus returns matches in the given status.
func (t *Tracker) ByStatus(status model.MatchStatus) []model.Match {
	return t.filter(func(m model.Match) bool { return m.Status == status })
}

// Active returns matches currently in the live set.
func (t *Tracker) Active() []model.Match {
	return t.filter(func(m model.Match) bool { return m.Status.IsLive() })
}

// Upcoming returns not-yet-started matches kicking off within the window.
func (t *Tracker) Upcoming(window time.Duration) []model.Match {
	now := t.now()
	cutoff := now.Add(window)
	return t.filter(func(m model.Match) bool {
		return m.Status.IsUpcoming() && !m.StartTime.Before(now) && !m.StartTime.After(cutoff)
	})
}

// NeedingPoll returns the matches whose state should be refreshed this
// tick: everything live, plus upcoming matches kicking off within the
// lead window (so kickoff is caught promptly).
func (t *Tracker) NeedingPoll(lead time.Duration) []model.Match {
	cutoff := t.now().Add(lead)
	return t.filter(func(m model.Match) bool {
		return m.Status.IsLive() ||
			(m.Status.IsUpcoming() && !m.StartTime.After(cutoff))
	})
}

func (t *Tracker) filter(keep func(model.Match) bool) []model.Match {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []model.Match
	for _, m := range t.matches {
		if keep(m) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartTime.Before(out[j].StartTime)
	})
	return out
}

// persist writes the current collection to the store, logging failures
// rather than propagating them; a persistence hiccup must not fail a tick.
func (t *Tracker) persist(ctx context.Context) {
	if t.store == nil {
		return
	}
	t.mu.Lock()
	snapshot := make(map[string]model.Match, len(t.matches))
	for id, m := range t.matches {
		snapshot[id] = m
	}
	t.mu.Unlock()

	if err := t.store.Save(ctx, snapshot); err != nil {
		t.logger.Error("Failed to persist matches", "error", err)
	}
}
