// Package detector derives discrete match events from successive polled
// snapshots. It compares each incoming Match against the last snapshot seen
// for that match id and emits every event exactly once per process
// lifetime: the seen-event-id set is in memory only, so a restart may
// re-announce a match that is currently in progress.
package detector

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/goalwatch/goalwatch/internal/model"
)

// EventSource supplies the upstream event list for a match, used to enrich
// goal detections with cards and substitutions. Optional: a nil source
// means goals carry no player attribution.
type EventSource interface {
	MatchEvents(ctx context.Context, matchID string) ([]model.Event, error)
}

// Detector diffs match snapshots and emits deduplicated events.
//
// Safe for concurrent use; all state is guarded by one mutex since the
// expected caller is a single poll loop.
type Detector struct {
	mu     sync.Mutex
	prev   map[string]model.Match
	seen   map[string]struct{}
	source EventSource
	logger *slog.Logger
}

// Option configures a Detector.
type Option func(*Detector)

// WithEventSource enables goal-triggered enrichment from an upstream
// events endpoint.
func WithEventSource(src EventSource) Option {
	return func(d *Detector) { d.source = src }
}

// New creates an empty Detector.
func New(logger *slog.Logger, opts ...Option) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Detector{
		prev:   make(map[string]model.Match),
		seen:   make(map[string]struct{}),
		logger: logger,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Detect compares the snapshot against the last one stored for the same
// match id and returns the events that newly occurred, in emission order:
// match start, goals (home then away, ascending ordinal), half-time, match
// end, then enrichment events. Events whose id was already emitted are
// filtered out, so calling Detect twice with the same snapshot returns
// nothing the second time.
//
// Detect never fails for a structurally valid Match; enrichment fetch
// errors are logged and degrade to zero extra events.
func (d *Detector) Detect(ctx context.Context, m model.Match) []model.Event {
	d.mu.Lock()
	defer d.mu.Unlock()

	prev, sighted := d.prev[m.ID]
	if sighted {
		d.logger.Debug("Match status",
			"match_id", m.ID, "previous", prev.Status, "current", m.Status)
	}

	var candidates []model.Event

	if isMatchStart(m, prev, sighted) {
		candidates = append(candidates, matchStartEvent(m))
	}

	goals := detectGoals(m, prev, sighted)
	candidates = append(candidates, goals...)

	if sighted && prev.Status == model.StatusInPlay && m.Status == model.StatusHalfTime {
		candidates = append(candidates, halfTimeEvent(m))
	}

	if sighted && prev.Status.IsLive() && m.Status == model.StatusFinished {
		candidates = append(candidates, matchEndEvent(m))
	}

	if len(goals) > 0 && d.source != nil {
		candidates = append(candidates, d.enrich(ctx, m.ID)...)
	}

	events := d.filterSeen(candidates)

	if len(events) > 0 {
		d.logger.Info("Detected events",
			"match_id", m.ID, "count", len(events), "raw", len(candidates))
	}

	// Advance state only after all rules have run against the old snapshot.
	d.prev[m.ID] = m

	return events
}

// Clear drops the stored snapshot and all seen event ids for one match.
// The next Detect call for that id behaves as a fresh first sighting.
func (d *Detector) Clear(matchID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.clearLocked(matchID)
}

func (d *Detector) clearLocked(matchID string) {
	delete(d.prev, matchID)
	prefix := matchID + "_"
	for id := range d.seen {
		if strings.HasPrefix(id, prefix) {
			delete(d.seen, id)
		}
	}
}

// ClearFinished drops state for every match whose last-seen status is in
// the given terminal set, so the state maps do not grow without bound in a
// long-running process. Returns the number of matches cleared.
func (d *Detector) ClearFinished(statuses ...model.MatchStatus) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	var done []string
	for id, m := range d.prev {
		for _, s := range statuses {
			if m.Status == s {
				done = append(done, id)
				break
			}
		}
	}
	for _, id := range done {
		d.clearLocked(id)
	}
	return len(done)
}

// Reset clears all detector state.
func (d *Detector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.prev = make(map[string]model.Match)
	d.seen = make(map[string]struct{})
}

// --------------------------------------------------------------------------
// Detection rules
// --------------------------------------------------------------------------

// isMatchStart fires on the first-ever sighting of a match that is
// already in progress (the service may begin tracking after kickoff), or
// on a transition from any non-live status into IN_PLAY. A first sighting
// of a not-yet-started match emits nothing.
func isMatchStart(current, prev model.Match, sighted bool) bool {
	if !sighted {
		return current.Status.IsLive()
	}
	return !prev.Status.IsLive() && current.Status == model.StatusInPlay
}

// detectGoals emits one event per unit of score increase on each side. On
// first sighting a non-zero score is treated as if every goal had been
// watched live: one event per already-scored goal, ordinals from 1.
func detectGoals(current, prev model.Match, sighted bool) []model.Event {
	var events []model.Event

	prevHome, prevAway := 0, 0
	if sighted {
		prevHome, prevAway = prev.Score.Home, prev.Score.Away
	}

	for n := prevHome + 1; n <= current.Score.Home; n++ {
		events = append(events, goalEvent(current, true, n))
	}
	for n := prevAway + 1; n <= current.Score.Away; n++ {
		events = append(events, goalEvent(current, false, n))
	}
	return events
}

// filterSeen drops events whose id was already emitted and records the
// rest. Caller holds d.mu.
func (d *Detector) filterSeen(events []model.Event) []model.Event {
	var unique []model.Event
	for _, e := range events {
		if _, dup := d.seen[e.ID]; dup {
			d.logger.Debug("Suppressing duplicate event", "event_id", e.ID)
			continue
		}
		d.seen[e.ID] = struct{}{}
		unique = append(unique, e)
	}
	return unique
}

// enrich fetches the upstream event list for a match after a goal was
// detected. Failures degrade to zero extra events. Caller holds d.mu.
func (d *Detector) enrich(ctx context.Context, matchID string) []model.Event {
	events, err := d.source.MatchEvents(ctx, matchID)
	if err != nil {
		d.logger.Warn("Event enrichment fetch failed",
			"match_id", matchID, "error", err)
		return nil
	}

	var valid []model.Event
	for _, e := range events {
		if err := e.Validate(); err != nil {
			d.logger.Warn("Skipping invalid enrichment event",
				"match_id", matchID, "error", err)
			continue
		}
		valid = append(valid, e)
	}
	return valid
}

// --------------------------------------------------------------------------
// Event construction
//
// Event ids embed the match id as a prefix plus the event's distinguishing
// attributes, so identical occurrences always map to the same id and
// per-match state can be dropped by prefix.
// --------------------------------------------------------------------------

func matchStartEvent(m model.Match) model.Event {
	return model.Event{
		ID:          fmt.Sprintf("%s_start", m.ID),
		MatchID:     m.ID,
		Type:        model.EventMatchStart,
		Minute:      model.IntPtr(0),
		Description: fmt.Sprintf("Match started: %s vs %s", m.HomeTeam.Name, m.AwayTeam.Name),
		ScoreHome:   model.IntPtr(0),
		ScoreAway:   model.IntPtr(0),
	}
}

func halfTimeEvent(m model.Match) model.Event {
	return model.Event{
		ID:          fmt.Sprintf("%s_half_time", m.ID),
		MatchID:     m.ID,
		Type:        model.EventHalfTime,
		Minute:      model.IntPtr(45),
		Description: fmt.Sprintf("Half-time: %s %s %s", m.HomeTeam.Name, m.Score, m.AwayTeam.Name),
		ScoreHome:   model.IntPtr(m.Score.Home),
		ScoreAway:   model.IntPtr(m.Score.Away),
	}
}

func matchEndEvent(m model.Match) model.Event {
	return model.Event{
		ID:          fmt.Sprintf("%s_end", m.ID),
		MatchID:     m.ID,
		Type:        model.EventMatchEnd,
		Minute:      model.IntPtr(90), // approximate, stoppage time unknown
		Description: fmt.Sprintf("Match ended: %s %s %s", m.HomeTeam.Name, m.Score, m.AwayTeam.Name),
		ScoreHome:   model.IntPtr(m.Score.Home),
		ScoreAway:   model.IntPtr(m.Score.Away),
	}
}

func goalEvent(m model.Match, home bool, ordinal int) model.Event {
	team, opponent := m.HomeTeam, m.AwayTeam
	if !home {
		team, opponent = m.AwayTeam, m.HomeTeam
	}
	return model.Event{
		ID:      fmt.Sprintf("%s_%s_goal_%d", m.ID, team.ID, ordinal),
		MatchID: m.ID,
		Type:    model.EventGoal,
		TeamID:  team.ID,
		Description: fmt.Sprintf("GOAL! %s scores against %s (%s %s %s)",
			team.Name, opponent.Name, m.HomeTeam.Name, m.Score, m.AwayTeam.Name),
		ScoreHome: model.IntPtr(m.Score.Home),
		ScoreAway: model.IntPtr(m.Score.Away),
	}
}
