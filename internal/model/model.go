// Package model defines the value types shared across the service: teams,
// scores, matches, events, and their closed status/type enumerations.
//
// All types are constructed once and replaced wholesale on every poll;
// nothing here is mutated in place after construction.
package model

import (
	"fmt"
	"time"
)

// --------------------------------------------------------------------------
// Match status
// --------------------------------------------------------------------------

// MatchStatus is the lifecycle state of a match as reported upstream.
type MatchStatus string

const (
	StatusScheduled MatchStatus = "SCHEDULED"
	StatusTimed     MatchStatus = "TIMED"
	StatusInPlay    MatchStatus = "IN_PLAY"
	StatusPaused    MatchStatus = "PAUSED"
	StatusHalfTime  MatchStatus = "HALF_TIME"
	StatusFinished  MatchStatus = "FINISHED"
	StatusSuspended MatchStatus = "SUSPENDED"
	StatusPostponed MatchStatus = "POSTPONED"
	StatusCancelled MatchStatus = "CANCELLED"
	StatusAwarded   MatchStatus = "AWARDED"
	StatusUnknown   MatchStatus = "UNKNOWN"
)

// LiveStatuses is the set of states in which a match is considered in
// progress for polling and transition predicates.
var LiveStatuses = []MatchStatus{StatusInPlay, StatusHalfTime, StatusPaused}

// TerminalStatuses is the set of states after which a match only awaits
// retention pruning.
var TerminalStatuses = []MatchStatus{StatusFinished, StatusCancelled, StatusPostponed}

// IsLive reports whether the match is in progress (in play, half-time, or
// paused).
func (s MatchStatus) IsLive() bool {
	return s == StatusInPlay || s == StatusHalfTime || s == StatusPaused
}

// IsTerminal reports whether the match has reached a state it cannot leave.
func (s MatchStatus) IsTerminal() bool {
	return s == StatusFinished || s == StatusCancelled || s == StatusPostponed
}

// IsUpcoming reports whether the match has not started yet.
func (s MatchStatus) IsUpcoming() bool {
	return s == StatusScheduled || s == StatusTimed
}

// ParseStatus converts a stored status string back to a MatchStatus.
// Unrecognized values coerce to StatusUnknown rather than failing, so a
// newer upstream vocabulary never breaks loading persisted matches.
func ParseStatus(s string) MatchStatus {
	switch MatchStatus(s) {
	case StatusScheduled, StatusTimed, StatusInPlay, StatusPaused,
		StatusHalfTime, StatusFinished, StatusSuspended, StatusPostponed,
		StatusCancelled, StatusAwarded:
		return MatchStatus(s)
	default:
		return StatusUnknown
	}
}

// --------------------------------------------------------------------------
// Event type
// --------------------------------------------------------------------------

// EventType classifies a detected or upstream-reported match event.
type EventType string

const (
	EventGoal          EventType = "GOAL"
	EventYellowCard    EventType = "YELLOW_CARD"
	EventRedCard       EventType = "RED_CARD"
	EventSubstitution  EventType = "SUBSTITUTION"
	EventPenaltyMissed EventType = "PENALTY_MISSED"
	EventPenaltyScored EventType = "PENALTY_SCORED"
	EventMatchStart    EventType = "MATCH_START"
	EventMatchEnd      EventType = "MATCH_END"
	EventHalfTime      EventType = "HALF_TIME"
	EventExtraTime     EventType = "EXTRA_TIME"
	EventPenalties     EventType = "PENALTIES"
	EventOther         EventType = "OTHER"
)

// --------------------------------------------------------------------------
// Validation
// --------------------------------------------------------------------------

// ValidationError reports an invalid entity construction attempt. Callers
// must not proceed with a partially built value.
type ValidationError struct {
	Entity string
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s %s", e.Entity, e.Field, e.Reason)
}

// --------------------------------------------------------------------------
// Team
// --------------------------------------------------------------------------

// Team identifies one side of a match.
type Team struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	ShortName string `json:"short_name,omitempty"`
	LogoURL   string `json:"logo_url,omitempty"`
	Country   string `json:"country,omitempty"`
}

// NewTeam validates and builds a Team. ShortName defaults to Name when
// empty.
func NewTeam(id, name string) (Team, error) {
	if id == "" {
		return Team{}, &ValidationError{Entity: "team", Field: "id", Reason: "must not be empty"}
	}
	if name == "" {
		return Team{}, &ValidationError{Entity: "team", Field: "name", Reason: "must not be empty"}
	}
	return Team{ID: id, Name: name, ShortName: name}, nil
}

// Validate checks the invariants on a Team built field-by-field (e.g. by a
// parser or a store).
func (t Team) Validate() error {
	if t.ID == "" {
		return &ValidationError{Entity: "team", Field: "id", Reason: "must not be empty"}
	}
	if t.Name == "" {
		return &ValidationError{Entity: "team", Field: "name", Reason: "must not be empty"}
	}
	return nil
}

// DisplayName returns the short name when set, otherwise the full name.
func (t Team) DisplayName() string {
	if t.ShortName != "" {
		return t.ShortName
	}
	return t.Name
}

// --------------------------------------------------------------------------
// Score
// --------------------------------------------------------------------------

// Score is the running goal count. Negative inputs clamp to zero, matching
// upstream feeds that report null scores before kickoff.
type Score struct {
	Home int `json:"home"`
	Away int `json:"away"`
}

// NewScore builds a Score, clamping negative values to zero.
func NewScore(home, away int) Score {
	return Score{Home: max(home, 0), Away: max(away, 0)}
}

func (s Score) String() string {
	return fmt.Sprintf("%d-%d", s.Home, s.Away)
}

// --------------------------------------------------------------------------
// Match
// --------------------------------------------------------------------------

// Match is one polled snapshot of a fixture. Snapshots are immutable: each
// poll produces a new Match value keyed by the same stable ID.
type Match struct {
	ID          string      `json:"id"`
	HomeTeam    Team        `json:"home_team"`
	AwayTeam    Team        `json:"away_team"`
	StartTime   time.Time   `json:"start_time"`
	Status      MatchStatus `json:"status"`
	Score       Score       `json:"score"`
	Competition string      `json:"competition,omitempty"`
	Venue       string      `json:"venue,omitempty"`
	Referee     string      `json:"referee,omitempty"`
	Round       string      `json:"round,omitempty"`
	Season      string      `json:"season,omitempty"`
}

// Validate checks the construction invariants: id, both teams, start time,
// and status are required.
func (m Match) Validate() error {
	if m.ID == "" {
		return &ValidationError{Entity: "match", Field: "id", Reason: "must not be empty"}
	}
	if err := m.HomeTeam.Validate(); err != nil {
		return fmt.Errorf("home team: %w", err)
	}
	if err := m.AwayTeam.Validate(); err != nil {
		return fmt.Errorf("away team: %w", err)
	}
	if m.StartTime.IsZero() {
		return &ValidationError{Entity: "match", Field: "start_time", Reason: "must be set"}
	}
	if m.Status == "" {
		return &ValidationError{Entity: "match", Field: "status", Reason: "must be set"}
	}
	return nil
}

// Title returns "Home vs Away" for logs and notifications.
func (m Match) Title() string {
	return m.HomeTeam.Name + " vs " + m.AwayTeam.Name
}

// --------------------------------------------------------------------------
// Event
// --------------------------------------------------------------------------

// Event is a single notification-worthy occurrence within a match. Event
// IDs are derived deterministically from the match id plus the event's
// distinguishing attributes; that determinism is what makes deduplication
// across repeated polls possible. Every event id starts with the match id
// so per-match state can be dropped by prefix.
type Event struct {
	ID          string    `json:"id"`
	MatchID     string    `json:"match_id"`
	Type        EventType `json:"type"`
	Minute      *int      `json:"minute,omitempty"`
	TeamID      string    `json:"team_id,omitempty"`
	PlayerName  string    `json:"player_name,omitempty"`
	Description string    `json:"description,omitempty"`
	ScoreHome   *int      `json:"score_home,omitempty"`
	ScoreAway   *int      `json:"score_away,omitempty"`
}

// Validate checks the construction invariants on an Event.
func (e Event) Validate() error {
	if e.ID == "" {
		return &ValidationError{Entity: "event", Field: "id", Reason: "must not be empty"}
	}
	if e.MatchID == "" {
		return &ValidationError{Entity: "event", Field: "match_id", Reason: "must not be empty"}
	}
	if e.Type == "" {
		return &ValidationError{Entity: "event", Field: "type", Reason: "must be set"}
	}
	return nil
}

// IntPtr returns a pointer to n, for the optional numeric Event fields.
func IntPtr(n int) *int { return &n }
