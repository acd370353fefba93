package model

import (
	"testing"
	"time"
)

func TestParseStatus(t *testing.T) {
	tests := []struct {
		in   string
		want MatchStatus
	}{
		{"SCHEDULED", StatusScheduled},
		{"IN_PLAY", StatusInPlay},
		{"HALF_TIME", StatusHalfTime},
		{"FINISHED", StatusFinished},
		{"AWARDED", StatusAwarded},
		{"", StatusUnknown},
		{"SOMETHING_NEW", StatusUnknown},
		{"in_play", StatusUnknown},
	}

	for _, tt := range tests {
		if got := ParseStatus(tt.in); got != tt.want {
			t.Errorf("ParseStatus(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestStatusPredicates(t *testing.T) {
	tests := []struct {
		status   MatchStatus
		live     bool
		terminal bool
		upcoming bool
	}{
		{StatusScheduled, false, false, true},
		{StatusTimed, false, false, true},
		{StatusInPlay, true, false, false},
		{StatusHalfTime, true, false, false},
		{StatusPaused, true, false, false},
		{StatusFinished, false, true, false},
		{StatusCancelled, false, true, false},
		{StatusPostponed, false, true, false},
		{StatusSuspended, false, false, false},
		{StatusUnknown, false, false, false},
	}

	for _, tt := range tests {
		if got := tt.status.IsLive(); got != tt.live {
			t.Errorf("%s.IsLive() = %v, want %v", tt.status, got, tt.live)
		}
		if got := tt.status.IsTerminal(); got != tt.terminal {
			t.Errorf("%s.IsTerminal() = %v, want %v", tt.status, got, tt.terminal)
		}
		if got := tt.status.IsUpcoming(); got != tt.upcoming {
			t.Errorf("%s.IsUpcoming() = %v, want %v", tt.status, got, tt.upcoming)
		}
	}
}

func TestNewTeam(t *testing.T) {
	team, err := NewTeam("42", "Arsenal")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if team.ShortName != "Arsenal" {
		t.Errorf("ShortName = %q, want it to default to the name", team.ShortName)
	}

	if _, err := NewTeam("", "Arsenal"); err == nil {
		t.Error("empty id accepted")
	}
	if _, err := NewTeam("42", ""); err == nil {
		t.Error("empty name accepted")
	}
}

func TestTeamDisplayName(t *testing.T) {
	team := Team{ID: "42", Name: "Arsenal FC", ShortName: "ARS"}
	if got := team.DisplayName(); got != "ARS" {
		t.Errorf("DisplayName = %q, want %q", got, "ARS")
	}
	team.ShortName = ""
	if got := team.DisplayName(); got != "Arsenal FC" {
		t.Errorf("DisplayName = %q, want %q", got, "Arsenal FC")
	}
}

func TestNewScoreClampsNegatives(t *testing.T) {
	s := NewScore(-1, 2)
	if s.Home != 0 || s.Away != 2 {
		t.Errorf("NewScore(-1, 2) = %+v, want home clamped to 0", s)
	}
	if got := s.String(); got != "0-2" {
		t.Errorf("String() = %q, want %q", got, "0-2")
	}
}

func TestMatchValidate(t *testing.T) {
	valid := Match{
		ID:        "1001",
		HomeTeam:  Team{ID: "10", Name: "Arsenal"},
		AwayTeam:  Team{ID: "20", Name: "Chelsea"},
		StartTime: time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC),
		Status:    StatusScheduled,
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid match rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Match)
	}{
		{"missing id", func(m *Match) { m.ID = "" }},
		{"missing home team name", func(m *Match) { m.HomeTeam.Name = "" }},
		{"missing away team id", func(m *Match) { m.AwayTeam.ID = "" }},
		{"zero start time", func(m *Match) { m.StartTime = time.Time{} }},
		{"missing status", func(m *Match) { m.Status = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := valid
			tt.mutate(&m)
			if err := m.Validate(); err == nil {
				t.Error("invalid match accepted")
			}
		})
	}
}

func TestMatchTitle(t *testing.T) {
	m := Match{
		HomeTeam: Team{ID: "10", Name: "Arsenal"},
		AwayTeam: Team{ID: "20", Name: "Chelsea"},
	}
	if got := m.Title(); got != "Arsenal vs Chelsea" {
		t.Errorf("Title() = %q", got)
	}
}

func TestEventValidate(t *testing.T) {
	valid := Event{ID: "1001_start", MatchID: "1001", Type: EventMatchStart}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid event rejected: %v", err)
	}

	for _, tt := range []struct {
		name   string
		mutate func(*Event)
	}{
		{"missing id", func(e *Event) { e.ID = "" }},
		{"missing match id", func(e *Event) { e.MatchID = "" }},
		{"missing type", func(e *Event) { e.Type = "" }},
	} {
		t.Run(tt.name, func(t *testing.T) {
			e := valid
			tt.mutate(&e)
			if e.Validate() == nil {
				t.Error("invalid event accepted")
			}
		})
	}
}
