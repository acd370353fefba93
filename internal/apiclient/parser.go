package apiclient

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/goalwatch/goalwatch/internal/model"
)

// Parser converts raw API-Football response bodies into model values.
// Only enum-typed statuses leave this boundary: upstream status codes are
// normalized here and unknown codes coerce to StatusUnknown.
type Parser struct {
	logger *slog.Logger
}

// NewParser creates a Parser.
func NewParser(logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{logger: logger}
}

// --------------------------------------------------------------------------
// Response shapes
// --------------------------------------------------------------------------

type fixtureEnvelope struct {
	Response []fixtureItem `json:"response"`
}

type fixtureItem struct {
	Fixture struct {
		ID     int64  `json:"id"`
		Date   string `json:"date"`
		Status struct {
			Short   string `json:"short"`
			Elapsed *int   `json:"elapsed"`
		} `json:"status"`
		Venue struct {
			Name string `json:"name"`
		} `json:"venue"`
		Referee string `json:"referee"`
	} `json:"fixture"`
	Teams struct {
		Home teamItem `json:"home"`
		Away teamItem `json:"away"`
	} `json:"teams"`
	Goals struct {
		Home *int `json:"home"`
		Away *int `json:"away"`
	} `json:"goals"`
	League struct {
		Name   string `json:"name"`
		Round  string `json:"round"`
		Season *int   `json:"season"`
	} `json:"league"`
}

type teamItem struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Code    string `json:"code"`
	Logo    string `json:"logo"`
	Country string `json:"country"`
}

type eventEnvelope struct {
	Response []eventItem `json:"response"`
}

type eventItem struct {
	Time struct {
		Elapsed *int `json:"elapsed"`
	} `json:"time"`
	Team struct {
		ID int64 `json:"id"`
	} `json:"team"`
	Player struct {
		Name string `json:"name"`
	} `json:"player"`
	Type     string `json:"type"`
	Detail   string `json:"detail"`
	Comments string `json:"comments"`
}

// --------------------------------------------------------------------------
// Matches
// --------------------------------------------------------------------------

// ParseMatch decodes a single-fixture response body into a Match.
func (p *Parser) ParseMatch(raw json.RawMessage) (model.Match, error) {
	matches, err := p.ParseMatches(raw)
	if err != nil {
		return model.Match{}, err
	}
	if len(matches) == 0 {
		return model.Match{}, &ParseError{Reason: "response contains no fixtures"}
	}
	return matches[0], nil
}

// ParseMatches decodes a fixtures response body. Items that fail their
// construction invariants are skipped with a warning so one malformed
// fixture never poisons the whole batch.
func (p *Parser) ParseMatches(raw json.RawMessage) ([]model.Match, error) {
	var envelope fixtureEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, &ParseError{Reason: "decode fixtures response", Err: err}
	}

	matches := make([]model.Match, 0, len(envelope.Response))
	for _, item := range envelope.Response {
		m, err := parseFixture(item)
		if err != nil {
			p.logger.Warn("Skipping invalid fixture", "error", err)
			continue
		}
		matches = append(matches, m)
	}
	return matches, nil
}

func parseFixture(item fixtureItem) (model.Match, error) {
	startTime, err := time.Parse(time.RFC3339, item.Fixture.Date)
	if err != nil {
		return model.Match{}, &ParseError{
			Reason: fmt.Sprintf("fixture %d: bad date %q", item.Fixture.ID, item.Fixture.Date),
			Err:    err,
		}
	}

	season := ""
	if item.League.Season != nil {
		season = strconv.Itoa(*item.League.Season)
	}

	m := model.Match{
		ID:          strconv.FormatInt(item.Fixture.ID, 10),
		HomeTeam:    parseTeam(item.Teams.Home),
		AwayTeam:    parseTeam(item.Teams.Away),
		StartTime:   startTime,
		Status:      statusFromShortCode(item.Fixture.Status.Short),
		Score:       model.NewScore(intOrZero(item.Goals.Home), intOrZero(item.Goals.Away)),
		Competition: item.League.Name,
		Venue:       item.Fixture.Venue.Name,
		Referee:     item.Fixture.Referee,
		Round:       item.League.Round,
		Season:      season,
	}
	if err := m.Validate(); err != nil {
		return model.Match{}, &ParseError{
			Reason: fmt.Sprintf("fixture %d", item.Fixture.ID),
			Err:    err,
		}
	}
	return m, nil
}

func parseTeam(item teamItem) model.Team {
	t := model.Team{
		ID:        strconv.FormatInt(item.ID, 10),
		Name:      item.Name,
		ShortName: item.Code,
		LogoURL:   item.Logo,
		Country:   item.Country,
	}
	if t.ShortName == "" {
		t.ShortName = t.Name
	}
	return t
}

// --------------------------------------------------------------------------
// Events
// --------------------------------------------------------------------------

// ParseEvents decodes a fixture events response body. Event ids are derived
// from match id, minute, type, and team so repeated fetches of the same
// list deduplicate against the detector's seen set.
func (p *Parser) ParseEvents(raw json.RawMessage, matchID string) ([]model.Event, error) {
	var envelope eventEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, &ParseError{Reason: "decode events response", Err: err}
	}

	events := make([]model.Event, 0, len(envelope.Response))
	for _, item := range envelope.Response {
		e := parseEvent(item, matchID)
		if err := e.Validate(); err != nil {
			p.logger.Warn("Skipping invalid event", "match_id", matchID, "error", err)
			continue
		}
		events = append(events, e)
	}
	return events, nil
}

func parseEvent(item eventItem, matchID string) model.Event {
	eventType := eventTypeFromAPI(item.Type)
	if eventType == model.EventYellowCard && item.Detail == "Red Card" {
		eventType = model.EventRedCard
	}

	teamID := ""
	if item.Team.ID != 0 {
		teamID = strconv.FormatInt(item.Team.ID, 10)
	}

	var parts []string
	if item.Player.Name != "" {
		parts = append(parts, item.Player.Name)
	}
	if item.Detail != "" {
		parts = append(parts, item.Detail)
	}
	if item.Comments != "" {
		parts = append(parts, item.Comments)
	}

	elapsed := 0
	if item.Time.Elapsed != nil {
		elapsed = *item.Time.Elapsed
	}

	return model.Event{
		ID:          fmt.Sprintf("%s_%d_%s_%s", matchID, elapsed, eventType, teamID),
		MatchID:     matchID,
		Type:        eventType,
		Minute:      item.Time.Elapsed,
		TeamID:      teamID,
		PlayerName:  item.Player.Name,
		Description: strings.Join(parts, " - "),
	}
}

// --------------------------------------------------------------------------
// Upstream vocabulary
// --------------------------------------------------------------------------

// statusFromShortCode maps API-Football status short codes to MatchStatus.
// Unknown codes coerce to StatusUnknown rather than failing.
func statusFromShortCode(short string) model.MatchStatus {
	switch short {
	case "TBD", "NS":
		return model.StatusScheduled
	case "1H", "2H", "ET", "BT", "P", "LIVE":
		return model.StatusInPlay
	case "HT":
		return model.StatusHalfTime
	case "SUSP":
		return model.StatusSuspended
	case "INT":
		return model.StatusPaused
	case "FT", "AET", "PEN":
		return model.StatusFinished
	case "PST":
		return model.StatusPostponed
	case "CANC", "ABD":
		return model.StatusCancelled
	case "AWD", "WO":
		return model.StatusAwarded
	default:
		return model.StatusUnknown
	}
}

func eventTypeFromAPI(apiType string) model.EventType {
	switch apiType {
	case "Goal":
		return model.EventGoal
	case "Card":
		return model.EventYellowCard // refined to red via detail
	case "Subst":
		return model.EventSubstitution
	case "Penalty missed":
		return model.EventPenaltyMissed
	default:
		return model.EventOther
	}
}

func intOrZero(n *int) int {
	if n == nil {
		return 0
	}
	return *n
}
