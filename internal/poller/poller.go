// Package poller wires the polling pipeline together: on each tick it
// refreshes matches that need polling, feeds the new snapshots through the
// event detector, and dispatches whatever comes out. Discovery and
// retention pruning run as separate scheduled tasks.
//
// A tick that fails entirely is logged and the scheduler proceeds to the
// next tick; nothing here crashes the process.
package poller

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/goalwatch/goalwatch/internal/detector"
	"github.com/goalwatch/goalwatch/internal/model"
	"github.com/goalwatch/goalwatch/internal/notify"
	"github.com/goalwatch/goalwatch/internal/retry"
	"github.com/goalwatch/goalwatch/internal/scheduler"
	"github.com/goalwatch/goalwatch/internal/tracker"
)

const recentEventsCap = 200

// Config controls tick cadence and windows.
type Config struct {
	LivePollInterval    time.Duration // refresh cadence for live matches
	DiscoveryInterval   time.Duration // how often to discover new fixtures
	DiscoveryWindowDays int           // rolling look-ahead for discovery
	PollLead            time.Duration // poll upcoming matches this close to kickoff
	PruneInterval       time.Duration // retention sweep cadence
	RetentionDays       int           // keep terminal matches this long
}

// Poller owns the scheduled pipeline.
type Poller struct {
	tracker    *tracker.Tracker
	detector   *detector.Detector
	dispatcher *notify.Dispatcher
	sched      *scheduler.Scheduler
	cfg        Config
	logger     *slog.Logger

	mu     sync.Mutex
	recent []model.Event // newest last, bounded ring
}

// New creates a Poller.
func New(t *tracker.Tracker, d *detector.Detector, dispatcher *notify.Dispatcher, sched *scheduler.Scheduler, cfg Config, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		tracker:    t,
		detector:   d,
		dispatcher: dispatcher,
		sched:      sched,
		cfg:        cfg,
		logger:     logger,
	}
}

// Start registers the pipeline tasks and launches the scheduler.
func (p *Poller) Start(ctx context.Context) error {
	if err := p.sched.Add("discover", p.discover, scheduler.Every(p.cfg.DiscoveryInterval)); err != nil {
		return err
	}
	if err := p.sched.Add("poll_live", p.pollTick, scheduler.Every(p.cfg.LivePollInterval)); err != nil {
		return err
	}
	if err := p.sched.Add("prune", p.prune, scheduler.Every(p.cfg.PruneInterval)); err != nil {
		return err
	}
	p.sched.Start(ctx)
	return nil
}

// Stop halts the scheduler; the current tick finishes first.
func (p *Poller) Stop() {
	p.sched.Stop()
}

// RecentEvents returns up to n of the most recently dispatched events,
// newest first.
func (p *Poller) RecentEvents(n int) []model.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	if n <= 0 || n > len(p.recent) {
		n = len(p.recent)
	}
	out := make([]model.Event, n)
	for i := 0; i < n; i++ {
		out[i] = p.recent[len(p.recent)-1-i]
	}
	return out
}

// --------------------------------------------------------------------------
// Scheduled tasks
// --------------------------------------------------------------------------

func (p *Poller) discover(ctx context.Context) error {
	discovered, err := p.tracker.Discover(ctx, p.cfg.DiscoveryWindowDays)
	if err != nil {
		return err
	}
	if len(discovered) > 0 {
		p.logger.Info("Discovery tick complete", "new_matches", len(discovered))
	}
	return nil
}

// pollTick refreshes every match needing polling and runs detection on the
// resulting snapshots. A failure for one match is logged and skipped.
func (p *Poller) pollTick(ctx context.Context) error {
	due := p.tracker.NeedingPoll(p.cfg.PollLead)
	if len(due) == 0 {
		return nil
	}
	p.logger.Debug("Polling matches", "count", len(due))

	for _, m := range due {
		updated, statusChanged, err := p.tracker.Refresh(ctx, m.ID)
		if err != nil {
			p.logger.Error("Match refresh failed", "match_id", m.ID, "error", err)
			continue
		}

		events := p.detector.Detect(ctx, updated)
		if len(events) == 0 {
			if statusChanged {
				p.logger.Info("Status changed without notification events",
					"match", updated.Title(), "status", updated.Status)
			}
			continue
		}

		p.dispatcher.Dispatch(ctx, updated, events)
		p.record(events)
	}
	return nil
}

func (p *Poller) prune(ctx context.Context) error {
	pruned := p.tracker.Prune(ctx, p.cfg.RetentionDays)
	cleared := p.detector.ClearFinished(model.TerminalStatuses...)
	if pruned > 0 || cleared > 0 {
		p.logger.Info("Retention sweep complete", "pruned", pruned, "detector_cleared", cleared)
	}
	return nil
}

func (p *Poller) record(events []model.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.recent = append(p.recent, events...)
	if over := len(p.recent) - recentEventsCap; over > 0 {
		p.recent = append([]model.Event(nil), p.recent[over:]...)
	}
}

// --------------------------------------------------------------------------
// Enrichment adapter
// --------------------------------------------------------------------------

// EventsAPI is the upstream events-list endpoint.
type EventsAPI interface {
	MatchEvents(ctx context.Context, matchID string) (json.RawMessage, error)
}

// EventsParser decodes an events-list response.
type EventsParser interface {
	ParseEvents(raw json.RawMessage, matchID string) ([]model.Event, error)
}

// EnrichmentSource adapts the events endpoint into the detector's
// EventSource contract, retry-wrapped like every other remote call.
type EnrichmentSource struct {
	api      EventsAPI
	parser   EventsParser
	policy   retry.Policy
	breakers *retry.Registry
	logger   *slog.Logger
}

// NewEnrichmentSource creates an EnrichmentSource.
func NewEnrichmentSource(api EventsAPI, parser EventsParser, policy retry.Policy, breakers *retry.Registry, logger *slog.Logger) *EnrichmentSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &EnrichmentSource{api: api, parser: parser, policy: policy, breakers: breakers, logger: logger}
}

// MatchEvents fetches and parses the upstream event list for a match.
func (s *EnrichmentSource) MatchEvents(ctx context.Context, matchID string) ([]model.Event, error) {
	raw, err := retry.Do(ctx, "fixtures/events", s.breakers, s.policy, s.logger,
		func(ctx context.Context) (json.RawMessage, error) {
			return s.api.MatchEvents(ctx, matchID)
		})
	if err != nil {
		return nil, err
	}
	return s.parser.ParseEvents(raw, matchID)
}
