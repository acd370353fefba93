// Package notify fans detected events out to notification channels. The
// Dispatcher treats every channel failure as non-fatal: one broken channel
// never blocks the others or the polling tick that produced the events.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/goalwatch/goalwatch/internal/model"
)

// Notifier delivers a batch of events for one match over one channel.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, match model.Match, events []model.Event) error
}

// Dispatcher fans events out to all configured notifiers.
type Dispatcher struct {
	notifiers []Notifier
	logger    *slog.Logger
}

// NewDispatcher creates a Dispatcher. Nil notifiers are dropped so
// unconfigured channels can be passed straight in.
func NewDispatcher(logger *slog.Logger, notifiers ...Notifier) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	kept := make([]Notifier, 0, len(notifiers))
	for _, n := range notifiers {
		if n != nil {
			kept = append(kept, n)
		}
	}
	return &Dispatcher{notifiers: kept, logger: logger}
}

// Dispatch sends the events to every notifier, logging per-channel
// failures and carrying on.
func (d *Dispatcher) Dispatch(ctx context.Context, match model.Match, events []model.Event) {
	if len(events) == 0 {
		return
	}
	for _, n := range d.notifiers {
		if err := n.Notify(ctx, match, events); err != nil {
			d.logger.Warn("Notification delivery failed",
				"channel", n.Name(), "match_id", match.ID, "error", err)
		}
	}
}

// FormatEvent renders one event as a human-readable line, shared by the
// text-oriented channels.
func FormatEvent(e model.Event) string {
	prefix := map[model.EventType]string{
		model.EventGoal:       "GOAL",
		model.EventMatchStart: "KICK-OFF",
		model.EventMatchEnd:   "FULL-TIME",
		model.EventHalfTime:   "HALF-TIME",
		model.EventYellowCard: "YELLOW CARD",
		model.EventRedCard:    "RED CARD",
	}[e.Type]
	if prefix == "" {
		prefix = string(e.Type)
	}

	line := prefix
	if e.Description != "" {
		line = fmt.Sprintf("%s: %s", prefix, e.Description)
	}
	if e.Minute != nil {
		line = fmt.Sprintf("%s (%d')", line, *e.Minute)
	}
	return line
}

// LogSink writes events to the structured log. Always configured, so a
// deployment with no external channels still records everything detected.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a LogSink.
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Notify(_ context.Context, match model.Match, events []model.Event) error {
	for _, e := range events {
		s.logger.Info("Match event",
			"match", match.Title(),
			"type", e.Type,
			"event_id", e.ID,
			"detail", FormatEvent(e))
	}
	return nil
}
