package change

import (
	"context"
	"log/slog"
	"time"

	"github.com/leapstack-labs/leapolap/internal/metrics"
	"github.com/leapstack-labs/leapolap/internal/state"
)

// EventSource is where a Poller reads change events from.
// *state.SQLiteStore satisfies it.
type EventSource interface {
	Since(ctx context.Context, seq int64, limit int) ([]state.ChangeEvent, error)
	LatestSeq(ctx context.Context) (int64, error)
}

// RemoveFunc removes one member from the caches of a hierarchy.
type RemoveFunc func(hierarchy, member string) error

// Poller applies new change-log events to a Tracker.
type Poller struct {
	source   EventSource
	tracker  *Tracker
	remove   RemoveFunc
	applied  func(state.ChangeEvent)
	interval time.Duration
	batch    int
	logger   *slog.Logger
	last     int64
}

// PollerOption configures a Poller.
type PollerOption func(*Poller)

// WithInterval sets the time between polls of Run.
func WithInterval(d time.Duration) PollerOption {
	return func(p *Poller) { p.interval = d }
}

// WithRemove handles remove events member by member. Without it a remove
// event marks its whole hierarchy.
func WithRemove(fn RemoveFunc) PollerOption {
	return func(p *Poller) { p.remove = fn }
}

// WithApplied is called with every event after it is applied.
func WithApplied(fn func(state.ChangeEvent)) PollerOption {
	return func(p *Poller) { p.applied = fn }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) PollerOption {
	return func(p *Poller) { p.logger = logger }
}

func NewPoller(source EventSource, tracker *Tracker, opts ...PollerOption) *Poller {
	p := &Poller{
		source:   source,
		tracker:  tracker,
		interval: 5 * time.Second,
		batch:    500,
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start skips the events already in the log.
func (p *Poller) Start(ctx context.Context) error {
	seq, err := p.source.LatestSeq(ctx)
	if err != nil {
		return err
	}
	p.last = seq
	return nil
}

// Poll applies the events recorded since the last poll and returns how
// many it applied. Poll is not safe for concurrent use.
func (p *Poller) Poll(ctx context.Context) (int, error) {
	applied := 0
	for {
		events, err := p.source.Since(ctx, p.last, p.batch)
		if err != nil {
			return applied, err
		}
		for _, ev := range events {
			p.apply(ev)
			p.last = ev.Seq
			applied++
			if p.applied != nil {
				p.applied(ev)
			}
		}
		if len(events) < p.batch {
			return applied, nil
		}
	}
}

func (p *Poller) apply(ev state.ChangeEvent) {
	metrics.ChangeEvents.WithLabelValues(string(ev.Kind)).Inc()
	if ev.Kind == state.EventRemove && p.remove != nil && ev.Hierarchy != "" && ev.Member != "" {
		err := p.remove(ev.Hierarchy, ev.Member)
		if err == nil {
			p.logger.Debug("removed member", "hierarchy", ev.Hierarchy, "member", ev.Member, "event", ev.ID)
			return
		}
		p.logger.Warn("member removal failed, flushing hierarchy", "member", ev.Member, "error", err)
	}
	if ev.Hierarchy == "" {
		p.tracker.MarkAll()
	} else {
		p.tracker.Mark(ev.Hierarchy)
	}
	p.logger.Debug("applied change event", "kind", ev.Kind, "hierarchy", ev.Hierarchy, "event", ev.ID)
}

// Run polls until ctx is done. Poll errors are logged and retried on the
// next tick.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := p.Poll(ctx); err != nil && ctx.Err() == nil {
				p.logger.Warn("change log poll failed", "error", err)
			}
		}
	}
}
