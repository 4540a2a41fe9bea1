// Package chat – AdaptivePoller
//
// One Poller owns the freshness of one conversation's window. It is a
// self-paced loop, not a fixed-rate ticker: the next cycle is scheduled only
// after the current one settles (applied, not-modified, or error), so at
// most one fetch is ever in flight per conversation and updates apply in a
// total order. Pollers for different conversations are fully independent.
//
// The cadence adapts to observed use:
//
//	backgrounded app            60s
//	no activity for over a minute  10s
//	recently active              2s
//
// Each fetch is conditional: the previous response's Last-Modified value is
// echoed as If-Modified-Since so the backend can answer 304 cheaply.
//
// Stopping cancels the pending timer and bumps a generation counter; a
// fetch that resolves after Stop sees the stale generation and discards its
// result without touching the window.
package chat

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-coach-sync/internal/api"
)

var pollCycles = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "chat_poll_cycles_total",
		Help: "Total number of poll cycles by outcome.",
	},
	[]string{"outcome"},
)

func init() {
	prometheus.MustRegister(pollCycles)
}

// PollState labels the poller's lifecycle position.
type PollState int

const (
	// StateIdle: constructed but not started.
	StateIdle PollState = iota
	// StateScheduled: a timer for the next cycle is pending.
	StateScheduled
	// StateFetching: a request is in flight.
	StateFetching
	// StateStopped: terminal; late results are discarded.
	StateStopped
)

// Intervals parameterizes the cadence policy.
type Intervals struct {
	Active     time.Duration // recently active
	IdleSlow   time.Duration // idle past IdleAfter
	Background time.Duration // app backgrounded
	IdleAfter  time.Duration // activity age that flips Active -> IdleSlow
}

// DefaultIntervals returns the production cadence.
func DefaultIntervals() Intervals {
	return Intervals{
		Active:     2 * time.Second,
		IdleSlow:   10 * time.Second,
		Background: 60 * time.Second,
		IdleAfter:  60 * time.Second,
	}
}

// ComputeInterval selects the next poll delay. Backgrounding dominates
// regardless of how recent the last activity was.
func ComputeInterval(iv Intervals, background bool, sinceActivity time.Duration) time.Duration {
	if background {
		return iv.Background
	}
	if sinceActivity > iv.IdleAfter {
		return iv.IdleSlow
	}
	return iv.Active
}

// MessageFetcher is the remote capability a Poller needs. *api.Client
// satisfies it.
type MessageFetcher interface {
	FetchMessages(ctx context.Context, conversationID string, limit int, ifModifiedSince string) (*api.MessagesResult, error)
	MarkRead(ctx context.Context, conversationID string) error
}

// Poller keeps one conversation's Window fresh.
type Poller struct {
	conversationID string
	fetch          MessageFetcher
	window         *Window
	intervals      Intervals
	limit          int
	log            zerolog.Logger

	mu           sync.Mutex
	state        PollState
	gen          uint64
	timer        *time.Timer
	lastActivity time.Time
	background   bool
	lastModified string
	cancel       context.CancelFunc
}

// NewPoller builds a poller over fetch and window. limit is the per-fetch
// message cap sent to the backend.
func NewPoller(conversationID string, fetch MessageFetcher, window *Window, iv Intervals, limit int) *Poller {
	if limit <= 0 {
		limit = DefaultWindowCap
	}
	return &Poller{
		conversationID: conversationID,
		fetch:          fetch,
		window:         window,
		intervals:      iv,
		limit:          limit,
		lastActivity:   time.Now(),
		log: log.With().
			Str("component", "poller").
			Str("conversation_id", conversationID).
			Logger(),
	}
}

// State returns the current lifecycle state.
func (p *Poller) State() PollState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Touch records user activity (typing, sending, scrolling), which feeds the
// cadence policy.
func (p *Poller) Touch() {
	p.mu.Lock()
	p.lastActivity = time.Now()
	p.mu.Unlock()
}

// SetBackground flags whether the app is backgrounded. The new cadence
// takes effect when the next cycle is scheduled.
func (p *Poller) SetBackground(v bool) {
	p.mu.Lock()
	p.background = v
	p.mu.Unlock()
}

// Start moves Idle -> Scheduled and returns a stop function. Starting an
// already started or stopped poller is a no-op returning the same stop.
// ctx bounds each fetch; canceling it is equivalent to calling stop.
func (p *Poller) Start(ctx context.Context) (stop func()) {
	p.mu.Lock()
	if p.state != StateIdle {
		p.mu.Unlock()
		return p.Stop
	}
	ctx, p.cancel = context.WithCancel(ctx)
	p.state = StateScheduled
	delay := ComputeInterval(p.intervals, p.background, time.Since(p.lastActivity))
	gen := p.gen
	p.timer = time.AfterFunc(delay, func() { p.cycle(ctx, gen) })
	p.mu.Unlock()
	return p.Stop
}

// Stop is terminal: it cancels the pending timer, invalidates any in-flight
// cycle, and releases the fetch context. Safe to call more than once.
func (p *Poller) Stop() {
	p.mu.Lock()
	if p.state == StateStopped {
		p.mu.Unlock()
		return
	}
	p.state = StateStopped
	p.gen++
	if p.timer != nil {
		p.timer.Stop()
	}
	cancel := p.cancel
	p.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// cycle runs one fetch and reschedules. gen is the generation this cycle
// belongs to; if Stop ran in the meantime the generation no longer matches
// and the result is discarded.
func (p *Poller) cycle(ctx context.Context, gen uint64) {
	p.mu.Lock()
	if p.state == StateStopped || gen != p.gen {
		p.mu.Unlock()
		return
	}
	p.state = StateFetching
	ims := p.lastModified
	p.mu.Unlock()

	res, err := p.fetch.FetchMessages(ctx, p.conversationID, p.limit, ims)

	p.mu.Lock()
	if p.state == StateStopped || gen != p.gen {
		// Stopped while the request was in flight; discard.
		p.mu.Unlock()
		return
	}
	if ctx.Err() != nil {
		// The Start context is gone, so every further fetch would fail the
		// same way. Treat it as a stop instead of spinning on errors.
		p.state = StateStopped
		p.gen++
		p.mu.Unlock()
		p.log.Debug().Msg("poll context canceled; stopping")
		return
	}

	applied := false
	switch {
	case err != nil:
		// Errors never stop the loop and never clear held messages.
		pollCycles.WithLabelValues("error").Inc()
		p.log.Debug().Err(err).Msg("poll cycle failed")
	case res.NotModified:
		pollCycles.WithLabelValues("not_modified").Inc()
	default:
		if res.LastModified != "" {
			p.lastModified = res.LastModified
		}
		if p.window.Apply(res.Messages) {
			pollCycles.WithLabelValues("applied").Inc()
			applied = true
		} else {
			pollCycles.WithLabelValues("unchanged").Inc()
		}
	}

	p.state = StateScheduled
	delay := ComputeInterval(p.intervals, p.background, time.Since(p.lastActivity))
	p.timer = time.AfterFunc(delay, func() { p.cycle(ctx, gen) })
	p.mu.Unlock()

	if applied {
		// Best-effort read receipt; failures are invisible to the loop.
		if err := p.fetch.MarkRead(ctx, p.conversationID); err != nil {
			p.log.Debug().Err(err).Msg("mark read failed")
		}
	}
}
