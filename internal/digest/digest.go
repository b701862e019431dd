// Package digest periodically sweeps all users and sends new matches
// for saved searches that are due under their subscription policy.
package digest

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"jobscout_bot/internal/model"
	"jobscout_bot/internal/session"
	"jobscout_bot/internal/storage"
)

// Sender is the interface for sending Telegram messages.
type Sender interface {
	SendMessage(chatID int64, text string)
}

// Formatter renders a job row as a digest line.
type Formatter func(model.JobRecord) string

const (
	defaultTick = 30 * time.Minute

	// resultsPerSearch bounds the upstream fetch for one saved search.
	resultsPerSearch = 15
	// sendsPerSearch bounds how many rows are actually sent.
	sendsPerSearch = 5
)

// Scheduler runs the digest sweep on a fixed interval.
type Scheduler struct {
	store    storage.Store
	searcher session.Searcher
	sender   Sender
	format   Formatter
	log      *slog.Logger
	tick     time.Duration
	limiter  *rate.Limiter
	now      func() time.Time
}

// New creates a Scheduler with the default 30-minute tick.
func New(store storage.Store, searcher session.Searcher, sender Sender, format Formatter, log *slog.Logger) *Scheduler {
	return &Scheduler{
		store:    store,
		searcher: searcher,
		sender:   sender,
		format:   format,
		log:      log,
		tick:     defaultTick,
		// ~20 messages/sec max for Telegram
		limiter: rate.NewLimiter(rate.Limit(20), 5),
		now:     time.Now,
	}
}

// SetTickInterval overrides the default sweep interval.
func (s *Scheduler) SetTickInterval(d time.Duration) {
	s.tick = d
}

// Run starts the sweep loop, blocking until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	s.sweep(ctx)

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// sweep evaluates every known user. A failure for one user never
// aborts the sweep for the others.
func (s *Scheduler) sweep(ctx context.Context) {
	ids, err := s.store.ListUserIDs()
	if err != nil {
		s.log.Error("list users", "error", err)
		return
	}

	for _, id := range ids {
		if ctx.Err() != nil {
			return
		}
		s.digestUser(ctx, id)
	}
}

func (s *Scheduler) digestUser(ctx context.Context, id int64) {
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		s.log.Error("load user", "user_id", id, "error", err)
		return
	}
	if len(u.SavedSearches) == 0 {
		return
	}

	sentHeader := false
	for idx, ss := range u.SavedSearches {
		sub := ss.Subscription
		period := sub.Freq.PeriodSeconds()
		if period == 0 || sub.Paused {
			continue
		}
		if s.now().Unix()-sub.LastSentAt < period {
			continue
		}

		// Look back over one subscription period.
		filters := ss.Filters
		if filters.HoursOld == 0 {
			filters.HoursOld = int(period / 3600)
		}

		rows, err := s.searcher.Search(ctx, filters, u.Sources, u.Country, resultsPerSearch, 0)
		if err != nil {
			// Treated like an empty result: lastSentAt still advances
			// so a flapping upstream is not re-polled every cycle.
			s.log.Warn("digest search failed", "user_id", id, "search", ss.Name, "error", err)
			rows = nil
		}

		if len(rows) > 0 {
			if !sentHeader {
				s.send(ctx, id, "New jobs for your saved searches:")
				sentHeader = true
			}
			s.send(ctx, id, "• "+ss.Name)
			n := len(rows)
			if n > sendsPerSearch {
				n = sendsPerSearch
			}
			for _, j := range rows[:n] {
				s.send(ctx, id, s.format(j))
			}
			s.log.Info("sent digest", "user_id", id, "search", ss.Name, "count", n)
		}

		s.advance(ctx, id, idx)
	}
}

// advance moves the search's lastSentAt to now, preserving its paused
// flag and frequency.
func (s *Scheduler) advance(ctx context.Context, id int64, idx int) {
	err := s.store.UpdateSavedSearch(ctx, id, idx, func(ss *model.SavedSearch) {
		ss.Subscription.LastSentAt = s.now().Unix()
	})
	if err != nil {
		s.log.Error("advance subscription", "user_id", id, "idx", idx, "error", err)
	}
}

func (s *Scheduler) send(ctx context.Context, chatID int64, text string) {
	if err := s.limiter.Wait(ctx); err != nil {
		return
	}
	s.sender.SendMessage(chatID, text)
}
