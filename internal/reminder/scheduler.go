// Package reminder runs the background poll that turns due bookings
// into notifications. Delivery is at-least-once: the sent flag is only
// set after the notifier confirms dispatch, so a failed send is
// retried on the next poll.
package reminder

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/Karamelishe/TgBOT/internal/metrics"
	"github.com/Karamelishe/TgBOT/internal/models"
	"github.com/Karamelishe/TgBOT/internal/timeutil"
)

// Store is the persistence surface the scheduler needs.
type Store interface {
	FindDueReminders(ctx context.Context, nowUTC time.Time, pollInterval time.Duration) ([]models.DueReminder, error)
	MarkReminderSent(ctx context.Context, bookingID int64) error
}

// Notifier delivers a reminder text to a chat.
type Notifier interface {
	Send(ctx context.Context, chatID int64, text string) error
}

// Config holds scheduler settings.
type Config struct {
	// PollInterval is the cycle period and the width of the due
	// window.
	PollInterval time.Duration
	// Timezone is the zone reminders quote appointment times in.
	Timezone string
	// SendRate and SendBurst pace notifier calls.
	SendRate  float64
	SendBurst int
}

// DefaultConfig returns the reference configuration: a 60 second poll.
func DefaultConfig(timezone string) Config {
	return Config{
		PollInterval: time.Minute,
		Timezone:     timezone,
		SendRate:     20,
		SendBurst:    30,
	}
}

// Scheduler polls the store and dispatches due reminders.
type Scheduler struct {
	config   Config
	store    Store
	notifier Notifier
	limiter  *rate.Limiter
	logger   *zerolog.Logger

	// now is injectable for tests.
	now func() time.Time

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
}

func NewScheduler(config Config, store Store, notifier Notifier, logger *zerolog.Logger) *Scheduler {
	if config.PollInterval <= 0 {
		config.PollInterval = time.Minute
	}
	if config.SendRate <= 0 {
		config.SendRate = 20
	}
	if config.SendBurst <= 0 {
		config.SendBurst = 30
	}
	return &Scheduler{
		config:   config,
		store:    store,
		notifier: notifier,
		limiter:  rate.NewLimiter(rate.Limit(config.SendRate), config.SendBurst),
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
		stopCh:   make(chan struct{}),
	}
}

// Start runs the poll loop until ctx is cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	s.logger.Info().Dur("poll_interval", s.config.PollInterval).Msg("Reminder scheduler started")

	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("Reminder scheduler stopped by context")
			return
		case <-s.stopCh:
			s.logger.Info().Msg("Reminder scheduler stopped")
			return
		case <-ticker.C:
			s.RunCycle(ctx)
		}
	}
}

// Stop terminates the loop.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.running {
		s.running = false
		close(s.stopCh)
	}
	s.mu.Unlock()
}

// IsRunning reports whether the loop is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// RunCycle performs one poll: scan, dispatch, mark. Every failure is
// contained to its booking; a bad row or a notifier outage never stops
// the cycle, let alone the loop.
func (s *Scheduler) RunCycle(ctx context.Context) {
	now := s.now()

	due, err := s.store.FindDueReminders(ctx, now, s.config.PollInterval)
	if err != nil {
		s.logger.Error().Err(err).Msg("Reminder scan failed")
		return
	}
	if len(due) == 0 {
		return
	}

	s.logger.Info().Int("count", len(due)).Msg("Due reminders found")

	for _, d := range due {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if err := s.dispatch(ctx, d); err != nil {
			metrics.IncReminderDispatch("failed")
			s.logger.Error().Err(err).
				Int64("booking_id", d.BookingID).
				Int64("chat_id", d.ChatID).
				Msg("Reminder dispatch failed, will retry next cycle")
			continue
		}
		metrics.IncReminderDispatch("ok")
	}
}

// dispatch sends one reminder and marks it sent. The flag is set only
// after a confirmed send; a failure between send and mark means one
// extra delivery on the next cycle, never zero.
func (s *Scheduler) dispatch(ctx context.Context, d models.DueReminder) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	text, err := s.formatMessage(d)
	if err != nil {
		return err
	}
	if err := s.notifier.Send(ctx, d.ChatID, text); err != nil {
		return fmt.Errorf("send reminder: %w", err)
	}
	if err := s.store.MarkReminderSent(ctx, d.BookingID); err != nil {
		return fmt.Errorf("mark sent: %w", err)
	}

	s.logger.Info().
		Int64("booking_id", d.BookingID).
		Int64("chat_id", d.ChatID).
		Time("slot_start", d.SlotStartUTC).
		Msg("Reminder sent")
	return nil
}

func (s *Scheduler) formatMessage(d models.DueReminder) (string, error) {
	date, clock, err := timeutil.ToLocal(d.SlotStartUTC, s.config.Timezone)
	if err != nil {
		return "", fmt.Errorf("format reminder time: %w", err)
	}
	return fmt.Sprintf("Напоминание: вы записаны на %s в %s (через %d ч.)", date, clock, d.HoursBefore), nil
}

// SetNow overrides the clock; tests only.
func (s *Scheduler) SetNow(now func() time.Time) {
	s.now = now
}
