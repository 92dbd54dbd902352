package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// CronScheduler runs the recurring jobs: one metrics refresh cycle plus one
// daily draft slot per user. Per-user entries can be replaced at runtime as
// users change their preferred time.
type CronScheduler struct {
	cron   *cron.Cron
	logger *slog.Logger

	draftJob func(ctx context.Context, chatID string)

	mu      sync.Mutex
	entries map[string]cron.EntryID // chatID -> daily entry
}

// New builds a scheduler in the given location.
func New(location *time.Location, logger *slog.Logger) *CronScheduler {
	return &CronScheduler{
		cron:    cron.New(cron.WithLocation(location)),
		logger:  logger,
		entries: make(map[string]cron.EntryID),
	}
}

// SetDraftJob registers the callback used for daily draft slots. Must be
// called before ScheduleDaily.
func (s *CronScheduler) SetDraftJob(job func(ctx context.Context, chatID string)) {
	s.draftJob = job
}

// AddMetricsCycle registers the metrics refresh on a cron spec.
func (s *CronScheduler) AddMetricsCycle(spec string, job func(ctx context.Context) error) error {
	_, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		if err := job(ctx); err != nil {
			s.logger.Error("metrics cycle failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("add metrics job: %w", err)
	}
	return nil
}

// ScheduleDaily sets (or replaces) a user's daily draft slot. preferredTime
// is HH:MM in the user's local time; tzOffsetSeconds shifts it to the
// scheduler's clock.
func (s *CronScheduler) ScheduleDaily(chatID, preferredTime string, tzOffsetSeconds int) error {
	if s.draftJob == nil {
		return fmt.Errorf("draft job not configured")
	}

	spec, err := dailySpec(preferredTime, tzOffsetSeconds)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.entries[chatID]; ok {
		s.cron.Remove(old)
	}

	id, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		s.draftJob(ctx, chatID)
	})
	if err != nil {
		return fmt.Errorf("add daily job: %w", err)
	}
	s.entries[chatID] = id

	s.logger.Info("daily draft scheduled", "chat_id", chatID, "spec", spec)
	return nil
}

// CancelDaily removes a user's daily slot if one exists.
func (s *CronScheduler) CancelDaily(chatID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.entries[chatID]; ok {
		s.cron.Remove(id)
		delete(s.entries, chatID)
	}
}

// Start begins running jobs in the background.
func (s *CronScheduler) Start() {
	s.cron.Start()
}

// Stop halts scheduling and waits for running jobs.
func (s *CronScheduler) Stop(ctx context.Context) error {
	stopped := s.cron.Stop()
	select {
	case <-stopped.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// dailySpec converts a local HH:MM plus a UTC offset into a cron spec in
// scheduler time (assumed UTC).
func dailySpec(preferredTime string, tzOffsetSeconds int) (string, error) {
	parsed, err := time.Parse("15:04", strings.TrimSpace(preferredTime))
	if err != nil {
		return "", fmt.Errorf("invalid time %q: %w", preferredTime, err)
	}

	local := parsed.Hour()*60 + parsed.Minute()
	utc := local - tzOffsetSeconds/60
	utc = ((utc % (24 * 60)) + 24*60) % (24 * 60)

	return fmt.Sprintf("%d %d * * *", utc%60, utc/60), nil
}
