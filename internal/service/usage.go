package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bcnelson/free-api/internal/domain"
	"github.com/bcnelson/free-api/internal/storage"
)

// Usage report window bounds, in days.
const (
	DefaultUsageDays = 30
	MinUsageDays     = 1
	MaxUsageDays     = 90
)

// ClampDays limits days to [MinUsageDays, MaxUsageDays].
func ClampDays(days int) int {
	if days < MinUsageDays {
		return MinUsageDays
	}
	if days > MaxUsageDays {
		return MaxUsageDays
	}
	return days
}

// UsageService answers usage questions for the dashboard.
type UsageService struct {
	store storage.Storage
	now   func() time.Time
}

// NewUsageService creates a new UsageService.
func NewUsageService(store storage.Storage) *UsageService {
	return &UsageService{store: store, now: time.Now}
}

// Report sums accepted requests across all of ownerID's keys for each UTC
// day in [today-days, today]. days is clamped first. Days without usage are
// left out of ByDay.
func (s *UsageService) Report(ctx context.Context, ownerID string, days int) (*domain.UsageReport, error) {
	days = ClampDays(days)

	keys, err := s.store.ListAPIKeysForUser(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("listing api keys: %w", err)
	}

	report := &domain.UsageReport{ByDay: []domain.DailyUsage{}}
	if len(keys) == 0 {
		return report, nil
	}

	ids := make([]string, len(keys))
	for i, k := range keys {
		ids[i] = k.ID
	}

	since := domain.Day(s.now()).AddDate(0, 0, -days)
	byDay, err := s.store.SumUsageByDay(ctx, ids, since)
	if err != nil {
		return nil, fmt.Errorf("summing usage: %w", err)
	}

	for _, d := range byDay {
		report.Total += d.Count
	}
	if byDay != nil {
		report.ByDay = byDay
	}
	return report, nil
}

// Record counts one accepted request for keyID on the current UTC day.
func (s *UsageService) Record(ctx context.Context, keyID string) error {
	if err := s.store.IncrementUsage(ctx, keyID, domain.Day(s.now()), 1); err != nil {
		return fmt.Errorf("recording usage: %w", err)
	}
	return nil
}
