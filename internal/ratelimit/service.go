package ratelimit

import (
	"context"
	"log/slog"
	"time"

	id "custodia/pkg/domain"
)

// Service enforces per-subject submission budgets over rolling hourly and
// daily windows. Counter store failures deny the attempt: the intake path is
// compliance-sensitive and must never be bypassable by infrastructure
// failure.
type Service struct {
	store  CounterStore
	limits Limits
	logger *slog.Logger
}

func NewService(store CounterStore, limits Limits, logger *slog.Logger) *Service {
	if limits.HourlyLimit <= 0 || limits.DailyLimit <= 0 {
		limits = DefaultLimits
	}
	return &Service{store: store, limits: limits, logger: logger}
}

// TryConsume consumes one attempt from both windows when both have budget.
// Denied attempts consume nothing. The returned Decision always carries
// remaining counts and the earliest useful retry time.
//
// The decision is made off the count the atomic increment returns, never off
// a prior read: concurrent callers each see a distinct count, so the cap
// holds no matter how the calls interleave. A denied attempt gives its
// increment back.
func (s *Service) TryConsume(ctx context.Context, subjectID id.SubjectID, action Action) (Decision, error) {
	hourKey := counterKey(subjectID, action, "h")
	dayKey := counterKey(subjectID, action, "d")

	hourCount, hourReset, err := s.store.Incr(ctx, hourKey, hourlyWindow)
	if err != nil {
		return s.failClosed(err)
	}
	if hourCount > s.limits.HourlyLimit {
		if err := s.store.Decr(ctx, hourKey); err != nil {
			return s.failClosed(err)
		}
		dayCount, dayReset, err := s.store.Count(ctx, dayKey, dailyWindow)
		if err != nil {
			return s.failClosed(err)
		}
		return Decision{
			Allowed:         false,
			HourlyRemaining: 0,
			DailyRemaining:  remaining(s.limits.DailyLimit, dayCount),
			ResetAt:         deniedResetAt(true, hourReset, dayCount >= s.limits.DailyLimit, dayReset),
		}, nil
	}

	dayCount, dayReset, err := s.store.Incr(ctx, dayKey, dailyWindow)
	if err != nil {
		if derr := s.store.Decr(ctx, hourKey); derr != nil {
			s.logger.Error("failed to roll back hourly counter", "error", derr)
		}
		return s.failClosed(err)
	}
	if dayCount > s.limits.DailyLimit {
		if err := s.store.Decr(ctx, dayKey); err != nil {
			return s.failClosed(err)
		}
		if err := s.store.Decr(ctx, hourKey); err != nil {
			return s.failClosed(err)
		}
		return Decision{
			Allowed:         false,
			HourlyRemaining: remaining(s.limits.HourlyLimit, hourCount-1),
			DailyRemaining:  0,
			ResetAt:         dayReset,
		}, nil
	}

	return Decision{
		Allowed:         true,
		HourlyRemaining: remaining(s.limits.HourlyLimit, hourCount),
		DailyRemaining:  remaining(s.limits.DailyLimit, dayCount),
		ResetAt:         hourReset,
	}, nil
}

func (s *Service) failClosed(err error) (Decision, error) {
	s.logger.Error("rate limit store unavailable, denying attempt", "error", err)
	return Decision{Allowed: false}, err
}

func counterKey(subjectID id.SubjectID, action Action, window string) string {
	return "rl:" + subjectID.String() + ":" + string(action) + ":" + window
}

func remaining(limit, count int) int {
	if count >= limit {
		return 0
	}
	return limit - count
}

// deniedResetAt picks the smaller reset among the exceeded windows, the
// earliest moment a retry could succeed.
func deniedResetAt(hourExceeded bool, hourReset time.Time, dayExceeded bool, dayReset time.Time) time.Time {
	switch {
	case hourExceeded && dayExceeded:
		if hourReset.Before(dayReset) {
			return hourReset
		}
		return dayReset
	case hourExceeded:
		return hourReset
	default:
		return dayReset
	}
}
