package service

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/propgate/propgate/internal/pkg/logger"
)

// ResetScheduler fires each account's daily reset at its firm's reset time,
// in the firm's timezone. It checks once a minute; an account is reset at
// most once per local day.
type ResetScheduler struct {
	tracker   *Tracker
	interval  time.Duration
	lastReset map[string]string // account ID -> local YYYY-MM-DD of last reset
	now       func() time.Time
}

func NewResetScheduler(tracker *Tracker) *ResetScheduler {
	return &ResetScheduler{
		tracker:   tracker,
		interval:  time.Minute,
		lastReset: make(map[string]string),
		now:       time.Now,
	}
}

func (s *ResetScheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	logger.Info("daily reset scheduler started")
	for {
		select {
		case <-ctx.Done():
			logger.Info("daily reset scheduler stopped")
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

func (s *ResetScheduler) tick() {
	for _, account := range s.tracker.Accounts() {
		resetTime, timezone, ok := s.tracker.ResetRule(account.ID)
		if !ok {
			continue
		}
		if s.due(account.ID, resetTime, timezone) {
			s.tracker.ResetDaily(account.ID)
		}
	}
}

func (s *ResetScheduler) due(accountID, resetTime, timezone string) bool {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		loc = time.UTC
	}
	now := s.now().In(loc)

	hour, minute, ok := parseReset(resetTime)
	if !ok {
		return false
	}
	at := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, loc)
	if now.Before(at) {
		return false
	}

	day := now.Format("2006-01-02")
	if s.lastReset[accountID] == day {
		return false
	}
	s.lastReset[accountID] = day
	return true
}

func parseReset(s string) (hour, minute int, ok bool) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	hour, err1 := strconv.Atoi(parts[0])
	minute, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return hour, minute, true
}
