package reengage

import (
	"context"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"github.com/aurora-ops/dmbridge/internal/agestr"
	"github.com/aurora-ops/dmbridge/platform"
)

const (
	defaultMinHours = 1.0
	defaultMaxHours = 48.0
	defaultMinDelay = 40 * time.Second
	defaultMaxDelay = 60 * time.Second
)

// Candidate is one quiet conversation observed during an inbox pass.
type Candidate struct {
	Username string
	ThreadID string
	AgeLabel string
	Language string
}

type Scheduler struct {
	Store     *Store
	Sender    platform.Sender
	Templates Templates

	MinHours float64
	MaxHours float64
	MinDelay time.Duration
	MaxDelay time.Duration
	Logger   *slog.Logger

	sleep func(ctx context.Context, d time.Duration)
	randn func(n int64) int64
}

// MaybeReengage sends the outreach to one candidate if their age falls in
// the window and no record exists yet. Reports whether a send happened.
func (s *Scheduler) MaybeReengage(ctx context.Context, c Candidate) (bool, error) {
	minHours, maxHours := s.window()
	age := agestr.Hours(c.AgeLabel)
	if age < minHours || age > maxHours {
		return false, nil
	}

	sent, err := s.Store.Has(ctx, c.Username)
	if err != nil {
		return false, err
	}
	if sent {
		return false, nil
	}

	msg := s.Templates.Compose(ctx, c.Language)
	recipient := c.ThreadID
	if strings.TrimSpace(recipient) == "" {
		recipient = c.Username
	}
	if err := s.Sender.Send(ctx, recipient, msg); err != nil {
		s.logger().Warn("reengage_send_failed", "username", c.Username, "error", err.Error())
		return false, nil
	}
	if err := s.Store.Record(ctx, c.Username, msg); err != nil {
		return true, err
	}
	s.logger().Info("reengage_sent", "username", c.Username, "age_hours", age)
	return true, nil
}

// Run walks the candidates in order, pausing a randomized delay between
// sends. The spacing keeps the outbound pattern from looking scripted to
// the platform; it is not a correctness mechanism.
func (s *Scheduler) Run(ctx context.Context, candidates []Candidate) int {
	sentCount := 0
	for _, c := range candidates {
		if ctx.Err() != nil {
			return sentCount
		}
		sent, err := s.MaybeReengage(ctx, c)
		if err != nil {
			s.logger().Warn("reengage_failed", "username", c.Username, "error", err.Error())
			continue
		}
		if !sent {
			continue
		}
		sentCount++
		s.Pause(ctx)
	}
	return sentCount
}

func (s *Scheduler) window() (float64, float64) {
	minHours, maxHours := s.MinHours, s.MaxHours
	if minHours <= 0 {
		minHours = defaultMinHours
	}
	if maxHours <= 0 {
		maxHours = defaultMaxHours
	}
	return minHours, maxHours
}

// Pause sleeps the randomized spacing delay that belongs between two
// consecutive outreach sends. Callers driving candidates one at a time
// apply it after each send that went out.
func (s *Scheduler) Pause(ctx context.Context) {
	minDelay, maxDelay := s.MinDelay, s.MaxDelay
	if minDelay <= 0 {
		minDelay = defaultMinDelay
	}
	if maxDelay < minDelay {
		maxDelay = defaultMaxDelay
	}
	span := int64(maxDelay - minDelay)
	delay := minDelay
	if span > 0 {
		randn := s.randn
		if randn == nil {
			randn = rand.Int63n
		}
		delay += time.Duration(randn(span))
	}
	if s.sleep != nil {
		s.sleep(ctx, delay)
		return
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func (s *Scheduler) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}
