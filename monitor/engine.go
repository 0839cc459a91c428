// Package monitor drives the platform-side loop: deliver queued operator
// replies, route fresh inbound DMs through the handoff race, and hand
// quiet conversations to the re-engagement scheduler.
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/aurora-ops/dmbridge/bridge"
	"github.com/aurora-ops/dmbridge/convo"
	"github.com/aurora-ops/dmbridge/dedup"
	"github.com/aurora-ops/dmbridge/handoff"
	"github.com/aurora-ops/dmbridge/internal/agestr"
	"github.com/aurora-ops/dmbridge/platform"
	"github.com/aurora-ops/dmbridge/reengage"
	"github.com/aurora-ops/dmbridge/translate"
)

const (
	defaultMaxPerCycle   = 40
	defaultCooldown      = 5 * time.Minute
	defaultCycleInterval = 90 * time.Second
	defaultRestartPause  = 60 * time.Second
)

type Engine struct {
	Inbox       platform.Inbox
	Sender      platform.Sender
	Queue       *bridge.Queue
	Pending     *bridge.PendingStore
	Languages   *bridge.LanguageStore
	Convos      *convo.Store
	Audit       *convo.Audit
	Processed   *dedup.Store
	Coordinator *handoff.Coordinator
	Scheduler   *reengage.Scheduler
	Translate   *translate.Service

	// Limiter paces every outbound send across all paths.
	Limiter *rate.Limiter

	MaxPerCycle   int
	Cooldown      time.Duration
	ReengageMin   float64
	ReengageMax   float64
	CycleInterval time.Duration
	RestartPause  time.Duration
	Logger        *slog.Logger

	// The engine is single-threaded per platform process; these caches
	// only dampen re-processing when the platform UI lags.
	lastText  map[string]string
	lastReply map[string]time.Time

	now func() time.Time
}

// Run loops cycles until ctx is canceled. A failed cycle pauses and
// restarts instead of exiting; the process must outlive transient
// platform hiccups.
func (e *Engine) Run(ctx context.Context) error {
	interval := e.CycleInterval
	if interval <= 0 {
		interval = defaultCycleInterval
	}
	pause := e.RestartPause
	if pause <= 0 {
		pause = defaultRestartPause
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := e.RunCycle(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			e.logger().Error("cycle_failed", "error", err.Error(), "pause", pause.String())
			if !sleepCtx(ctx, pause) {
				return ctx.Err()
			}
			continue
		}
		if !sleepCtx(ctx, interval) {
			return ctx.Err()
		}
	}
}

// RunCycle performs one pass: drain the reply bridge, then walk the
// unanswered inbox.
func (e *Engine) RunCycle(ctx context.Context) error {
	e.ensureCaches()

	if err := e.drainOperatorReplies(ctx); err != nil {
		return fmt.Errorf("drain replies: %w", err)
	}

	messages, err := e.Inbox.Unanswered(ctx)
	if err != nil {
		return fmt.Errorf("list inbox: %w", err)
	}

	maxPerCycle := e.MaxPerCycle
	if maxPerCycle <= 0 {
		maxPerCycle = defaultMaxPerCycle
	}
	handled := 0
	for _, msg := range messages {
		if handled >= maxPerCycle {
			e.logger().Info("cycle_cap_reached", "cap", maxPerCycle)
			break
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		acted, err := e.processMessage(ctx, msg)
		if err != nil {
			e.logger().Warn("message_failed", "username", msg.Username, "error", err.Error())
			continue
		}
		if acted {
			handled++
		}
	}
	return nil
}

// drainOperatorReplies delivers every queued human reply to its platform
// thread, translated back to the client's language when one is recorded.
func (e *Engine) drainOperatorReplies(ctx context.Context) error {
	for {
		item, ok, err := e.Queue.DequeueNext(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		body := item.Text
		if lang, ok, err := e.Languages.Get(ctx, item.Username); err == nil && ok && e.Translate != nil {
			body = e.Translate.ForClient(ctx, item.Text, lang)
		}

		recipient := item.Username
		if conv, ok, err := e.Convos.Get(ctx, item.Username); err == nil && ok && conv.ThreadID != "" {
			recipient = conv.ThreadID
		}
		if err := e.waitLimiter(ctx); err != nil {
			return err
		}
		if err := e.Sender.Send(ctx, recipient, body); err != nil {
			e.logger().Warn("operator_reply_send_failed", "username", item.Username, "error", err.Error())
			continue
		}
		if err := e.Convos.SetLastResponder(ctx, item.Username, convo.ResponderHuman); err != nil {
			e.logger().Warn("responder_record_failed", "username", item.Username, "error", err.Error())
		}
		if err := e.Audit.RecordDecision(item.Username, convo.ResponderHuman, "", item.Text); err != nil {
			e.logger().Warn("audit_failed", "username", item.Username, "error", err.Error())
		}
		if err := e.Pending.Clear(ctx, item.Username); err != nil {
			e.logger().Warn("pending_clear_failed", "username", item.Username, "error", err.Error())
		}
		e.logger().Info("operator_reply_delivered", "username", item.Username)
	}
}

func (e *Engine) processMessage(ctx context.Context, msg platform.Message) (bool, error) {
	logger := e.logger().With("username", msg.Username)

	minHours, maxHours := e.reengageWindow()
	age := agestr.Hours(msg.AgeLabel)
	if age > maxHours {
		return false, nil
	}

	hash := dedup.Fingerprint(msg.Username, msg.Text)
	processed, err := e.Processed.IsProcessed(ctx, hash)
	if err != nil {
		return false, err
	}
	if processed {
		return false, nil
	}
	if e.lastText[msg.Username] == msg.Text {
		return false, nil
	}
	if last, ok := e.lastReply[msg.Username]; ok {
		cooldown := e.Cooldown
		if cooldown <= 0 {
			cooldown = defaultCooldown
		}
		if e.clock().Sub(last) < cooldown {
			logger.Debug("cooldown_skip")
			return false, nil
		}
	}

	if age >= minHours {
		already, err := e.Scheduler.Store.Has(ctx, msg.Username)
		if err != nil {
			return false, err
		}
		if already {
			return false, nil
		}
		// Limiter tokens are only spent once the candidate is known to
		// produce a send.
		if err := e.waitLimiter(ctx); err != nil {
			return false, err
		}
		lang, _, _ := e.Languages.Get(ctx, msg.Username)
		sent, err := e.Scheduler.MaybeReengage(ctx, reengage.Candidate{
			Username: msg.Username,
			ThreadID: msg.ThreadID,
			AgeLabel: msg.AgeLabel,
			Language: lang,
		})
		if err != nil {
			return false, err
		}
		if !sent {
			return false, nil
		}
		e.markHandled(ctx, msg, hash)
		e.Scheduler.Pause(ctx)
		return true, nil
	}

	if err := e.waitLimiter(ctx); err != nil {
		return false, err
	}
	out, err := e.Coordinator.Handle(ctx, msg)
	if err != nil {
		return false, err
	}
	if !out.Sent {
		return false, nil
	}
	e.markHandled(ctx, msg, hash)
	return true, nil
}

func (e *Engine) markHandled(ctx context.Context, msg platform.Message, hash string) {
	if err := e.Processed.RecordProcessed(ctx, hash); err != nil {
		e.logger().Warn("dedup_record_failed", "username", msg.Username, "error", err.Error())
	}
	e.lastText[msg.Username] = msg.Text
	e.lastReply[msg.Username] = e.clock()
}

func (e *Engine) reengageWindow() (float64, float64) {
	minHours, maxHours := e.ReengageMin, e.ReengageMax
	if minHours <= 0 {
		minHours = 1
	}
	if maxHours <= 0 {
		maxHours = 48
	}
	return minHours, maxHours
}

func (e *Engine) waitLimiter(ctx context.Context) error {
	if e.Limiter == nil {
		return nil
	}
	return e.Limiter.Wait(ctx)
}

func (e *Engine) ensureCaches() {
	if e.lastText == nil {
		e.lastText = map[string]string{}
	}
	if e.lastReply == nil {
		e.lastReply = map[string]time.Time{}
	}
}

func (e *Engine) clock() time.Time {
	if e.now != nil {
		return e.now()
	}
	return time.Now()
}

func (e *Engine) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
