// Package handoff runs the race at the heart of the funnel: every inbound
// DM is offered to a human operator for a bounded window, and an AI reply
// fills in when no human answers in time.
package handoff

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aurora-ops/dmbridge/bridge"
	"github.com/aurora-ops/dmbridge/convo"
	"github.com/aurora-ops/dmbridge/llm"
	"github.com/aurora-ops/dmbridge/platform"
	"github.com/aurora-ops/dmbridge/translate"
)

const (
	defaultWaitWindow   = 15 * time.Second
	defaultPollInterval = 2 * time.Second
	defaultMaxTokens    = 300
)

// OpsForwarder surfaces an inbound DM to the operations channel.
// spanishText carries the translation when the client writes another
// language; it equals text otherwise.
type OpsForwarder interface {
	ForwardInbound(ctx context.Context, username, text, spanishText string, msgCount int) error
}

// Generator produces the AI reply. Satisfied by *llm.Chain.
type Generator interface {
	Generate(ctx context.Context, messages []llm.Message, maxTokens int) (string, string, error)
}

type Outcome struct {
	Responder convo.Responder
	Provider  string
	Reply     string
	Sent      bool
}

type Coordinator struct {
	Queue     *bridge.Queue
	Pending   *bridge.PendingStore
	Languages *bridge.LanguageStore
	Watcher   *bridge.Watcher
	Convos    *convo.Store
	Audit     *convo.Audit
	Ops       OpsForwarder
	Generator Generator
	Translate *translate.Service
	Sender    platform.Sender

	WaitWindow   time.Duration
	PollInterval time.Duration
	SystemPrompt string
	FallbackText string
	MaxTokens    int
	Logger       *slog.Logger
}

// Handle walks one inbound message through the full decision:
// record → forward → wait for human → AI fallback → translate → send.
// Delivery and generation failures are absorbed; the error return is
// reserved for state-store failures the caller must see.
func (c *Coordinator) Handle(ctx context.Context, msg platform.Message) (Outcome, error) {
	logger := c.logger().With("username", msg.Username)

	conv, err := c.Convos.RecordInbound(ctx, msg.Username, msg.ThreadID)
	if err != nil {
		return Outcome{}, fmt.Errorf("record inbound: %w", err)
	}

	lang := translate.Detect(msg.Text)
	if err := c.Languages.Set(ctx, msg.Username, lang); err != nil {
		logger.Warn("language_record_failed", "error", err.Error())
	}

	spanish := msg.Text
	if lang != "" && lang != "es" && c.Translate != nil {
		spanish = c.Translate.ToSpanish(ctx, msg.Text)
	}

	forwarded := false
	if c.Ops != nil {
		if err := c.Ops.ForwardInbound(ctx, msg.Username, msg.Text, spanish, conv.MessageCount); err != nil {
			logger.Warn("ops_forward_failed", "error", err.Error())
		} else {
			forwarded = true
		}
	}

	var (
		reply     string
		provider  string
		responder convo.Responder
	)

	if forwarded {
		if err := c.Pending.Set(ctx, msg.Username, msg.Text); err != nil {
			logger.Warn("pending_set_failed", "error", err.Error())
		}
		if item, ok := c.awaitHumanReply(ctx, msg.Username); ok {
			reply = item.Text
			responder = convo.ResponderHuman
		}
		if err := c.Pending.Clear(ctx, msg.Username); err != nil {
			logger.Warn("pending_clear_failed", "error", err.Error())
		}
	}

	if responder != convo.ResponderHuman {
		responder = convo.ResponderAI
		reply, provider = c.generateReply(ctx, conv, msg.Text)
	}

	if err := c.Convos.SetLastResponder(ctx, msg.Username, responder); err != nil {
		logger.Warn("responder_record_failed", "error", err.Error())
	}
	if err := c.Audit.RecordDecision(msg.Username, responder, provider, reply); err != nil {
		logger.Warn("audit_failed", "error", err.Error())
	}

	outbound := reply
	if recordedLang, ok, err := c.Languages.Get(ctx, msg.Username); err == nil && ok && c.Translate != nil {
		outbound = c.Translate.ForClient(ctx, reply, recordedLang)
	}

	recipient := msg.ThreadID
	if strings.TrimSpace(recipient) == "" {
		recipient = msg.Username
	}
	out := Outcome{Responder: responder, Provider: provider, Reply: outbound}
	if err := c.Sender.Send(ctx, recipient, outbound); err != nil {
		logger.Warn("send_failed", "error", err.Error())
		return out, nil
	}
	out.Sent = true
	logger.Info("reply_sent", "responder", string(responder), "provider", provider)
	return out, nil
}

// awaitHumanReply polls the queue for username until the wait window
// elapses. The queue watcher shortcuts the poll interval when the file
// changes; the ticker stays as the fallback so a missed event only costs
// one interval.
func (c *Coordinator) awaitHumanReply(ctx context.Context, username string) (bridge.Item, bool) {
	window := c.WaitWindow
	if window <= 0 {
		window = defaultWaitWindow
	}
	interval := c.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}

	deadline := time.NewTimer(window)
	defer deadline.Stop()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var wake <-chan struct{}
	if c.Watcher != nil {
		wake = c.Watcher.Changes()
	}

	for {
		item, ok, err := c.Queue.DequeueFor(ctx, username)
		if err != nil {
			c.logger().Warn("queue_check_failed", "username", username, "error", err.Error())
		} else if ok {
			return item, true
		}
		select {
		case <-ctx.Done():
			return bridge.Item{}, false
		case <-deadline.C:
			return bridge.Item{}, false
		case <-ticker.C:
		case <-wake:
		}
	}
}

func (c *Coordinator) generateReply(ctx context.Context, conv convo.Conversation, text string) (string, string) {
	fallback := c.FallbackText
	if fallback == "" {
		fallback = "¡Hola! Gracias por escribirme, en un momento te respondo bien 😊"
	}
	if c.Generator == nil {
		return fallback, llm.FallbackProvider
	}

	maxTokens := c.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	messages := []llm.Message{
		{Role: "system", Content: c.buildSystemPrompt(conv)},
		{Role: "user", Content: text},
	}
	reply, provider, err := c.Generator.Generate(ctx, messages, maxTokens)
	if err != nil || strings.TrimSpace(reply) == "" {
		if err != nil {
			c.logger().Warn("generate_failed", "username", conv.Username, "error", err.Error())
		}
		return fallback, llm.FallbackProvider
	}
	return reply, provider
}

func (c *Coordinator) buildSystemPrompt(conv convo.Conversation) string {
	var b strings.Builder
	b.WriteString(c.SystemPrompt)
	fmt.Fprintf(&b, "\n\n[MENSAJE ACTUAL: %d]", conv.MessageCount)
	if conv.RealName != "" || conv.Phone != "" || conv.Note != "" {
		b.WriteString("\n\n[PERFIL DEL CLIENTE]:")
		if conv.RealName != "" {
			fmt.Fprintf(&b, "\n- NOMBRE REAL: %s", conv.RealName)
		}
		if conv.Phone != "" {
			fmt.Fprintf(&b, "\n- WHATSAPP: %s", conv.Phone)
		}
		if conv.Note != "" {
			fmt.Fprintf(&b, "\n- NOTAS: %s", conv.Note)
		}
	}
	return b.String()
}

func (c *Coordinator) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}
