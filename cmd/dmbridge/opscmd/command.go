// Package opscmd runs the Telegram side of the bridge: forwarding inbound
// DMs to the operations chat and turning operator replies and commands
// into queued actions for the platform loop.
package opscmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/aurora-ops/dmbridge/bridge"
	"github.com/aurora-ops/dmbridge/convo"
	"github.com/aurora-ops/dmbridge/internal/fsstore"
	"github.com/aurora-ops/dmbridge/internal/logutil"
	"github.com/aurora-ops/dmbridge/internal/statepaths"
)

func New() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ops",
		Short: "Run the Telegram operations bot (human replies and lead commands)",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := logutil.LoggerFromViper()
			if err != nil {
				return err
			}
			slog.SetDefault(logger)

			token := viper.GetString("telegram.token")
			chatID := viper.GetInt64("telegram.ops_chat_id")
			if token == "" {
				return errors.New("telegram.token is required")
			}
			if chatID == 0 {
				return errors.New("telegram.ops_chat_id is required")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := fsstore.EnsureDir(statepaths.StateDir(), 0); err != nil {
				return err
			}
			locks := statepaths.LocksDir()
			queueLock, err := fsstore.BuildLockPath(locks, "reply_queue")
			if err != nil {
				return err
			}
			pendingLock, err := fsstore.BuildLockPath(locks, "pending_human")
			if err != nil {
				return err
			}
			convoLock, err := fsstore.BuildLockPath(locks, "conversations")
			if err != nil {
				return err
			}

			loop := &opsLoop{
				api:         newTelegramAPI(nil, viper.GetString("telegram.base_url"), token),
				chatID:      chatID,
				pollTimeout: viper.GetDuration("telegram.poll_timeout"),
				queue:       bridge.NewQueue(statepaths.ReplyQueuePath(), queueLock),
				pending:     bridge.NewPendingStore(statepaths.PendingHumanPath(), pendingLock),
				convos:      convo.NewStore(statepaths.ConversationsPath(), convoLock),
				logger:      logger,
			}

			me, err := loop.api.getMe(ctx)
			if err != nil {
				return fmt.Errorf("telegram getMe: %w", err)
			}
			logger.Info("ops_bot_started", "bot", me.Username, "chat_id", chatID)

			err = loop.run(ctx)
			if ctx.Err() != nil {
				logger.Info("ops_bot_stopped")
				return nil
			}
			return err
		},
	}
	return cmd
}

type opsLoop struct {
	api         *telegramAPI
	chatID      int64
	pollTimeout time.Duration
	queue       *bridge.Queue
	pending     *bridge.PendingStore
	convos      *convo.Store
	logger      *slog.Logger
}

func (l *opsLoop) run(ctx context.Context) error {
	var offset int64
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		updates, next, err := l.api.getUpdates(ctx, offset, l.pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if !isTelegramPollTimeoutError(err) {
				l.logger.Warn("ops_poll_failed", "error", err.Error())
				if sleepErr := sleepCtx(ctx, 5*time.Second); sleepErr != nil {
					return sleepErr
				}
			}
			continue
		}
		offset = next
		for _, u := range updates {
			l.handleUpdate(ctx, u)
		}
	}
}

func (l *opsLoop) handleUpdate(ctx context.Context, u telegramUpdate) {
	msg := u.Message
	if msg == nil || msg.Chat == nil || msg.Chat.ID != l.chatID {
		return
	}
	if msg.From != nil && msg.From.IsBot {
		return
	}
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return
	}

	if strings.HasPrefix(text, "/") {
		l.handleCommand(ctx, msg, text)
		return
	}
	l.handleReply(ctx, msg, text)
}

// handleReply queues an operator message for delivery. The target client
// comes from the quoted forward the operator replied to.
func (l *opsLoop) handleReply(ctx context.Context, msg *telegramMessage, text string) {
	username := replyTarget(msg)
	if username == "" {
		l.reply(ctx, msg, "Responde citando el mensaje del cliente para que sepa a quién va.")
		return
	}

	if err := l.queue.Enqueue(ctx, username, text); err != nil {
		l.logger.Error("ops_enqueue_failed", "username", username, "error", err.Error())
		l.reply(ctx, msg, fmt.Sprintf("⚠️ No pude encolar la respuesta para %s.", username))
		return
	}
	if msg.From != nil && msg.From.ID != 0 {
		if err := l.convos.SetTelegramUserID(ctx, username, msg.From.ID); err != nil {
			l.logger.Warn("ops_link_operator_failed", "username", username, "error", err.Error())
		}
	}
	l.logger.Info("ops_reply_queued", "username", username)
	l.reply(ctx, msg, fmt.Sprintf("✅ Respuesta en cola para %s.", username))
}

func (l *opsLoop) handleCommand(ctx context.Context, msg *telegramMessage, text string) {
	cmd, rest, _ := strings.Cut(text, " ")
	rest = strings.TrimSpace(rest)

	// Commands accept "/cmd usuario ..." or, when quoting a forward,
	// just "/cmd ...".
	username, rest := commandTarget(msg, cmd, rest)
	if username == "" {
		l.reply(ctx, msg, "Indica el usuario: por ejemplo /nota maria_23 pidió el link.")
		return
	}

	var err error
	switch strings.ToLower(cmd) {
	case "/nota":
		if rest == "" {
			l.reply(ctx, msg, "Falta el texto de la nota.")
			return
		}
		err = l.convos.SetNote(ctx, username, rest)
	case "/lead":
		err = l.convos.MarkLead(ctx, username)
	case "/link":
		if rest == "" {
			l.reply(ctx, msg, "Falta el enlace.")
			return
		}
		err = l.convos.SetSalesLink(ctx, username, rest)
	case "/estado":
		l.replyStatus(ctx, msg, username)
		return
	default:
		l.reply(ctx, msg, "Comandos: /nota, /lead, /link, /estado.")
		return
	}

	if err != nil {
		l.logger.Error("ops_command_failed", "command", cmd, "username", username, "error", err.Error())
		l.reply(ctx, msg, fmt.Sprintf("⚠️ Falló %s para %s.", cmd, username))
		return
	}
	l.reply(ctx, msg, fmt.Sprintf("✅ %s aplicado a %s.", cmd, username))
}

func (l *opsLoop) replyStatus(ctx context.Context, msg *telegramMessage, username string) {
	c, ok, err := l.convos.Get(ctx, username)
	if err != nil {
		l.logger.Error("ops_status_failed", "username", username, "error", err.Error())
		l.reply(ctx, msg, fmt.Sprintf("⚠️ No pude leer el estado de %s.", username))
		return
	}
	if !ok {
		l.reply(ctx, msg, fmt.Sprintf("Sin conversación registrada para %s.", username))
		return
	}

	score, label := convo.Score(c, nil)
	var b strings.Builder
	fmt.Fprintf(&b, "📋 %s\nMensajes: %d\nÚltima respuesta: %s\nScore: %d (%s)", c.Username, c.MessageCount, c.LastResponder, score, label)
	if c.IsLead {
		b.WriteString("\n🔥 Lead")
	}
	if c.Note != "" {
		fmt.Fprintf(&b, "\nNota: %s", c.Note)
	}
	if c.SalesLink != "" {
		fmt.Fprintf(&b, "\nLink: %s", c.SalesLink)
	}
	if flag, pending, err := l.pending.Get(ctx, username); err == nil && pending {
		fmt.Fprintf(&b, "\n⏳ Esperando humano desde %s", flag.Since.Format(time.RFC3339))
	}
	l.reply(ctx, msg, b.String())
}

func (l *opsLoop) reply(ctx context.Context, msg *telegramMessage, text string) {
	if err := l.api.sendMessage(ctx, l.chatID, text, msg.MessageID); err != nil {
		l.logger.Warn("ops_send_failed", "error", err.Error())
	}
}

// replyTarget resolves the client username from the quoted forward.
func replyTarget(msg *telegramMessage) string {
	if msg.ReplyTo == nil {
		return ""
	}
	return usernameFromForward(msg.ReplyTo.Text)
}

// commandTarget picks the username for an operator command: the quoted
// forward wins, otherwise the first argument is the username.
func commandTarget(msg *telegramMessage, cmd, rest string) (string, string) {
	if target := replyTarget(msg); target != "" {
		return target, rest
	}
	username, remainder, _ := strings.Cut(rest, " ")
	return strings.TrimPrefix(strings.TrimSpace(username), "@"), strings.TrimSpace(remainder)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
