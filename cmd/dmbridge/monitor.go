package main

import (
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/time/rate"

	"github.com/aurora-ops/dmbridge/bridge"
	"github.com/aurora-ops/dmbridge/cmd/dmbridge/opscmd"
	"github.com/aurora-ops/dmbridge/convo"
	"github.com/aurora-ops/dmbridge/dedup"
	"github.com/aurora-ops/dmbridge/handoff"
	"github.com/aurora-ops/dmbridge/internal/fsstore"
	"github.com/aurora-ops/dmbridge/internal/logutil"
	"github.com/aurora-ops/dmbridge/internal/statepaths"
	"github.com/aurora-ops/dmbridge/llm"
	"github.com/aurora-ops/dmbridge/monitor"
	"github.com/aurora-ops/dmbridge/platform/igbridge"
	"github.com/aurora-ops/dmbridge/providers/ollama"
	"github.com/aurora-ops/dmbridge/providers/openai"
	"github.com/aurora-ops/dmbridge/providers/openrouter"
	"github.com/aurora-ops/dmbridge/reengage"
	"github.com/aurora-ops/dmbridge/translate"
)

func newMonitorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Run the platform-side DM loop (handoff + re-engagement)",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := logutil.LoggerFromViper()
			if err != nil {
				return err
			}
			slog.SetDefault(logger)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			stores, err := openStores(logger)
			if err != nil {
				return err
			}
			defer stores.Close()

			sidecar := igbridge.New(
				viper.GetString("platform.base_url"),
				viper.GetString("platform.token"),
			)

			translator := buildTranslateService(logger)
			chain := buildChain(logger)

			var ops handoff.OpsForwarder
			if forwarder := buildOpsForwarder(translator); forwarder != nil {
				ops = forwarder
			} else {
				logger.Warn("telegram_ops_disabled", "reason", "token or chat id missing")
			}

			watcher, err := bridge.NewWatcher(statepaths.ReplyQueuePath())
			if err != nil {
				logger.Warn("queue_watcher_unavailable", "error", err.Error())
			} else {
				defer watcher.Close()
			}

			coordinator := &handoff.Coordinator{
				Queue:        stores.queue,
				Pending:      stores.pending,
				Languages:    stores.languages,
				Watcher:      watcher,
				Convos:       stores.convos,
				Audit:        stores.audit,
				Ops:          ops,
				Generator:    chain,
				Translate:    translator,
				Sender:       sidecar,
				WaitWindow:   viper.GetDuration("monitor.wait_for_human"),
				PollInterval: viper.GetDuration("monitor.human_poll_interval"),
				SystemPrompt: viper.GetString("llm.system_prompt"),
				FallbackText: viper.GetString("llm.fallback_text"),
				MaxTokens:    viper.GetInt("llm.max_tokens"),
				Logger:       logger,
			}

			scheduler := &reengage.Scheduler{
				Store:  stores.reengaged,
				Sender: sidecar,
				Templates: reengage.Templates{
					Spanish:      viper.GetString("reengage.message_es"),
					English:      viper.GetString("reengage.message_en"),
					WhatsAppLink: viper.GetString("reengage.whatsapp_link"),
					Translate:    translator,
				},
				MinHours: viper.GetFloat64("reengage.min_hours"),
				MaxHours: viper.GetFloat64("reengage.max_hours"),
				MinDelay: viper.GetDuration("reengage.delay_min"),
				MaxDelay: viper.GetDuration("reengage.delay_max"),
				Logger:   logger,
			}

			sendsPerMinute := viper.GetInt("monitor.sends_per_minute")
			if sendsPerMinute <= 0 {
				sendsPerMinute = 6
			}
			engine := &monitor.Engine{
				Inbox:         sidecar,
				Sender:        sidecar,
				Queue:         stores.queue,
				Pending:       stores.pending,
				Languages:     stores.languages,
				Convos:        stores.convos,
				Audit:         stores.audit,
				Processed:     stores.processed,
				Coordinator:   coordinator,
				Scheduler:     scheduler,
				Translate:     translator,
				Limiter:       rate.NewLimiter(rate.Every(time.Minute/time.Duration(sendsPerMinute)), 1),
				MaxPerCycle:   viper.GetInt("monitor.max_per_cycle"),
				Cooldown:      viper.GetDuration("monitor.user_cooldown"),
				ReengageMin:   viper.GetFloat64("reengage.min_hours"),
				ReengageMax:   viper.GetFloat64("reengage.max_hours"),
				CycleInterval: viper.GetDuration("monitor.cycle_interval"),
				RestartPause:  viper.GetDuration("monitor.restart_pause"),
				Logger:        logger,
			}

			logger.Info("monitor_started", "state_dir", statepaths.StateDir())
			err = engine.Run(ctx)
			if ctx.Err() != nil {
				logger.Info("monitor_stopped")
				return nil
			}
			return err
		},
	}
	return cmd
}

type stateStores struct {
	queue     *bridge.Queue
	pending   *bridge.PendingStore
	languages *bridge.LanguageStore
	convos    *convo.Store
	processed *dedup.Store
	reengaged *reengage.Store
	audit     *convo.Audit
}

func (s *stateStores) Close() {
	_ = s.audit.Close()
}

func openStores(logger *slog.Logger) (*stateStores, error) {
	if err := fsstore.EnsureDir(statepaths.StateDir(), 0); err != nil {
		return nil, err
	}
	locks := statepaths.LocksDir()
	lockFor := func(key string) string {
		path, err := fsstore.BuildLockPath(locks, key)
		if err != nil {
			logger.Error("lock_path_failed", "key", key, "error", err.Error())
		}
		return path
	}

	audit, err := convo.NewAudit(statepaths.AuditPath())
	if err != nil {
		return nil, fmt.Errorf("open audit journal: %w", err)
	}
	return &stateStores{
		queue:     bridge.NewQueue(statepaths.ReplyQueuePath(), lockFor("reply_queue")),
		pending:   bridge.NewPendingStore(statepaths.PendingHumanPath(), lockFor("pending_human")),
		languages: bridge.NewLanguageStore(statepaths.ClientLanguagesPath(), lockFor("client_languages")),
		convos:    convo.NewStore(statepaths.ConversationsPath(), lockFor("conversations")),
		processed: dedup.NewStore(statepaths.ProcessedPath(), lockFor("processed_messages"), 0),
		reengaged: reengage.NewStore(statepaths.ReengagementPath(), lockFor("reengagement_log")),
		audit:     audit,
	}, nil
}

func buildTranslateService(logger *slog.Logger) *translate.Service {
	svc := &translate.Service{
		Machine: translate.NewGoogleClient(),
		Logger:  logger,
	}
	if key := viper.GetString("llm.openai.api_key"); key != "" {
		svc.Natural = &translate.LLMTranslator{
			Client: openai.New(viper.GetString("llm.openai.endpoint"), key),
			Model:  viper.GetString("llm.openai.model"),
		}
	}
	return svc
}

// buildChain assembles the provider order: OpenRouter, then a local model
// when enabled, then OpenAI. The chain itself retries the first step once
// after everything fails.
func buildChain(logger *slog.Logger) *llm.Chain {
	var steps []llm.Step
	if key := viper.GetString("llm.openrouter.api_key"); key != "" {
		client := openrouter.New(
			viper.GetString("llm.openrouter.endpoint"),
			key,
			viper.GetStringSlice("llm.openrouter.extra_models"),
		)
		client.Logger = logger
		steps = append(steps, llm.Step{
			Name:   "openrouter",
			Client: client,
			Model:  viper.GetString("llm.openrouter.model"),
		})
	}
	if viper.GetBool("llm.ollama.enabled") {
		steps = append(steps, llm.Step{
			Name:   "ollama",
			Client: ollama.New(viper.GetString("llm.ollama.endpoint")),
			Model:  viper.GetString("llm.ollama.model"),
		})
	}
	if key := viper.GetString("llm.openai.api_key"); key != "" {
		steps = append(steps, llm.Step{
			Name:   "openai",
			Client: openai.New(viper.GetString("llm.openai.endpoint"), key),
			Model:  viper.GetString("llm.openai.model"),
		})
	}
	return &llm.Chain{
		Steps:  steps,
		Logger: logger,
		Fallbacks: []string{
			"¡Hola! Gracias por escribirme 😊 ando un poco ocupada, pero ya te respondo bien, ¿cómo va todo?",
			"¡Qué lindo leerte! ✨ dame un momento y te contesto con calma 💕",
		},
	}
}

func buildOpsForwarder(translator *translate.Service) *opscmd.Forwarder {
	token := viper.GetString("telegram.token")
	chatID := viper.GetInt64("telegram.ops_chat_id")
	if token == "" || chatID == 0 {
		return nil
	}
	return opscmd.NewForwarder(viper.GetString("telegram.base_url"), token, chatID, translator)
}
