package main

import (
	"time"

	"github.com/spf13/viper"
)

func initViperDefaults() {
	// State
	viper.SetDefault("state_dir", "~/.dmbridge")

	// Platform sidecar (browser automation lives outside this process).
	viper.SetDefault("platform.base_url", "http://127.0.0.1:8632")
	viper.SetDefault("platform.token", "")

	// Monitor loop
	viper.SetDefault("monitor.cycle_interval", 90*time.Second)
	viper.SetDefault("monitor.restart_pause", 60*time.Second)
	viper.SetDefault("monitor.max_per_cycle", 40)
	viper.SetDefault("monitor.user_cooldown", 5*time.Minute)
	viper.SetDefault("monitor.sends_per_minute", 6)
	viper.SetDefault("monitor.wait_for_human", 15*time.Second)
	viper.SetDefault("monitor.human_poll_interval", 2*time.Second)

	// Re-engagement
	viper.SetDefault("reengage.min_hours", 1)
	viper.SetDefault("reengage.max_hours", 48)
	viper.SetDefault("reengage.delay_min", 40*time.Second)
	viper.SetDefault("reengage.delay_max", 60*time.Second)
	viper.SetDefault("reengage.message_es", "")
	viper.SetDefault("reengage.message_en", "")
	viper.SetDefault("reengage.whatsapp_link", "")

	// AI providers
	viper.SetDefault("llm.openrouter.endpoint", "https://openrouter.ai/api")
	viper.SetDefault("llm.openrouter.api_key", "")
	viper.SetDefault("llm.openrouter.model", "google/gemini-2.0-flash-exp:free")
	viper.SetDefault("llm.openrouter.extra_models", []string{
		"openrouter/free",
		"mistralai/mistral-small-24b-instruct-2501:free",
	})
	viper.SetDefault("llm.ollama.enabled", false)
	viper.SetDefault("llm.ollama.endpoint", "http://localhost:11434")
	viper.SetDefault("llm.ollama.model", "llama3.1:8b")
	viper.SetDefault("llm.openai.endpoint", "https://api.openai.com")
	viper.SetDefault("llm.openai.api_key", "")
	viper.SetDefault("llm.openai.model", "gpt-4o-mini")
	viper.SetDefault("llm.max_tokens", 300)
	viper.SetDefault("llm.system_prompt", "")
	viper.SetDefault("llm.fallback_text", "")

	// Telegram operations group
	viper.SetDefault("telegram.base_url", "https://api.telegram.org")
	viper.SetDefault("telegram.token", "")
	viper.SetDefault("telegram.ops_chat_id", int64(0))
	viper.SetDefault("telegram.poll_timeout", 30*time.Second)

	// HTTP data API
	viper.SetDefault("server.bind", "127.0.0.1")
	viper.SetDefault("server.port", 8633)
}
