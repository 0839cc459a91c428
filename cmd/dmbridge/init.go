package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/aurora-ops/dmbridge/internal/statepaths"
)

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init [dir]",
		Short: "Initialize the state directory and a commented config.yaml",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "~/.dmbridge/"
			if len(args) == 1 && strings.TrimSpace(args[0]) != "" {
				dir = args[0]
			}
			dir = statepaths.ExpandHomePath(dir)
			if strings.TrimSpace(dir) == "" {
				return fmt.Errorf("invalid dir")
			}
			dir = filepath.Clean(dir)

			if err := os.MkdirAll(filepath.Join(dir, statepaths.LocksDirname), 0o700); err != nil {
				return err
			}

			cfgPath := filepath.Join(dir, "config.yaml")
			if _, err := os.Stat(cfgPath); err == nil {
				return fmt.Errorf("config already exists: %s", cfgPath)
			}

			body, err := renderExampleConfig(dir)
			if err != nil {
				return err
			}
			if err := os.WriteFile(cfgPath, body, 0o644); err != nil {
				return err
			}

			fmt.Printf("initialized %s\n", dir)
			return nil
		},
	}
	return cmd
}

func renderExampleConfig(dir string) ([]byte, error) {
	root := &yaml.Node{Kind: yaml.MappingNode}

	addSection(root, "state_dir", scalar(filepath.ToSlash(dir)),
		"Shared state directory. Both bot processes and the HTTP API read it.")

	addSection(root, "platform", mapping(
		"base_url", scalar("http://127.0.0.1:8632"),
		"token", scalar(""),
	), "Browser-automation sidecar that owns the Instagram session.")

	addSection(root, "telegram", mapping(
		"token", scalar(""),
		"ops_chat_id", scalar("0"),
	), "Operations chat. Forwards land here; operator replies are queued back.")

	addSection(root, "monitor", mapping(
		"cycle_interval", scalar("90s"),
		"wait_for_human", scalar("15s"),
		"sends_per_minute", scalar("6"),
	), "Platform-side loop pacing.")

	addSection(root, "reengage", mapping(
		"min_hours", scalar("1"),
		"max_hours", scalar("48"),
		"whatsapp_link", scalar(""),
	), "Follow-up window for unanswered conversations.")

	addSection(root, "llm", mapping(
		"system_prompt", scalar(""),
		"openrouter", mapping("api_key", scalar("")),
		"openai", mapping("api_key", scalar("")),
	), "Reply generation. OpenRouter is tried first, then OpenAI.")

	addSection(root, "logging", mapping(
		"level", scalar("info"),
		"format", scalar("text"),
	), "")

	doc := &yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{root}}
	return yaml.Marshal(doc)
}

func addSection(root *yaml.Node, key string, value *yaml.Node, comment string) {
	k := scalar(key)
	k.HeadComment = comment
	root.Content = append(root.Content, k, value)
}

func scalar(v string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Value: v}
}

func mapping(pairs ...any) *yaml.Node {
	m := &yaml.Node{Kind: yaml.MappingNode}
	for i := 0; i+1 < len(pairs); i += 2 {
		key := pairs[i].(string)
		switch v := pairs[i+1].(type) {
		case *yaml.Node:
			m.Content = append(m.Content, scalar(key), v)
		case string:
			m.Content = append(m.Content, scalar(key), scalar(v))
		}
	}
	return m
}
