// Package statepaths resolves the on-disk layout of the shared state
// directory. Every store receives its document path from here so the two
// bot processes and the HTTP API agree on file locations.
package statepaths

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	ConversationsFilename   = "conversations.json"
	ProcessedFilename       = "processed_messages.json"
	ReplyQueueFilename      = "reply_queue.json"
	PendingHumanFilename    = "pending_human.json"
	ClientLanguagesFilename = "client_languages.json"
	ReengagementFilename    = "reengagement_log.json"
	AuditFilename           = "audit.jsonl"
	LocksDirname            = "locks"
)

func StateDir() string {
	dir := strings.TrimSpace(viper.GetString("state_dir"))
	if dir == "" {
		dir = "~/.dmbridge"
	}
	return filepath.Clean(ExpandHomePath(dir))
}

func LocksDir() string {
	return filepath.Join(StateDir(), LocksDirname)
}

func ConversationsPath() string {
	return filepath.Join(StateDir(), ConversationsFilename)
}

func ProcessedPath() string {
	return filepath.Join(StateDir(), ProcessedFilename)
}

func ReplyQueuePath() string {
	return filepath.Join(StateDir(), ReplyQueueFilename)
}

func PendingHumanPath() string {
	return filepath.Join(StateDir(), PendingHumanFilename)
}

func ClientLanguagesPath() string {
	return filepath.Join(StateDir(), ClientLanguagesFilename)
}

func ReengagementPath() string {
	return filepath.Join(StateDir(), ReengagementFilename)
}

func AuditPath() string {
	return filepath.Join(StateDir(), AuditFilename)
}

func ExpandHomePath(path string) string {
	path = strings.TrimSpace(path)
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil && home != "" {
			if path == "~" {
				return home
			}
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
