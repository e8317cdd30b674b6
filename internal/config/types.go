package config

import (
	"strings"
	"time"

	logx "sheetcast/pkg/logx"
)

// Environment keys. Secrets and identifiers live in the environment (or .env);
// the optional YAML file only carries non-secret knobs.
const (
	EnvBotToken  = "BOT_TOKEN"
	EnvSheetName = "SHEET_NAME"
	EnvTimezone  = "TIMEZONE"
)

// CredentialsFile is the service-account document used for spreadsheet access.
const CredentialsFile = "credentials.json"

const (
	DefaultBroadcastName = "announcement"
	DefaultSendAt        = "2026-01-01 15:16"
	DefaultMessage       = "📢 Announcement\n\nTomorrow’s session starts at 10:30 AM.\nPlease be on time.\n"
	DefaultDelay         = 500 * time.Millisecond
	DefaultPollTimeout   = 10 * time.Second
)

type Env struct {
	BotToken  string
	SheetName string
	Timezone  string
}

// File is the optional YAML/JSON config file.
//
// Example:
//
//	broadcast:
//	  send_at: "2026-01-01 15:16"
//	  delay: 500ms
type File struct {
	Telegram  TelegramConfig  `json:"telegram"`
	Broadcast BroadcastConfig `json:"broadcast"`
	Logging   LoggingConfig   `json:"logging"`
}

type TelegramConfig struct {
	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout,omitempty"`
}

type BroadcastConfig struct {
	Name string `json:"name,omitempty"`
	// SendAt is wall time "YYYY-MM-DD HH:MM" in the TIMEZONE zone.
	SendAt  string `json:"send_at,omitempty"`
	Message string `json:"message,omitempty"`
	// Delay between consecutive sends (Go duration string).
	Delay string `json:"delay,omitempty"`
	// Worksheet title; empty means the first worksheet.
	Worksheet string `json:"worksheet,omitempty"`
}

type LoggingConfig struct {
	Level    string          `json:"level"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	ChatID     int64  `json:"chat_id"`
	ThreadID   int    `json:"thread_id"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// Default returns the file config used when no file is present. Values
// missing from a file keep these defaults.
func Default() File {
	return File{
		Broadcast: BroadcastConfig{
			Name:    DefaultBroadcastName,
			SendAt:  DefaultSendAt,
			Message: DefaultMessage,
			Delay:   DefaultDelay.String(),
		},
		Logging: LoggingConfig{
			Level:   "info",
			Console: true,
			File:    LoggingFile{Path: "./sheetcast.log"},
			Telegram: LoggingTelegram{
				MinLevel:   "warn",
				RatePerSec: 1,
			},
		},
	}
}

func (f File) PollTimeout() (time.Duration, error) {
	return ParseDurationOrDefault("telegram.poll_timeout", f.Telegram.PollTimeout, DefaultPollTimeout)
}

func (f File) BroadcastDelay() (time.Duration, error) {
	return ParseDurationOrDefault("broadcast.delay", f.Broadcast.Delay, DefaultDelay)
}

func (f File) BroadcastName() string {
	if n := strings.TrimSpace(f.Broadcast.Name); n != "" {
		return n
	}
	return DefaultBroadcastName
}

// Log maps the logging section to logx.Config.
func (f File) Log() logx.Config {
	return logx.Config{
		Level:   f.Logging.Level,
		Console: f.Logging.Console,
		File: logx.FileConfig{
			Enabled: f.Logging.File.Enabled,
			Path:    f.Logging.File.Path,
		},
		Telegram: logx.TelegramConfig{
			Enabled:    f.Logging.Telegram.Enabled,
			ChatID:     f.Logging.Telegram.ChatID,
			ThreadID:   f.Logging.Telegram.ThreadID,
			MinLevel:   f.Logging.Telegram.MinLevel,
			RatePerSec: f.Logging.Telegram.RatePerSec,
		},
	}
}
