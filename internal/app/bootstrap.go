package app

import (
	"context"
	"errors"
	"strings"
	"time"

	"sheetcast/internal/config"
	logx "sheetcast/pkg/logx"
)

const stopTimeout = 5 * time.Second

// Options are the process-level inputs shared by both programs.
type Options struct {
	// ConfigPath is the optional YAML/JSON file. A missing file means defaults.
	ConfigPath string
	// EnvFile is loaded into the environment first; real variables win.
	EnvFile string
	// CredentialsFile is the spreadsheet service-account document.
	CredentialsFile string
	// Lookup reads environment variables (os.LookupEnv when nil).
	Lookup config.LookupFunc
}

type settings struct {
	env       config.Env
	file      config.File
	fileFound bool
}

// loadSettings validates the environment before the config file so missing
// secrets are reported first. Nothing here touches the network.
func loadSettings(opts Options, required ...string) (settings, error) {
	if opts.Lookup == nil {
		if err := config.LoadDotEnv(opts.EnvFile); err != nil {
			return settings{}, err
		}
	}
	env, err := config.LoadEnv(opts.Lookup, required...)
	if err != nil {
		return settings{}, err
	}

	file, found := config.Default(), false
	if strings.TrimSpace(opts.ConfigPath) != "" {
		file, found, err = config.LoadFile(opts.ConfigPath)
		if err != nil {
			return settings{}, err
		}
	}
	return settings{env: env, file: file, fileFound: found}, nil
}

func stopContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), stopTimeout)
}

// isShutdown reports whether err only signals that the process was asked to stop.
func isShutdown(err error) bool {
	return errors.Is(err, context.Canceled)
}

func closeLogs(logs *logx.Service, log logx.Logger) {
	if logs == nil {
		return
	}
	if err := logs.Close(); err != nil {
		log.Warn("log close failed", logx.Err(err))
	}
}
