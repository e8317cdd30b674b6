package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

var ErrMissingEnv = errors.New("missing required configuration")

// MissingEnvError lists every required key that was absent or blank.
type MissingEnvError struct {
	Keys []string
}

func (e *MissingEnvError) Error() string {
	return fmt.Sprintf("%s not set (environment or .env)", strings.Join(e.Keys, ", "))
}

func (e *MissingEnvError) Unwrap() error { return ErrMissingEnv }

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// LoadDotEnv loads KEY=VALUE pairs from path into the process environment.
// Variables that are already set win. A missing file is not an error.
func LoadDotEnv(path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	err := godotenv.Load(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// LoadEnv reads the environment through lookup (os.LookupEnv when nil) and
// checks that every key in required is present and non-blank. Values are
// not validated further.
func LoadEnv(lookup LookupFunc, required ...string) (Env, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	get := func(k string) string {
		v, _ := lookup(k)
		return strings.TrimSpace(v)
	}
	env := Env{
		BotToken:  get(EnvBotToken),
		SheetName: get(EnvSheetName),
		Timezone:  get(EnvTimezone),
	}

	var missing []string
	for _, k := range required {
		if get(k) == "" {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return Env{}, &MissingEnvError{Keys: missing}
	}
	return env, nil
}
