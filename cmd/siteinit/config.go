package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/joeycumines/logiface"
)

const (
	envLogLevel   = `SITEINIT_LOG_LEVEL`
	envConfigFile = `SITEINIT_CONFIG`
)

// config is the optional TOML configuration file.
type config struct {
	// Packages overrides the package roots, when CONKEROR_PACKAGES is unset.
	Packages    []string      `toml:"packages"`
	LogLevel    string        `toml:"log_level"`
	EvalTimeout time.Duration `toml:"eval_timeout"`
	CacheSize   int           `toml:"program_cache"`
}

func loadConfig(path string) (config, error) {
	var cfg config
	if path == `` {
		return cfg, nil
	}
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return config{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) != 0 {
		return config{}, fmt.Errorf("config parse failed (%s): unknown keys %v", path, undecoded)
	}
	if cfg.EvalTimeout < 0 {
		return config{}, fmt.Errorf("config parse failed (%s): negative eval_timeout", path)
	}
	if cfg.CacheSize < 0 {
		return config{}, fmt.Errorf("config parse failed (%s): negative program_cache", path)
	}
	return cfg, nil
}

// loadEnvFile loads a .env file, without overriding the environment. A
// missing file is only an error if required.
func loadEnvFile(path string, required bool) error {
	if path == `` {
		return nil
	}
	err := godotenv.Load(path)
	if err != nil && !required && errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func parseLevel(raw string) (logiface.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case ``:
		return logiface.LevelInformational, false
	case `trace`:
		return logiface.LevelTrace, true
	case `debug`:
		return logiface.LevelDebug, true
	case `info`:
		return logiface.LevelInformational, true
	case `notice`:
		return logiface.LevelNotice, true
	case `warn`, `warning`:
		return logiface.LevelWarning, true
	case `error`, `err`:
		return logiface.LevelError, true
	case `off`, `disabled`:
		return logiface.LevelDisabled, true
	default:
		return logiface.LevelInformational, false
	}
}

// resolveLevel picks the log level: flag, then environment, then config.
func resolveLevel(flagValue string, cfg config) logiface.Level {
	for _, raw := range [...]string{flagValue, os.Getenv(envLogLevel), cfg.LogLevel} {
		if level, ok := parseLevel(raw); ok {
			return level
		}
	}
	return logiface.LevelInformational
}
