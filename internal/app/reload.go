package app

import (
	"log/slog"

	"github.com/MrWong99/speakcoach/internal/config"
)

// SlogLevel converts a config log level to its slog equivalent. Unknown
// levels map to Info.
func SlogLevel(l config.LogLevel) slog.Level {
	switch l {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ReloadFunc returns a [config.Watcher] callback that applies log level
// changes to level and warns about changes that need a restart.
func ReloadFunc(level *slog.LevelVar) func(old, new *config.Config) {
	return func(old, new *config.Config) {
		d := config.Diff(old, new)
		if d.LogLevelChanged {
			level.Set(SlogLevel(d.NewLogLevel))
			slog.Info("log level changed", "level", d.NewLogLevel)
		}
		if len(d.RestartRequired) > 0 {
			slog.Warn("config changes take effect after a restart", "keys", d.RestartRequired)
		}
	}
}
