package config

import (
	"maps"
	"slices"
)

// ConfigDiff describes what changed between two configs.
type ConfigDiff struct {
	// LogLevelChanged is the only change applied without a restart.
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// RestartRequired lists the top-level keys whose changes only take
	// effect after a restart, e.g. "providers.stt".
	RestartRequired []string
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	restart := func(key string, changed bool) {
		if changed {
			d.RestartRequired = append(d.RestartRequired, key)
		}
	}
	restart("server.listen_addr", old.Server.ListenAddr != new.Server.ListenAddr)
	restart("server.log_format", old.Server.LogFormat != new.Server.LogFormat)
	restart("server.max_audio_bytes", old.Server.MaxAudioBytes != new.Server.MaxAudioBytes)
	restart("server.tls", !tlsEqual(old.Server.TLS, new.Server.TLS))
	restart("providers.stt", !entryEqual(old.Providers.STT, new.Providers.STT))
	restart("providers.stt_fallbacks", !slices.EqualFunc(old.Providers.STTFallbacks, new.Providers.STTFallbacks, entryEqual))
	restart("providers.tts", !entryEqual(old.Providers.TTS, new.Providers.TTS))
	restart("history", old.History != new.History)
	restart("resilience", old.Resilience != new.Resilience)

	return d
}

func tlsEqual(a, b *TLSConfig) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// entryEqual compares provider entries. Option values are compared with ==,
// so nested maps or lists always count as changed.
func entryEqual(a, b ProviderEntry) bool {
	if a.Name != b.Name || a.APIKey != b.APIKey || a.BaseURL != b.BaseURL || a.Model != b.Model {
		return false
	}
	return maps.EqualFunc(a.Options, b.Options, func(x, y any) bool {
		return comparableEqual(x, y)
	})
}

func comparableEqual(x, y any) bool {
	switch x.(type) {
	case string, int, int64, float64, bool, nil:
		return x == y
	}
	return false
}
