package config_test

import (
	"slices"
	"testing"

	"github.com/MrWong99/speakcoach/internal/config"
)

func baseConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{ListenAddr: ":8080", LogLevel: config.LogInfo},
		Providers: config.ProvidersConfig{
			STT: config.ProviderEntry{Name: "whisper", BaseURL: "http://localhost:8081", Options: map[string]any{"language": "en"}},
			TTS: config.ProviderEntry{Name: "elevenlabs"},
		},
		History: config.HistoryConfig{Backend: config.HistoryFile, FilePath: "h.jsonl"},
	}
}

func TestDiff_NoChanges(t *testing.T) {
	t.Parallel()
	d := config.Diff(baseConfig(), baseConfig())
	if d.LogLevelChanged {
		t.Error("expected LogLevelChanged=false for identical configs")
	}
	if len(d.RestartRequired) != 0 {
		t.Errorf("RestartRequired = %v, want none", d.RestartRequired)
	}
}

func TestDiff_LogLevelChanged(t *testing.T) {
	t.Parallel()
	old, new := baseConfig(), baseConfig()
	new.Server.LogLevel = config.LogDebug

	d := config.Diff(old, new)
	if !d.LogLevelChanged {
		t.Error("expected LogLevelChanged=true")
	}
	if d.NewLogLevel != config.LogDebug {
		t.Errorf("expected NewLogLevel=debug, got %q", d.NewLogLevel)
	}
	if len(d.RestartRequired) != 0 {
		t.Errorf("log level alone should not require a restart, got %v", d.RestartRequired)
	}
}

func TestDiff_RestartRequired(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"listen addr", func(c *config.Config) { c.Server.ListenAddr = ":9090" }, "server.listen_addr"},
		{"tls added", func(c *config.Config) { c.Server.TLS = &config.TLSConfig{CertFile: "c", KeyFile: "k"} }, "server.tls"},
		{"stt option", func(c *config.Config) { c.Providers.STT.Options["language"] = "de" }, "providers.stt"},
		{"stt fallback added", func(c *config.Config) {
			c.Providers.STTFallbacks = append(c.Providers.STTFallbacks, config.ProviderEntry{Name: "openai"})
		}, "providers.stt_fallbacks"},
		{"tts model", func(c *config.Config) { c.Providers.TTS.Model = "eleven_multilingual_v2" }, "providers.tts"},
		{"history backend", func(c *config.Config) { c.History.Backend = config.HistoryNone }, "history"},
		{"breaker", func(c *config.Config) { c.Resilience.MaxFailures = 9 }, "resilience"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			old, new := baseConfig(), baseConfig()
			tc.mutate(new)
			d := config.Diff(old, new)
			if !slices.Equal(d.RestartRequired, []string{tc.want}) {
				t.Errorf("RestartRequired = %v, want [%s]", d.RestartRequired, tc.want)
			}
		})
	}
}
