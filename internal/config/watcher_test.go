package config_test

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/MrWong99/speakcoach/internal/config"
)

const pollInterval = 20 * time.Millisecond

// speakcoachYAML renders a minimal valid config with the given log level and
// primary STT provider.
func speakcoachYAML(level, sttName string) string {
	return `
server:
  log_level: ` + level + `
providers:
  stt:
    name: ` + sttName + `
  tts:
    name: elevenlabs
history:
  backend: none
`
}

// change is one onChange invocation.
type change struct{ old, new *config.Config }

// watchFile writes content to a fresh config file and starts a watcher on
// it. Every onChange call is delivered on the returned channel.
func watchFile(t *testing.T, content string) (string, *config.Watcher, <-chan change) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "speakcoach.yaml")
	writeConfig(t, path, content)

	changes := make(chan change, 8)
	w, err := config.NewWatcher(path, func(old, new *config.Config) {
		changes <- change{old, new}
	}, config.WithInterval(pollInterval))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	t.Cleanup(w.Stop)
	return path, w, changes
}

func writeConfig(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// expectQuiet fails if onChange fires within a few poll intervals.
func expectQuiet(t *testing.T, changes <-chan change) {
	t.Helper()
	select {
	case c := <-changes:
		t.Errorf("unexpected reload to log_level=%q", c.new.Server.LogLevel)
	case <-time.After(15 * pollInterval):
	}
}

func TestWatcher_LoadsAndAppliesDefaults(t *testing.T) {
	t.Parallel()
	_, w, _ := watchFile(t, speakcoachYAML("warn", "whisper"))

	cfg := w.Current()
	if cfg.Server.LogLevel != config.LogWarn {
		t.Errorf("LogLevel = %q, want warn", cfg.Server.LogLevel)
	}
	if cfg.Server.ListenAddr == "" || cfg.Server.MaxAudioBytes == 0 {
		t.Errorf("defaults not applied: listen=%q max_audio=%d", cfg.Server.ListenAddr, cfg.Server.MaxAudioBytes)
	}
}

func TestWatcher_ReloadFeedsDiff(t *testing.T) {
	t.Parallel()
	path, w, changes := watchFile(t, speakcoachYAML("info", "whisper"))

	time.Sleep(3 * pollInterval)
	writeConfig(t, path, speakcoachYAML("debug", "elevenlabs"))

	var c change
	select {
	case c = <-changes:
	case <-time.After(2 * time.Second):
		t.Fatal("no reload after the file changed")
	}

	if c.old.Providers.STT.Name != "whisper" || c.new.Providers.STT.Name != "elevenlabs" {
		t.Errorf("stt old=%q new=%q", c.old.Providers.STT.Name, c.new.Providers.STT.Name)
	}
	d := config.Diff(c.old, c.new)
	if !d.LogLevelChanged || d.NewLogLevel != config.LogDebug {
		t.Errorf("Diff log level = %v %q, want changed to debug", d.LogLevelChanged, d.NewLogLevel)
	}
	if !slices.Equal(d.RestartRequired, []string{"providers.stt"}) {
		t.Errorf("RestartRequired = %v, want [providers.stt]", d.RestartRequired)
	}
	if got := w.Current().Server.LogLevel; got != config.LogDebug {
		t.Errorf("Current().LogLevel = %q after reload, want debug", got)
	}
}

func TestWatcher_KeepsConfigOnBadReload(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
	}{
		{"unknown log level", speakcoachYAML("loud", "whisper")},
		{"unknown key", speakcoachYAML("info", "whisper") + "voices: []\n"},
		{"broken yaml", "server: [\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			path, w, changes := watchFile(t, speakcoachYAML("info", "whisper"))

			time.Sleep(3 * pollInterval)
			writeConfig(t, path, tc.content)
			expectQuiet(t, changes)

			if got := w.Current().Server.LogLevel; got != config.LogInfo {
				t.Errorf("Current().LogLevel = %q, want the previous info", got)
			}
		})
	}
}

func TestWatcher_IgnoresTouch(t *testing.T) {
	t.Parallel()
	path, _, changes := watchFile(t, speakcoachYAML("info", "whisper"))

	time.Sleep(3 * pollInterval)
	later := time.Now().Add(time.Minute)
	if err := os.Chtimes(path, later, later); err != nil {
		t.Fatalf("Chtimes: %v", err)
	}
	expectQuiet(t, changes)
}

func TestWatcher_MissingFile(t *testing.T) {
	t.Parallel()
	if _, err := config.NewWatcher(filepath.Join(t.TempDir(), "absent.yaml"), nil); err == nil {
		t.Fatal("NewWatcher on a missing file succeeded")
	}
}

func TestWatcher_StopTwice(t *testing.T) {
	t.Parallel()
	_, w, _ := watchFile(t, speakcoachYAML("info", "whisper"))
	w.Stop()
	w.Stop()
}
