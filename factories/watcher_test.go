package factories

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatchSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, os.WriteFile(path, []byte(`{}`), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan SettingsConfig, 4)
	done := make(chan error, 1)
	go func() {
		done <- WatchSettings(ctx, path, APIKeys{OpenAI: "sk"}, func(cfg SettingsConfig) {
			changes <- cfg
		}, nil)
	}()

	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(500 * time.Millisecond)
	defer tick.Stop()

	var got SettingsConfig
wait:
	for {
		select {
		case got = <-changes:
			break wait
		case <-tick.C:
			require.NoError(t, os.WriteFile(path, []byte(`{"chat":{"system_prompt":"reloaded"}}`), 0o644))
		case <-deadline:
			t.Fatal("settings change not observed")
		}
	}

	assert.Equal(t, "reloaded", got.Chat.SystemPrompt)
	assert.Equal(t, "sk", got.LLM.ServiceConfig.OpenAIConfig.APIKey)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestWatchSettings_MissingDir(t *testing.T) {
	err := WatchSettings(context.Background(), filepath.Join(t.TempDir(), "nope", "settings.json"), APIKeys{}, func(SettingsConfig) {}, nil)
	assert.Error(t, err)
}

func TestWatchSettings_KeepsRunningAfterWatcherError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.json")
	require.NoError(t, os.WriteFile(path, []byte(`{}`), 0o644))

	watcher, err := fsnotify.NewWatcher()
	require.NoError(t, err)
	defer watcher.Close()
	require.NoError(t, watcher.Add(dir))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan SettingsConfig, 4)
	done := make(chan error, 1)
	go func() {
		done <- watchLoop(ctx, watcher, filepath.Clean(path), APIKeys{}, func(cfg SettingsConfig) {
			changes <- cfg
		}, nil)
	}()

	select {
	case watcher.Errors <- errors.New("queue overflow"):
	case <-time.After(2 * time.Second):
		t.Fatal("watch loop did not receive the error")
	}

	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(500 * time.Millisecond)
	defer tick.Stop()

	var got SettingsConfig
wait:
	for {
		select {
		case got = <-changes:
			break wait
		case err := <-done:
			t.Fatalf("watch loop stopped: %v", err)
		case <-tick.C:
			require.NoError(t, os.WriteFile(path, []byte(`{"chat":{"system_prompt":"after error"}}`), 0o644))
		case <-deadline:
			t.Fatal("settings change not observed after watcher error")
		}
	}
	assert.Equal(t, "after error", got.Chat.SystemPrompt)
}
