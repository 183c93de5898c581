package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"avatarkit/lipsync"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunLipsync(t *testing.T) {
	var out bytes.Buffer
	in := strings.NewReader(`[{"id":7,"offsetSeconds":0.2},{"id":1,"offsetSeconds":0}]`)

	err := runLipsync(in, &out, lipsyncOptions{duration: 0.5, at: -1, voice: "v"})
	require.NoError(t, err)

	var data lipsync.Data
	require.NoError(t, sonic.Unmarshal(out.Bytes(), &data))
	assert.Equal(t, "v", data.Metadata.Voice)
	assert.Equal(t, 0.5, data.Metadata.Duration)
	assert.Equal(t, []lipsync.MouthCue{
		{Start: 0, End: 0.2, Value: lipsync.ShapeA},
		{Start: 0.2, End: 0.5, Value: lipsync.ShapeD},
	}, data.MouthCues)
}

func TestRunLipsync_Ticks(t *testing.T) {
	var out bytes.Buffer
	in := strings.NewReader(`[{"VisemeId":1,"AudioOffset":0},{"VisemeId":7,"AudioOffset":2000000}]`)

	require.NoError(t, runLipsync(in, &out, lipsyncOptions{duration: -1, ticks: true, at: -1}))

	var data lipsync.Data
	require.NoError(t, sonic.Unmarshal(out.Bytes(), &data))
	require.Len(t, data.MouthCues, 2)
	assert.Equal(t, 0.2, data.MouthCues[1].Start)
	assert.Equal(t, 0.32, data.Metadata.Duration)
}

func TestRunLipsync_At(t *testing.T) {
	var out bytes.Buffer
	in := strings.NewReader(`[{"id":1,"offsetSeconds":0},{"id":7,"offsetSeconds":0.2}]`)

	require.NoError(t, runLipsync(in, &out, lipsyncOptions{duration: 0.5, at: 0.3}))

	var cue lipsync.MouthCue
	require.NoError(t, sonic.Unmarshal(out.Bytes(), &cue))
	assert.Equal(t, lipsync.ShapeD, cue.Value)

	err := runLipsync(strings.NewReader(`[]`), &out, lipsyncOptions{duration: 0.5, at: 3})
	assert.ErrorContains(t, err, "no cue")
}

func TestRunLipsync_BadInput(t *testing.T) {
	err := runLipsync(strings.NewReader(`{"id":1}`), &bytes.Buffer{}, lipsyncOptions{duration: -1, at: -1})
	assert.ErrorContains(t, err, "parse events")
}

func TestLipsyncCommand_ReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.json")
	require.NoError(t, os.WriteFile(path, []byte(`[]`), 0o644))

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"lipsync", path, "--duration", "1"})
	require.NoError(t, cmd.Execute())

	assert.Contains(t, out.String(), `"value": "X"`)
}

func TestLoadSettings(t *testing.T) {
	t.Setenv("SETTINGS_JSON_B64", "")

	path := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"server":{"addr":":9000"}}`), 0o644))

	settings, fromFile := loadSettings(path)
	assert.True(t, fromFile)
	assert.Equal(t, ":9000", settings.Server.Addr)

	_, fromFile = loadSettings(filepath.Join(t.TempDir(), "missing.json"))
	assert.False(t, fromFile)
}

func TestLoadSettings_Base64(t *testing.T) {
	t.Setenv("SETTINGS_JSON_B64", "eyJzZXJ2ZXIiOnsiYWRkciI6Ijo3MDAwIn19") // {"server":{"addr":":7000"}}

	settings, fromFile := loadSettings("ignored.json")
	assert.False(t, fromFile)
	assert.Equal(t, ":7000", settings.Server.Addr)
}
