package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/adrg/xdg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/llehouerou/wavepost/internal/notify"
	"github.com/llehouerou/wavepost/internal/playlist"
)

// isolate points XDG_CONFIG_HOME and the working directory at empty temp
// dirs so that only files written by the test are loaded.
func isolate(t *testing.T) (xdgDir, cwd string) {
	t.Helper()
	xdgDir = t.TempDir()
	cwd = t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdgDir)
	t.Setenv(EnvLogLevel, "")
	t.Setenv(EnvIPCAddr, "")
	os.Unsetenv(EnvIPCAddr)
	xdg.Reload()
	t.Cleanup(xdg.Reload)
	t.Chdir(cwd)
	return xdgDir, cwd
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("Could not get home dir: %v", err)
	}

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"tilde expands to home", "~/music", filepath.Join(home, "music")},
		{"tilde with nested path", "~/music/library/albums", filepath.Join(home, "music", "library", "albums")},
		{"absolute path unchanged", "/usr/local/music", "/usr/local/music"},
		{"relative path unchanged", "music/albums", "music/albums"},
		{"empty string unchanged", "", ""},
		{"tilde only", "~", home},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, expandPath(tt.input))
		})
	}
}

func TestGetConfigPaths(t *testing.T) {
	xdgDir, _ := isolate(t)

	paths := getConfigPaths()

	require.Len(t, paths, 2)
	assert.Equal(t, filepath.Join(xdgDir, "wavepost", "config.toml"), paths[0])
	assert.Equal(t, "config.toml", paths[1])
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 44100, cfg.Audio.SampleRate)
	assert.Equal(t, 2, cfg.Audio.Channels)
	assert.Equal(t, 500*time.Millisecond, cfg.Buffer())
	assert.Equal(t, 100*time.Millisecond, cfg.DeviceBuffer())
	assert.Equal(t, playlist.Normal, cfg.PlaylistMode())
	assert.Equal(t, 10*time.Second, cfg.SeekStep())
	assert.Equal(t, 7*time.Second, cfg.SkipBackThreshold())
	assert.InDelta(t, 1.0, cfg.Playback.Volume, 0)
	assert.Equal(t, 64, cfg.Bus.QueueSize)
	assert.Equal(t, time.Second/30, cfg.AnalyzerTick())
	assert.Equal(t, "127.0.0.1:7878", cfg.IPC.Addr)
	assert.True(t, cfg.MPRIS.Enabled)
	assert.False(t, cfg.Notify.Enabled)
	assert.Equal(t, notify.DefaultOptions(), cfg.NotifyOptions())
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "stderr", cfg.Log.Output)
	assert.Empty(t, cfg.State.Path)
}

func TestLoad_PriorityLastWins(t *testing.T) {
	xdgDir, cwd := isolate(t)
	writeFile(t, filepath.Join(xdgDir, "wavepost", "config.toml"), `
[audio]
sample_rate = 48000
channels = 1

[playback]
mode = "Shuffle"
`)
	writeFile(t, filepath.Join(cwd, "config.toml"), `
[audio]
sample_rate = 22050
`)
	explicit := filepath.Join(t.TempDir(), "custom.toml")
	writeFile(t, explicit, `
[playback]
mode = "RepeatAll"
`)

	cfg, err := Load(explicit)
	require.NoError(t, err)

	assert.Equal(t, 22050, cfg.Audio.SampleRate)
	assert.Equal(t, 1, cfg.Audio.Channels)
	assert.Equal(t, playlist.RepeatAll, cfg.PlaylistMode())
}

func TestLoad_ExplicitZeroValuesKept(t *testing.T) {
	_, cwd := isolate(t)
	writeFile(t, filepath.Join(cwd, "config.toml"), `
[playback]
volume = 0
skip_back_threshold_secs = 0

[ipc]
addr = ""

[mpris]
enabled = false
`)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Zero(t, cfg.Playback.Volume)
	assert.Zero(t, cfg.SkipBackThreshold())
	assert.Empty(t, cfg.IPC.Addr)
	assert.False(t, cfg.MPRIS.Enabled)
}

func TestLoad_FractionalSeconds(t *testing.T) {
	_, cwd := isolate(t)
	writeFile(t, filepath.Join(cwd, "config.toml"), `
[playback]
seek_step_secs = 2.5
`)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 2500*time.Millisecond, cfg.SeekStep())
}

func TestLoad_EnvOverrides(t *testing.T) {
	_, cwd := isolate(t)
	writeFile(t, filepath.Join(cwd, "config.toml"), `
[log]
level = "warn"

[ipc]
addr = "127.0.0.1:9000"
`)
	t.Setenv(EnvLogLevel, "debug")
	t.Setenv(EnvIPCAddr, "")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Empty(t, cfg.IPC.Addr, "an empty address disables the bridge")
}

func TestLoad_ExpandsPaths(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("Could not get home dir: %v", err)
	}
	_, cwd := isolate(t)
	writeFile(t, filepath.Join(cwd, "config.toml"), `
[log]
output = "file"
file = "~/logs/wavepost.log"

[state]
path = "~/wavepost.db"
`)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, "logs", "wavepost.log"), cfg.Log.File)
	assert.Equal(t, filepath.Join(home, "wavepost.db"), cfg.State.Path)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	isolate(t)

	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))

	require.Error(t, err)
}

func TestLoad_MalformedFile(t *testing.T) {
	_, cwd := isolate(t)
	writeFile(t, filepath.Join(cwd, "config.toml"), "[audio\nsample_rate =")

	_, err := Load("")

	require.Error(t, err)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"channels", "[audio]\nchannels = 6"},
		{"sample rate", "[audio]\nsample_rate = 100"},
		{"mode", "[playback]\nmode = \"Sideways\""},
		{"volume", "[playback]\nvolume = 1.5"},
		{"seek step", "[playback]\nseek_step_secs = 0"},
		{"queue size", "[bus]\nqueue_size = 0"},
		{"analyzer rate", "[analyzer]\nrate_hz = 0"},
		{"ipc addr", "[ipc]\naddr = \"no port\""},
		{"log level", "[log]\nlevel = \"loud\""},
		{"log file missing", "[log]\noutput = \"file\""},
		{"notify app name", "[notify]\napp_name = \"\""},
		{"notify timeout", "[notify]\ntrack_timeout_ms = -2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, cwd := isolate(t)
			writeFile(t, filepath.Join(cwd, "config.toml"), tt.content)

			_, err := Load("")

			require.Error(t, err)
		})
	}
}

func TestLoad_NotifyOptions(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    notify.Options
	}{
		{
			name: "custom identity",
			content: `
[notify]
app_name = "Kitchen"
desktop_entry = ""
icon = "/usr/share/icons/kitchen.png"
track_timeout_ms = 2500
error_timeout_ms = 8000
`,
			want: notify.Options{
				AppName:      "Kitchen",
				Icon:         "/usr/share/icons/kitchen.png",
				TrackTimeout: 2500 * time.Millisecond,
				ErrorTimeout: 8 * time.Second,
			},
		},
		{
			name: "never expire and server default",
			content: `
[notify]
track_timeout_ms = 0
error_timeout_ms = -1
`,
			want: notify.Options{
				AppName:      "Wavepost",
				DesktopEntry: "wavepost",
				Icon:         "audio-x-generic",
				TrackTimeout: 0,
				ErrorTimeout: -1,
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, cwd := isolate(t)
			writeFile(t, filepath.Join(cwd, "config.toml"), tt.content)

			cfg, err := Load("")

			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.NotifyOptions())
		})
	}
}

func TestYAML(t *testing.T) {
	isolate(t)
	cfg, err := Load("")
	require.NoError(t, err)

	out, err := cfg.YAML()
	require.NoError(t, err)

	var decoded map[string]map[string]any
	require.NoError(t, yaml.Unmarshal(out, &decoded))
	assert.Equal(t, 44100, decoded["audio"]["sample_rate"])
	assert.Equal(t, "Normal", decoded["playback"]["mode"])
	assert.Equal(t, true, decoded["mpris"]["enabled"])
	assert.Contains(t, decoded, "state")
}
