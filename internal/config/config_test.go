package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/pelletier/go-toml/v2"

	"github.com/dshills/glyphcaster/internal/config/loader"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func environ(vars ...string) LoadOption {
	return WithEnviron(func() []string { return vars })
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(WithFile(writeConfig(t, "")), environ())
	if err != nil {
		t.Fatal(err)
	}
	want := Default()
	if diff := cmp.Diff(want, cfg, cmpopts.IgnoreFields(Config{}, "Files"), cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("Load mismatch (-want +got):\n%s", diff)
	}
	if len(cfg.Files) != 1 {
		t.Errorf("expected the file to be recorded, got %v", cfg.Files)
	}
}

func TestLoad_MissingDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.toml")
	// Only explicit files must exist; emulate the default by loading through
	// a FileSystem without WithFile.
	cfg, err := Load(WithFS(loader.OSFS{}), environ(), func(o *loadOptions) { o.path = path })
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg.Files) != 0 {
		t.Errorf("expected no files, got %v", cfg.Files)
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(WithFile(filepath.Join(t.TempDir(), "absent.toml")), environ())
	if !errors.Is(err, ErrFileNotFound) {
		t.Errorf("expected ErrFileNotFound, got %v", err)
	}
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
[log]
level = "debug"
development = true

[storage]
dataDir = "/var/lib/glyph"

[peer]
id = "alice"
listen = "127.0.0.1:7420"
connect = ["10.0.0.2:7420", "10.0.0.3:7420"]

[document]
key = "body"
initialText = ""

[mirror]
delay = "250ms"
`)
	cfg, err := Load(WithFile(path), environ())
	if err != nil {
		t.Fatal(err)
	}
	want := Config{
		Log:      LogConfig{Level: "debug", Development: true},
		Storage:  StorageConfig{DataDir: "/var/lib/glyph"},
		Peer:     PeerConfig{ID: "alice", Listen: "127.0.0.1:7420", Connect: []string{"10.0.0.2:7420", "10.0.0.3:7420"}},
		Document: DocumentConfig{Key: "body"},
		Mirror:   MirrorConfig{Delay: "250ms"},
		Files:    []string{path},
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("Load mismatch (-want +got):\n%s", diff)
	}
	if d, err := cfg.Mirror.DelayDuration(); err != nil || d != 250*time.Millisecond {
		t.Errorf("DelayDuration = %v, %v", d, err)
	}
}

func TestLoad_Layers(t *testing.T) {
	path := writeConfig(t, `
[log]
level = "warn"

[peer]
listen = ":7420"
`)
	tests := []struct {
		name string
		opts []LoadOption
		want func(*Config)
	}{
		{
			name: "file only",
			opts: []LoadOption{environ()},
			want: func(c *Config) {
				c.Log.Level = "warn"
				c.Peer.Listen = ":7420"
			},
		},
		{
			name: "env over file",
			opts: []LoadOption{environ(
				"GLYPHCASTER_LOG_LEVEL=error",
				"GLYPHCASTER_LOG_DEVELOPMENT=1",
				"GLYPHCASTER_PEER_ID=42",
				"GLYPHCASTER_PEERS=a:1, b:2",
				"GLYPHCASTER_DATA=/tmp/glyph",
			)},
			want: func(c *Config) {
				c.Log.Level = "error"
				c.Log.Development = true
				c.Peer.ID = "42"
				c.Peer.Listen = ":7420"
				c.Peer.Connect = []string{"a:1", "b:2"}
				c.Storage.DataDir = "/tmp/glyph"
			},
		},
		{
			name: "override over env",
			opts: []LoadOption{
				environ("GLYPHCASTER_LISTEN=:9000", "GLYPHCASTER_LOG_LEVEL=error"),
				WithOverride("peer.listen", ":9100"),
				WithOverride("log.level", ""),
				WithOverride("peer.connect", []string{"c:3"}),
			},
			want: func(c *Config) {
				c.Log.Level = "error"
				c.Peer.Listen = ":9100"
				c.Peer.Connect = []string{"c:3"}
			},
		},
		{
			name: "env disabled",
			opts: []LoadOption{environ("GLYPHCASTER_LOG_LEVEL=error"), WithoutEnv()},
			want: func(c *Config) {
				c.Log.Level = "warn"
				c.Peer.Listen = ":7420"
			},
		},
		{
			name: "custom prefix",
			opts: []LoadOption{environ("GLYPH_LOG_LEVEL=debug", "GLYPHCASTER_LOG_LEVEL=error"), WithEnvPrefix("GLYPH_")},
			want: func(c *Config) {
				c.Log.Level = "debug"
				c.Peer.Listen = ":7420"
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(append([]LoadOption{WithFile(path)}, tt.opts...)...)
			if err != nil {
				t.Fatal(err)
			}
			want := Default()
			tt.want(&want)
			if diff := cmp.Diff(want, cfg, cmpopts.IgnoreFields(Config{}, "Files"), cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("Load mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLoad_Include(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "peers.toml"), []byte(`
[peer]
connect = ["10.0.0.9:7420"]
`), 0o644); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(`"@include" = "peers.toml"`+"\n[log]\nlevel = \"debug\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(WithFile(path), environ())
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"10.0.0.9:7420"}, cfg.Peer.Connect); diff != "" {
		t.Errorf("Connect mismatch (-want +got):\n%s", diff)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Level = %q, want debug", cfg.Log.Level)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		env     []string
		target  error
	}{
		{"bad level", "[log]\nlevel = \"loud\"\n", nil, ErrValidationFailed},
		{"empty key", "[document]\nkey = \"\"\n", nil, ErrValidationFailed},
		{"bad listen", "[peer]\nlisten = \"7420\"\n", nil, ErrValidationFailed},
		{"bad connect", "[peer]\nconnect = [\"nohost\"]\n", nil, ErrValidationFailed},
		{"bad delay", "[mirror]\ndelay = \"soon\"\n", nil, ErrValidationFailed},
		{"negative delay", "[mirror]\ndelay = \"-1s\"\n", nil, ErrValidationFailed},
		{"connect not a list", "[peer]\nconnect = 3\n", nil, ErrTypeMismatch},
		{"connect item", "[peer]\nconnect = [3]\n", nil, ErrTypeMismatch},
		{"bool env", "", []string{"GLYPHCASTER_LOG_DEVELOPMENT=maybe"}, ErrTypeMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(WithFile(writeConfig(t, tt.content)), environ(tt.env...))
			if !errors.Is(err, tt.target) {
				t.Errorf("expected %v, got %v", tt.target, err)
			}
		})
	}
}

func TestLoad_ParseError(t *testing.T) {
	_, err := Load(WithFile(writeConfig(t, "[log\n")), environ())
	var pe *loader.ParseError
	if !errors.As(err, &pe) {
		t.Errorf("expected *loader.ParseError, got %T: %v", err, err)
	}
}

func TestValidate_ReportsEverything(t *testing.T) {
	cfg := Default()
	cfg.Log.Level = "loud"
	cfg.Document.Key = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected an error")
	}
	for _, want := range []string{"log.level", "document.key"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected %q in %v", want, err)
		}
	}
}

func TestMarshal(t *testing.T) {
	cfg := Default()
	cfg.Peer.Connect = []string{"a:1"}
	data, err := cfg.Marshal()
	if err != nil {
		t.Fatal(err)
	}
	var back Config
	if err := toml.Unmarshal(data, &back); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(cfg, back); diff != "" {
		t.Errorf("Marshal lost settings (-want +got):\n%s", diff)
	}
}
