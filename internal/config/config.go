package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/dshills/glyphcaster/internal/config/loader"
	"github.com/dshills/glyphcaster/internal/logging"
	"github.com/dshills/glyphcaster/internal/repo"
)

// EnvPrefix is the prefix of environment variables read by Load.
const EnvPrefix = "GLYPHCASTER_"

// Config holds every setting.
type Config struct {
	Log      LogConfig      `toml:"log"`
	Storage  StorageConfig  `toml:"storage"`
	Peer     PeerConfig     `toml:"peer"`
	Document DocumentConfig `toml:"document"`
	Mirror   MirrorConfig   `toml:"mirror"`

	// Files lists the config files that were read, outermost first.
	Files []string `toml:"-"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level       string `toml:"level"`
	Development bool   `toml:"development"`
}

// StorageConfig configures where documents are persisted.
type StorageConfig struct {
	// DataDir holds one change log per document. Empty keeps documents in
	// memory only.
	DataDir string `toml:"dataDir"`
}

// PeerConfig configures replication.
type PeerConfig struct {
	// ID is the name this node introduces itself with. A random id is used
	// when empty.
	ID      string   `toml:"id"`
	Listen  string   `toml:"listen"`
	Connect []string `toml:"connect"`
}

// DocumentConfig configures new documents and the text object that is
// edited.
type DocumentConfig struct {
	Key         string `toml:"key"`
	InitialText string `toml:"initialText"`
}

// MirrorConfig configures file mirroring.
type MirrorConfig struct {
	Delay string `toml:"delay"`
}

// DelayDuration returns the parsed debounce delay.
func (m MirrorConfig) DelayDuration() (time.Duration, error) {
	return time.ParseDuration(m.Delay)
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Log:     LogConfig{Level: "info"},
		Storage: StorageConfig{DataDir: DefaultDataDir()},
		Document: DocumentConfig{
			Key:         repo.DefaultTextKey,
			InitialText: repo.DefaultText,
		},
		Mirror: MirrorConfig{Delay: "100ms"},
	}
}

// DefaultPath returns the user config file, or "" if the user config
// directory is unknown.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "glyphcaster", "config.toml")
}

// DefaultDataDir returns the default document directory.
func DefaultDataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "glyphcaster")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".glyphcaster"
	}
	return filepath.Join(home, ".local", "share", "glyphcaster")
}

// LoadOption configures Load.
type LoadOption func(*loadOptions)

type loadOptions struct {
	path      string
	explicit  bool
	fs        loader.FileSystem
	env       bool
	prefix    string
	environ   func() []string
	overrides map[string]any
}

// WithFile reads path instead of DefaultPath. Unlike the default file, an
// explicit file must exist.
func WithFile(path string) LoadOption {
	return func(o *loadOptions) {
		if path != "" {
			o.path = path
			o.explicit = true
		}
	}
}

// WithFS reads config files from fsys.
func WithFS(fsys loader.FileSystem) LoadOption {
	return func(o *loadOptions) {
		if fsys != nil {
			o.fs = fsys
		}
	}
}

// WithEnvPrefix changes the environment variable prefix.
func WithEnvPrefix(prefix string) LoadOption {
	return func(o *loadOptions) {
		o.prefix = prefix
	}
}

// WithEnviron reads variables from environ instead of the process
// environment.
func WithEnviron(environ func() []string) LoadOption {
	return func(o *loadOptions) {
		o.environ = environ
	}
}

// WithoutEnv skips the environment layer.
func WithoutEnv() LoadOption {
	return func(o *loadOptions) {
		o.env = false
	}
}

// WithOverride sets a dotted path above every other layer. Empty strings
// and nil are ignored so unset flags can be passed through.
func WithOverride(path string, value any) LoadOption {
	return func(o *loadOptions) {
		switch v := value.(type) {
		case nil:
			return
		case string:
			if v == "" {
				return
			}
		case []string:
			if len(v) == 0 {
				return
			}
		}
		loader.SetByPath(o.overrides, path, value)
	}
}

// Load merges defaults, the config file, the environment and overrides, and
// validates the result.
func Load(opts ...LoadOption) (Config, error) {
	o := loadOptions{
		path:      DefaultPath(),
		fs:        loader.DefaultFS(),
		env:       true,
		prefix:    EnvPrefix,
		overrides: map[string]any{},
	}
	for _, opt := range opts {
		opt(&o)
	}

	merged, err := toMap(Default())
	if err != nil {
		return Config{}, err
	}

	var files []string
	if o.path != "" {
		if o.explicit {
			if _, err := o.fs.Stat(o.path); errors.Is(err, fs.ErrNotExist) {
				return Config{}, fmt.Errorf("%w: %s", ErrFileNotFound, o.path)
			}
		}
		file, err := loader.NewTOMLLoaderWithFS(o.fs, o.path).Load()
		if err != nil {
			return Config{}, err
		}
		if file != nil {
			files = append(files, o.path)
			merged = loader.DeepMerge(merged, file)
		}
	}

	if o.env {
		env := loader.NewEnvLoader(o.prefix)
		env.UseEnviron(o.environ)
		env.AddMapping(o.prefix+"LISTEN", "peer.listen")
		env.AddMapping(o.prefix+"PEERS", "peer.connect")
		env.AddMapping(o.prefix+"DATA", "storage.dataDir")
		vars, err := env.Load()
		if err != nil {
			return Config{}, err
		}
		merged = loader.DeepMerge(merged, vars)
	}

	merged = loader.DeepMerge(merged, o.overrides)

	cfg, err := decode(merged)
	if err != nil {
		return Config{}, err
	}
	cfg.Files = files
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func toMap(cfg Config) (map[string]any, error) {
	data, err := toml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("encoding defaults: %w", err)
	}
	var m map[string]any
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decoding defaults: %w", err)
	}
	return m, nil
}

// stringPaths and boolPaths are coerced before decoding: the environment
// layer guesses types, so PEER_ID=42 arrives as an integer.
var (
	stringPaths = []string{
		"log.level",
		"storage.dataDir",
		"peer.id",
		"peer.listen",
		"document.key",
		"document.initialText",
		"mirror.delay",
	}
	boolPaths = []string{"log.development"}
)

func decode(m map[string]any) (Config, error) {
	for _, path := range stringPaths {
		if v, ok := lookup(m, path); ok {
			if _, isString := v.(string); !isString {
				loader.SetByPath(m, path, fmt.Sprint(v))
			}
		}
	}
	for _, path := range boolPaths {
		v, ok := lookup(m, path)
		if !ok {
			continue
		}
		switch b := v.(type) {
		case bool:
		case int64:
			loader.SetByPath(m, path, b != 0)
		case string:
			parsed, err := strconv.ParseBool(b)
			if err != nil {
				return Config{}, fmt.Errorf("%w: %s: %q is not a boolean", ErrTypeMismatch, path, b)
			}
			loader.SetByPath(m, path, parsed)
		default:
			return Config{}, fmt.Errorf("%w: %s: %T is not a boolean", ErrTypeMismatch, path, v)
		}
	}
	if v, ok := lookup(m, "peer.connect"); ok {
		list, err := addressList(v)
		if err != nil {
			return Config{}, err
		}
		loader.SetByPath(m, "peer.connect", list)
	}

	data, err := toml.Marshal(m)
	if err != nil {
		return Config{}, fmt.Errorf("encoding settings: %w", err)
	}
	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrTypeMismatch, err)
	}
	return cfg, nil
}

// addressList accepts a list or a comma separated string.
func addressList(v any) ([]any, error) {
	switch v := v.(type) {
	case string:
		var out []any
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out, nil
	case []string:
		out := make([]any, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out, nil
	case []any:
		for _, item := range v {
			if _, ok := item.(string); !ok {
				return nil, fmt.Errorf("%w: peer.connect: %T is not an address", ErrTypeMismatch, item)
			}
		}
		return v, nil
	default:
		return nil, fmt.Errorf("%w: peer.connect: %T is not a list", ErrTypeMismatch, v)
	}
}

func lookup(m map[string]any, path string) (any, bool) {
	parts := strings.Split(path, ".")
	current := m
	for _, part := range parts[:len(parts)-1] {
		next, ok := current[part].(map[string]any)
		if !ok {
			return nil, false
		}
		current = next
	}
	v, ok := current[parts[len(parts)-1]]
	return v, ok
}

// Validate reports every unusable setting.
func (c Config) Validate() error {
	var errs []error
	invalid := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrValidationFailed}, args...)...))
	}

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		invalid("log.level %q", c.Log.Level)
	}
	if c.Document.Key == "" {
		invalid("document.key is empty")
	}
	if c.Peer.Listen != "" {
		if _, _, err := net.SplitHostPort(c.Peer.Listen); err != nil {
			invalid("peer.listen %q: %v", c.Peer.Listen, err)
		}
	}
	for _, addr := range c.Peer.Connect {
		if _, _, err := net.SplitHostPort(addr); err != nil {
			invalid("peer.connect %q: %v", addr, err)
		}
	}
	if d, err := c.Mirror.DelayDuration(); err != nil || d <= 0 {
		invalid("mirror.delay %q", c.Mirror.Delay)
	}
	return errors.Join(errs...)
}

// Marshal encodes the settings as TOML.
func (c Config) Marshal() ([]byte, error) {
	return toml.Marshal(c)
}
