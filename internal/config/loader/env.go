package loader

import (
	"os"
	"strconv"
	"strings"

	"github.com/segmentio/encoding/json"
)

// EnvLoader loads settings from environment variables with a prefix.
// GLYPHCASTER_STORAGE_DATA_DIR becomes storage.dataDir: the first word is
// the section and the rest form the camelCase key. Explicit mappings take
// precedence over that rule.
type EnvLoader struct {
	prefix  string
	mapping map[string]string
	environ func() []string
}

// NewEnvLoader creates a loader for variables starting with prefix, which
// should include the trailing underscore.
func NewEnvLoader(prefix string) *EnvLoader {
	return &EnvLoader{
		prefix:  prefix,
		mapping: make(map[string]string),
		environ: os.Environ,
	}
}

// UseEnviron replaces the source of variables, os.Environ by default.
func (l *EnvLoader) UseEnviron(environ func() []string) {
	if environ != nil {
		l.environ = environ
	}
}

// AddMapping maps a variable to a dotted settings path.
func (l *EnvLoader) AddMapping(envVar, path string) {
	l.mapping[envVar] = path
}

// Load collects the prefixed variables. Empty values count as set.
func (l *EnvLoader) Load() (map[string]any, error) {
	cfg := make(map[string]any)
	for _, kv := range l.environ() {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(name, l.prefix) {
			continue
		}
		path, mapped := l.mapping[name]
		if !mapped {
			path = l.envToPath(name)
		}
		if path == "" {
			continue
		}
		SetByPath(cfg, path, parseValue(value))
	}
	return cfg, nil
}

func (l *EnvLoader) envToPath(name string) string {
	parts := strings.Split(strings.TrimPrefix(name, l.prefix), "_")
	if len(parts) == 0 || parts[0] == "" {
		return ""
	}
	section := strings.ToLower(parts[0])
	if len(parts) == 1 {
		return section
	}
	var key strings.Builder
	key.WriteString(strings.ToLower(parts[1]))
	for _, p := range parts[2:] {
		if p == "" {
			continue
		}
		key.WriteString(strings.ToUpper(p[:1]) + strings.ToLower(p[1:]))
	}
	return section + "." + key.String()
}

// parseValue turns a variable into a bool, int, float, JSON array/object or
// string.
func parseValue(s string) any {
	switch strings.ToLower(s) {
	case "true", "yes", "on":
		return true
	case "false", "no", "off":
		return false
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if strings.Contains(s, ".") {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	}
	if strings.HasPrefix(s, "[") || strings.HasPrefix(s, "{") {
		var v any
		if err := json.Unmarshal([]byte(s), &v); err == nil {
			return v
		}
	}
	return s
}

// SetByPath stores value at a dotted path, creating intermediate maps and
// replacing non-map values on the way.
func SetByPath(data map[string]any, path string, value any) {
	parts := strings.Split(path, ".")
	current := data
	for _, part := range parts[:len(parts)-1] {
		next, ok := current[part].(map[string]any)
		if !ok {
			next = make(map[string]any)
			current[part] = next
		}
		current = next
	}
	current[parts[len(parts)-1]] = value
}
