// Package loader reads configuration layers into generic maps: TOML files
// (with @include) and prefixed environment variables. Package config merges
// the layers and decodes them into typed settings.
package loader

import (
	"io/fs"
	"os"
)

// Loader reads one configuration layer.
type Loader interface {
	// Load returns the layer's settings, or nil, nil if the source does not
	// exist.
	Load() (map[string]any, error)
}

// FileSystem is the file access a loader needs, so tests can use an
// in-memory tree.
type FileSystem interface {
	ReadFile(path string) ([]byte, error)
	Stat(path string) (fs.FileInfo, error)
}

// OSFS implements FileSystem on the real file system.
type OSFS struct{}

// ReadFile reads the entire file at path.
func (OSFS) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// Stat returns file info for path.
func (OSFS) Stat(path string) (fs.FileInfo, error) {
	return os.Stat(path)
}

// DefaultFS returns the OS file system.
func DefaultFS() FileSystem {
	return OSFS{}
}
