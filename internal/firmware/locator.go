// Package firmware resolves firmware names to bytes on the local filesystem.
//
// The override directory is read on every request and may be given as a
// plain path, a "~"-prefixed home-relative path or a "%VAR%"-prefixed path.
// Names are always reduced to their base name before any path is built.
package firmware

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/byronin/esp32-webflasher/internal/status"
)

// FS is the filesystem surface the locator needs.
type FS interface {
	Stat(name string) (fs.FileInfo, error)
	ReadDir(name string) ([]fs.DirEntry, error)
	ReadFile(name string) ([]byte, error)
}

// OSFS is the process filesystem.
type OSFS struct{}

func (OSFS) Stat(name string) (fs.FileInfo, error)      { return os.Stat(name) }
func (OSFS) ReadDir(name string) ([]fs.DirEntry, error) { return os.ReadDir(name) }
func (OSFS) ReadFile(name string) ([]byte, error)       { return os.ReadFile(name) }

// Logger receives diagnostic messages. *slog.Logger satisfies it.
type Logger interface {
	Debug(msg string, keysAndValues ...interface{})
}

// Image is one located firmware file.
type Image struct {
	Name string // base name of the file read, safe for Content-Disposition
	Path string // absolute path that was read
	Data []byte
}

// Locator lists and fetches firmware files. It holds no mutable state and
// is safe for concurrent use.
type Locator struct {
	fs       FS
	env      Env
	override func() string
	logger   Logger
}

// Option configures a Locator.
type Option func(*Locator)

// WithFS replaces the filesystem.
func WithFS(fsys FS) Option {
	return func(l *Locator) { l.fs = fsys }
}

// WithEnv replaces the process environment.
func WithEnv(env Env) Option {
	return func(l *Locator) { l.env = env }
}

// WithLogger sets a diagnostic logger.
func WithLogger(logger Logger) Option {
	return func(l *Locator) { l.logger = logger }
}

// NewLocator creates a Locator. override is called on every request and
// returns the raw override directory ("" means DefaultDirectory).
func NewLocator(override func() string, opts ...Option) *Locator {
	if override == nil {
		override = func() string { return "" }
	}
	l := &Locator{
		fs:       OSFS{},
		env:      OSEnv(),
		override: override,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Directory returns the resolved override directory for this request.
func (l *Locator) Directory() string {
	return ResolveDirectory(l.override(), l.env)
}

// List returns the names of .bin and .hex entries in the resolved directory,
// in the order the filesystem enumerates them.
func (l *Locator) List() ([]string, error) {
	dir := l.Directory()

	info, err := l.fs.Stat(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &DirectoryNotFoundError{Path: dir}
		}
		return nil, fmt.Errorf("firmware: stat %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, &DirectoryNotFoundError{Path: dir}
	}

	entries, err := l.fs.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("firmware: read dir %s: %w", dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if IsFirmwareFile(e.Name()) {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// Fetch returns the first readable candidate for name.
// A missing directory is not an error here: the fixed default directory
// is always probed first.
func (l *Locator) Fetch(name string) (*Image, error) {
	if strings.TrimSpace(name) == "" {
		return nil, &status.InvalidRequestError{Reason: "firmware name is required"}
	}

	base := Basename(name)
	switch base {
	case "", ".", "..":
		return nil, &status.InvalidRequestError{Reason: fmt.Sprintf("firmware name %q has no file component", name)}
	}

	defaultDir := absolute(filepath.FromSlash(DefaultDirectory), l.env)
	candidates := BuildCandidates(defaultDir, l.Directory(), base)

	for _, p := range candidates {
		data, err := l.fs.ReadFile(p)
		if err != nil {
			l.debug("firmware candidate unreadable", "path", p)
			continue
		}
		return &Image{Name: filepath.Base(p), Path: p, Data: data}, nil
	}

	return nil, &FileNotFoundError{Name: base, Tried: candidates}
}

func (l *Locator) debug(msg string, kv ...interface{}) {
	if l.logger != nil {
		l.logger.Debug(msg, kv...)
	}
}
