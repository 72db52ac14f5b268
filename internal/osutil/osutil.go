// Package osutil wraps the operating system surface the document model
// depends on: path helpers, directory listing with typed errors, the
// per-user application directories, and temp file handling.
package osutil

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"reelcore/pkg/domain"
)

// DirEntry describes one directory listing entry.
type DirEntry struct {
	Name   string
	IsDir  bool
	IsFile bool
	IsLink bool
	Hidden bool
	Size   int64
	MTime  time.Time
}

// Classify maps an OS error onto the domain error taxonomy.
func Classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%v: %w", err, domain.ErrFileNotFound)
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%v: %w", err, domain.ErrPermissionDenied)
	case errors.Is(err, syscall.EMFILE), errors.Is(err, syscall.ENFILE):
		return fmt.Errorf("%v: %w", err, domain.ErrSystemResources)
	case errors.Is(err, syscall.ENOMEM):
		return fmt.Errorf("%v: %w", err, domain.ErrOutOfMemory)
	case errors.Is(err, syscall.ENOTDIR), errors.Is(err, syscall.ELOOP), errors.Is(err, syscall.ENAMETOOLONG):
		return fmt.Errorf("%v: %w", err, domain.ErrUnimplemented)
	default:
		return err
	}
}

// ReadDir lists dir, skipping dot and dot-dot, with typed errors. Entries
// that vanish between listing and stat are skipped rather than failing the
// whole listing.
func ReadDir(dir string) ([]DirEntry, error) {
	raw, err := os.ReadDir(dir)
	if err != nil {
		return nil, Classify(err)
	}
	entries := make([]DirEntry, 0, len(raw))
	for _, de := range raw {
		info, err := de.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, Classify(err)
		}
		entries = append(entries, DirEntry{
			Name:   de.Name(),
			IsDir:  info.IsDir(),
			IsFile: info.Mode().IsRegular(),
			IsLink: info.Mode()&fs.ModeSymlink != 0,
			Hidden: strings.HasPrefix(de.Name(), "."),
			Size:   info.Size(),
			MTime:  info.ModTime(),
		})
	}
	return entries, nil
}

// PathJoin joins path elements with the platform separator.
func PathJoin(elem ...string) string { return filepath.Join(elem...) }

// PathDirname returns the directory portion of path.
func PathDirname(path string) string { return filepath.Dir(path) }

// HomeDir locates the current user's home directory.
func HomeDir() (string, error) {
	if env := os.Getenv("HOME"); env != "" {
		return env, nil
	}
	u, err := user.Current()
	if err != nil {
		return "", Classify(err)
	}
	return u.HomeDir, nil
}

// AppDir is the per-user reelcore data directory.
func AppDir() (string, error) {
	home, err := HomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".reelcore"), nil
}

// ProjectsDir is where project files live by default.
func ProjectsDir() (string, error) {
	app, err := AppDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(app, "projects"), nil
}

// SamplesDir is the default root of the local sample archive.
func SamplesDir() (string, error) {
	app, err := AppDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(app, "samples"), nil
}

// Mkdirp creates path and any missing parents.
func Mkdirp(path string) error {
	if err := os.MkdirAll(path, 0o750); err != nil {
		return Classify(err)
	}
	return nil
}

// Delete removes a single file.
func Delete(path string) error {
	return Classify(os.Remove(path))
}

// RenameClobber moves source over dest, replacing it.
func RenameClobber(source, dest string) error {
	return Classify(os.Rename(source, dest))
}

// CreateTemp opens a temp file in dir; callers rename it into place for
// atomic replacement.
func CreateTemp(dir string) (*os.File, error) {
	f, err := os.CreateTemp(dir, ".reelcore-*")
	if err != nil {
		return nil, Classify(err)
	}
	return f, nil
}

// UserName is the login name of the invoking user, for default authorship.
func UserName() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return "Unknown User"
}

// MonotonicSeconds returns a monotonic clock reading for interval timing.
func MonotonicSeconds() float64 {
	return float64(time.Since(processStart)) / float64(time.Second)
}

var processStart = time.Now()
