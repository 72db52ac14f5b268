package osutil

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"reelcore/pkg/domain"
)

func TestReadDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.wav"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".hidden"), nil, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	entries, err := ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	byName := make(map[string]DirEntry, len(entries))
	for _, e := range entries {
		byName[e.Name] = e
	}
	if len(byName) != 3 {
		t.Fatalf("got %d entries, want 3", len(byName))
	}
	if e := byName["a.wav"]; !e.IsFile || e.IsDir || e.Hidden || e.Size != 1 {
		t.Fatalf("a.wav entry wrong: %+v", e)
	}
	if e := byName[".hidden"]; !e.Hidden {
		t.Fatalf(".hidden not flagged hidden: %+v", e)
	}
	if e := byName["sub"]; !e.IsDir || e.IsFile {
		t.Fatalf("sub entry wrong: %+v", e)
	}
}

func TestReadDirMissing(t *testing.T) {
	_, err := ReadDir(filepath.Join(t.TempDir(), "nope"))
	if !errors.Is(err, domain.ErrFileNotFound) {
		t.Fatalf("expected ErrFileNotFound, got %v", err)
	}
}

func TestDeleteMissing(t *testing.T) {
	err := Delete(filepath.Join(t.TempDir(), "nope"))
	if !errors.Is(err, domain.ErrFileNotFound) {
		t.Fatalf("expected ErrFileNotFound, got %v", err)
	}
}

func TestMkdirpAndRenameClobber(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, "a", "b", "c")
	if err := Mkdirp(nested); err != nil {
		t.Fatalf("Mkdirp: %v", err)
	}
	if err := Mkdirp(nested); err != nil {
		t.Fatalf("Mkdirp twice: %v", err)
	}

	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")
	if err := os.WriteFile(src, []byte("new"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(dst, []byte("old"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := RenameClobber(src, dst); err != nil {
		t.Fatalf("RenameClobber: %v", err)
	}
	got, err := os.ReadFile(dst)
	if err != nil || string(got) != "new" {
		t.Fatalf("dest after rename: %q, %v", got, err)
	}
}

func TestCreateTemp(t *testing.T) {
	dir := t.TempDir()
	f, err := CreateTemp(dir)
	if err != nil {
		t.Fatalf("CreateTemp: %v", err)
	}
	name := f.Name()
	if err := f.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if filepath.Dir(name) != dir {
		t.Fatalf("temp file %s not in %s", name, dir)
	}
}

func TestAppDirs(t *testing.T) {
	t.Setenv("HOME", "/home/example")
	for _, tc := range []struct {
		name string
		fn   func() (string, error)
		want string
	}{
		{"app", AppDir, "/home/example/.reelcore"},
		{"projects", ProjectsDir, "/home/example/.reelcore/projects"},
		{"samples", SamplesDir, "/home/example/.reelcore/samples"},
	} {
		got, err := tc.fn()
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if got != tc.want {
			t.Fatalf("%s = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestUserNameNonEmpty(t *testing.T) {
	if UserName() == "" {
		t.Fatalf("UserName returned empty string")
	}
}

func TestMonotonicSecondsAdvances(t *testing.T) {
	a := MonotonicSeconds()
	b := MonotonicSeconds()
	if b < a {
		t.Fatalf("monotonic clock went backwards: %v then %v", a, b)
	}
}
