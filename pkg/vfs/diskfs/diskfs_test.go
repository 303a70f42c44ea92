package diskfs

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"minifs/pkg/vfs"
)

// writeFixture creates a file under dir, creating parents as needed.
func writeFixture(t *testing.T, dir, name string, data []byte) {
	t.Helper()
	full := filepath.Join(dir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatalf("MkdirAll() failed: %v", err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		t.Fatalf("WriteFile() failed: %v", err)
	}
}

func TestOpenAndRead(t *testing.T) {
	tmpDir := t.TempDir()
	writeFixture(t, tmpDir, "test.txt", []byte("Hello, World!"))

	fs := New(tmpDir)

	file, err := fs.Open("/test.txt")
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		t.Fatalf("ReadAll() failed: %v", err)
	}
	if string(data) != "Hello, World!" {
		t.Errorf("got %q, expected %q", string(data), "Hello, World!")
	}
}

func TestOpenSeek(t *testing.T) {
	tmpDir := t.TempDir()
	writeFixture(t, tmpDir, "test.txt", []byte("Hello, World!"))

	fs := New(tmpDir)

	file, err := fs.Open("/test.txt")
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer file.Close()

	if _, err := file.Seek(7, io.SeekStart); err != nil {
		t.Fatalf("Seek() failed: %v", err)
	}

	data, err := io.ReadAll(file)
	if err != nil {
		t.Fatalf("ReadAll() failed: %v", err)
	}
	if string(data) != "World!" {
		t.Errorf("got %q, expected %q", string(data), "World!")
	}
}

func TestOpenNotFound(t *testing.T) {
	fs := New(t.TempDir())

	_, err := fs.Open("/missing.txt")
	if !errors.Is(err, vfs.ErrNotFound) {
		t.Errorf("Open() = %v, expected ErrNotFound", err)
	}
}

func TestOpenDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	writeFixture(t, tmpDir, "sub/file.txt", []byte("x"))

	fs := New(tmpDir)

	_, err := fs.Open("/sub")
	if !errors.Is(err, vfs.ErrIsDirectory) {
		t.Errorf("Open() = %v, expected ErrIsDirectory", err)
	}
}

func TestOpenInvalidPath(t *testing.T) {
	fs := New(t.TempDir())

	_, err := fs.Open("/../escape")
	if !errors.Is(err, vfs.ErrInvalidPath) {
		t.Errorf("Open() = %v, expected ErrInvalidPath", err)
	}
}

func TestReadDir(t *testing.T) {
	tmpDir := t.TempDir()
	writeFixture(t, tmpDir, "b.txt", []byte("bb"))
	writeFixture(t, tmpDir, "a.txt", []byte("a"))
	writeFixture(t, tmpDir, "sub/c.txt", []byte("c"))

	fs := New(tmpDir)

	entries, err := fs.ReadDir("/")
	if err != nil {
		t.Fatalf("ReadDir() failed: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("got %d entries, expected 3", len(entries))
	}

	// os.ReadDir returns entries sorted by name.
	if entries[0].Name != "a.txt" || entries[0].Size != 1 || entries[0].IsDir {
		t.Errorf("unexpected entry: %+v", entries[0])
	}
	if entries[1].Name != "b.txt" || entries[1].Size != 2 {
		t.Errorf("unexpected entry: %+v", entries[1])
	}
	if entries[2].Name != "sub" || !entries[2].IsDir {
		t.Errorf("unexpected entry: %+v", entries[2])
	}
	if entries[2].Path != "/sub" {
		t.Errorf("entry path is %q, expected %q", entries[2].Path, "/sub")
	}
}

func TestReadDirNotFound(t *testing.T) {
	fs := New(t.TempDir())

	_, err := fs.ReadDir("/missing")
	if !errors.Is(err, vfs.ErrNotFound) {
		t.Errorf("ReadDir() = %v, expected ErrNotFound", err)
	}
}

func TestReadDirOnFile(t *testing.T) {
	tmpDir := t.TempDir()
	writeFixture(t, tmpDir, "file.txt", []byte("x"))

	fs := New(tmpDir)

	_, err := fs.ReadDir("/file.txt")
	if !errors.Is(err, vfs.ErrNotDirectory) {
		t.Errorf("ReadDir() = %v, expected ErrNotDirectory", err)
	}
}

func TestStat(t *testing.T) {
	tmpDir := t.TempDir()
	writeFixture(t, tmpDir, "sub/file.txt", []byte("hello"))

	fs := New(tmpDir)

	entry, err := fs.Stat("/sub/file.txt")
	if err != nil {
		t.Fatalf("Stat() failed: %v", err)
	}
	if entry.Name != "file.txt" || entry.Size != 5 || entry.IsDir {
		t.Errorf("unexpected entry: %+v", entry)
	}

	entry, err = fs.Stat("/sub")
	if err != nil {
		t.Fatalf("Stat() failed: %v", err)
	}
	if !entry.IsDir {
		t.Error("expected a directory entry")
	}
}

func TestStatAgreesWithReadDir(t *testing.T) {
	tmpDir := t.TempDir()
	writeFixture(t, tmpDir, "dir/a.txt", []byte("abc"))

	fs := New(tmpDir)

	entries, err := fs.ReadDir("/dir")
	if err != nil {
		t.Fatalf("ReadDir() failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries, expected 1", len(entries))
	}

	entry, err := fs.Stat("/dir/a.txt")
	if err != nil {
		t.Fatalf("Stat() failed: %v", err)
	}
	if entry != entries[0] {
		t.Errorf("Stat() = %+v, ReadDir() entry = %+v", entry, entries[0])
	}
}

func TestNoCaching(t *testing.T) {
	tmpDir := t.TempDir()
	fs := New(tmpDir)

	if _, err := fs.Stat("/late.txt"); !errors.Is(err, vfs.ErrNotFound) {
		t.Fatalf("Stat() = %v, expected ErrNotFound", err)
	}

	// Results reflect on-disk state at call time.
	writeFixture(t, tmpDir, "late.txt", []byte("now"))

	if _, err := fs.Stat("/late.txt"); err != nil {
		t.Errorf("Stat() failed after create: %v", err)
	}
}
