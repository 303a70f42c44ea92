package overlayfs

import (
	"archive/tar"
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"

	"minifs/pkg/vfs"
	"minifs/pkg/vfs/memfs"
	"minifs/pkg/vfs/tarfs"
)

// touchfs builds a memfs from a path->content map.
func touchfs(t *testing.T, files map[string]string) *memfs.FS {
	t.Helper()

	fs := memfs.New()
	for path, content := range files {
		if err := fs.Touch(path, []byte(content)); err != nil {
			t.Fatalf("Touch(%q) failed: %v", path, err)
		}
	}
	return fs
}

// readAll opens path and returns its content as a string.
func readAll(t *testing.T, fsys vfs.FileSystem, path string) string {
	t.Helper()

	file, err := fsys.Open(path)
	if err != nil {
		t.Fatalf("Open(%q) failed: %v", path, err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		t.Fatalf("ReadAll(%q) failed: %v", path, err)
	}
	return string(data)
}

func TestEmptyOverlay(t *testing.T) {
	fs := New()

	if _, err := fs.Open("/anything"); !errors.Is(err, vfs.ErrNotFound) {
		t.Errorf("Open() = %v, expected ErrNotFound", err)
	}
}

func TestMostRecentMountWins(t *testing.T) {
	a := touchfs(t, map[string]string{"/x": "from a"})
	b := touchfs(t, map[string]string{"/x": "from b"})

	fs := New()
	fs.Mount("/", a)
	fs.Mount("/", b)

	if got := readAll(t, fs, "/x"); got != "from b" {
		t.Errorf("got %q, expected the most recent mount's content", got)
	}
}

func TestFallbackOnNotFound(t *testing.T) {
	b := touchfs(t, map[string]string{"/bar": "bar content"})
	a := touchfs(t, map[string]string{"/foo": "foo content"})

	fs := New()
	fs.Mount("/", b)
	fs.Mount("/", a)

	// a wins for paths it has; misses fall through to b.
	if got := readAll(t, fs, "/foo"); got != "foo content" {
		t.Errorf("got %q, expected %q", got, "foo content")
	}
	if got := readAll(t, fs, "/bar"); got != "bar content" {
		t.Errorf("got %q, expected %q", got, "bar content")
	}

	if _, err := fs.Open("/baz"); !errors.Is(err, vfs.ErrNotFound) {
		t.Errorf("Open(/baz) = %v, expected ErrNotFound", err)
	}
}

func TestPrefixMounts(t *testing.T) {
	res := touchfs(t, map[string]string{"/logo.png": "image"})
	cfg := touchfs(t, map[string]string{"/app.yaml": "config"})

	fs := New()
	fs.Mount("/res", res)
	fs.Mount("/etc", cfg)

	if got := readAll(t, fs, "/res/logo.png"); got != "image" {
		t.Errorf("got %q, expected %q", got, "image")
	}
	if got := readAll(t, fs, "/etc/app.yaml"); got != "config" {
		t.Errorf("got %q, expected %q", got, "config")
	}

	// A path that matches no mount prefix is not found.
	if _, err := fs.Open("/other/file"); !errors.Is(err, vfs.ErrNotFound) {
		t.Errorf("Open() = %v, expected ErrNotFound", err)
	}

	// The mount prefix itself resolves to the backend's root.
	entries, err := fs.ReadDir("/res")
	if err != nil {
		t.Fatalf("ReadDir(/res) failed: %v", err)
	}
	if len(entries) != 1 || entries[0].Name != "logo.png" {
		t.Errorf("unexpected entries: %+v", entries)
	}
}

func TestNestedPrefixShadowing(t *testing.T) {
	wide := touchfs(t, map[string]string{"/sub/a": "wide", "/top": "wide top"})
	narrow := touchfs(t, map[string]string{"/a": "narrow"})

	fs := New()
	fs.Mount("/", wide)
	fs.Mount("/sub", narrow)

	// The narrower, later mount wins under /sub; misses there fall
	// back to the wider mount's /sub subtree.
	if got := readAll(t, fs, "/sub/a"); got != "narrow" {
		t.Errorf("got %q, expected %q", got, "narrow")
	}
	if got := readAll(t, fs, "/top"); got != "wide top" {
		t.Errorf("got %q, expected %q", got, "wide top")
	}
}

// failfs reports a fixed error for every operation.
type failfs struct {
	err error
}

func (f *failfs) Open(path string) (vfs.File, error)       { return nil, f.err }
func (f *failfs) ReadDir(path string) ([]vfs.Entry, error) { return nil, f.err }
func (f *failfs) Stat(path string) (vfs.Entry, error)      { return vfs.Entry{}, f.err }

func TestErrorsAreNotMaskedByFallback(t *testing.T) {
	base := touchfs(t, map[string]string{"/x": "reachable"})
	broken := &failfs{err: fmt.Errorf("%w: /x", vfs.ErrPermission)}

	fs := New()
	fs.Mount("/", base)
	fs.Mount("/", broken)

	// base would find /x, but the later mount's failure is real and
	// must propagate instead of falling through.
	_, err := fs.Open("/x")
	if !errors.Is(err, vfs.ErrPermission) {
		t.Errorf("Open() = %v, expected ErrPermission", err)
	}
}

func TestUnmountRestoresResolution(t *testing.T) {
	a := touchfs(t, map[string]string{"/x": "from a"})
	b := touchfs(t, map[string]string{"/x": "from b"})

	fs := New()
	fs.Mount("/", a)

	before := readAll(t, fs, "/x")

	fs.Mount("/", b)
	if got := readAll(t, fs, "/x"); got != "from b" {
		t.Fatalf("got %q, expected shadowing mount to win", got)
	}

	detached, ok := fs.Unmount("/")
	if !ok {
		t.Fatal("Unmount() found no mount")
	}
	if detached != vfs.FileSystem(b) {
		t.Error("Unmount() detached the wrong backend")
	}

	if got := readAll(t, fs, "/x"); got != before {
		t.Errorf("got %q, expected pre-mount behavior %q", got, before)
	}
}

func TestUnmountLIFOPerPrefix(t *testing.T) {
	a := touchfs(t, nil)
	b := touchfs(t, nil)

	fs := New()
	fs.Mount("/p", a)
	fs.Mount("/p", b)

	detached, ok := fs.Unmount("/p")
	if !ok || detached != vfs.FileSystem(b) {
		t.Error("expected the most recent /p mount first")
	}

	detached, ok = fs.Unmount("/p")
	if !ok || detached != vfs.FileSystem(a) {
		t.Error("expected the remaining /p mount second")
	}

	if _, ok := fs.Unmount("/p"); ok {
		t.Error("expected no mounts left at /p")
	}
}

func TestInvalidPath(t *testing.T) {
	fs := New()
	fs.Mount("/", touchfs(t, nil))

	if _, err := fs.Open("/../escape"); !errors.Is(err, vfs.ErrInvalidPath) {
		t.Errorf("Open() = %v, expected ErrInvalidPath", err)
	}
	if err := fs.Mount("/..", touchfs(t, nil)); !errors.Is(err, vfs.ErrInvalidPath) {
		t.Errorf("Mount() = %v, expected ErrInvalidPath", err)
	}
}

func TestStatAndReadDirFollowSameChain(t *testing.T) {
	lower := touchfs(t, map[string]string{"/d/in-lower": "l"})
	upper := touchfs(t, map[string]string{"/d/in-upper": "u"})

	fs := New()
	fs.Mount("/", lower)
	fs.Mount("/", upper)

	// First mount that has /d answers the listing; no merging.
	entries, err := fs.ReadDir("/d")
	if err != nil {
		t.Fatalf("ReadDir() failed: %v", err)
	}
	if len(entries) != 1 || entries[0].Name != "in-upper" {
		t.Errorf("unexpected entries: %+v", entries)
	}

	// Stat falls through to lower for paths upper lacks.
	entry, err := fs.Stat("/d/in-lower")
	if err != nil {
		t.Fatalf("Stat() failed: %v", err)
	}
	if entry.Size != 1 {
		t.Errorf("unexpected entry: %+v", entry)
	}
}

func TestDiskOverArchivePattern(t *testing.T) {
	// The motivating use: a writable-ish override layer in front of
	// packaged archive content, with fallback for missing files.
	var buf bytes.Buffer
	w := tar.NewWriter(&buf)
	for name, content := range map[string]string{
		"config.json": `{"packaged":true}`,
		"only.txt":    "archive only",
	} {
		if err := w.WriteHeader(&tar.Header{
			Name: name, Typeflag: tar.TypeReg, Mode: 0o644, Size: int64(len(content)),
		}); err != nil {
			t.Fatalf("WriteHeader() failed: %v", err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("Write() failed: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}

	archive, err := tarfs.New(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("tarfs.New() failed: %v", err)
	}

	override := touchfs(t, map[string]string{"/config.json": `{"packaged":false}`})

	fs := New()
	fs.Mount("/res", archive)
	fs.Mount("/res", override)

	if got := readAll(t, fs, "/res/config.json"); got != `{"packaged":false}` {
		t.Errorf("got %q, expected the override content", got)
	}
	if got := readAll(t, fs, "/res/only.txt"); got != "archive only" {
		t.Errorf("got %q, expected fallback to the archive", got)
	}
}

func TestConcurrentMountAndLookup(t *testing.T) {
	base := touchfs(t, map[string]string{"/stable.txt": "stable"})

	fs := New()
	fs.Mount("/", base)

	var wg sync.WaitGroup
	stop := make(chan struct{})

	// Churn the mount table while lookups run.
	wg.Add(1)
	go func() {
		defer wg.Done()
		extra := touchfs(t, map[string]string{"/extra.txt": "extra"})
		for i := 0; i < 100; i++ {
			fs.Mount("/extra", extra)
			fs.Unmount("/extra")
		}
		close(stop)
	}()

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				file, err := fs.Open("/stable.txt")
				if err != nil {
					t.Errorf("Open() failed during concurrent mutation: %v", err)
					return
				}
				data, err := io.ReadAll(file)
				file.Close()
				if err != nil || string(data) != "stable" {
					t.Errorf("read %q, %v during concurrent mutation", data, err)
					return
				}
			}
		}()
	}

	wg.Wait()
}
