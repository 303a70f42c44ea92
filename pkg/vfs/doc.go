// Package vfs provides a read-only Virtual File System (VFS) abstraction
// with support for multiple storage backends: disk directories (diskfs),
// in-memory stores (memfs), tar archives with optional gzip/zstd/lz4
// compression (tarfs), and zip archives (zipfs).
//
// Backends implement the FileSystem interface and can be composed with
// the overlayfs package, which mounts backends under path prefixes and
// resolves lookups across them with most-recent-mount-wins semantics.
//
// # Usage
//
// Create a backend and use it through the vfs.FileSystem interface,
// or stack several behind an overlay:
//
//	disk := diskfs.New("/srv/assets")
//	pack, err := tarfs.NewGzip(archive, size)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	root := overlayfs.New()
//	root.Mount("/res", pack) // packaged defaults
//	root.Mount("/res", disk) // disk files shadow the archive
//
//	file, err := root.Open("/res/config.json")
//
// All paths are slash-separated and interpreted as absolute within the
// filesystem they are handed to. Errors are classified into the
// sentinel values in errors.go and should be tested with errors.Is.
package vfs
