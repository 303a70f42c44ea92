// Command minifs inspects virtual filesystems assembled from disk
// directories and archives.
//
// Backends are mounted from repeated --mount flags or a YAML
// manifest, composed into an overlay, and queried with one of the
// subcommands:
//
//	minifs --mount /res=assets.tar.gz ls /res
//	minifs --mount /=./static --mount /=patch.zip cat /index.html
//	minifs --manifest mounts.yaml tree /
//	minifs --mount /res=assets.tar sum /res/logo.png
//
// The backend kind is detected from the mount target: a directory
// mounts as a disk backend; .tar, .tar.gz/.tgz, .tar.zst, .tar.lz4
// and .zip files mount as archive backends. Mounts listed later
// shadow earlier ones at overlapping prefixes.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"github.com/zeebo/blake3"
	"gopkg.in/yaml.v3"

	"minifs/pkg/vfs"
	"minifs/pkg/vfs/diskfs"
	"minifs/pkg/vfs/overlayfs"
	"minifs/pkg/vfs/tarfs"
	"minifs/pkg/vfs/zipfs"
)

// manifest is the YAML mount table format:
//
//	mounts:
//	  - prefix: /res
//	    target: assets.tar.gz
type manifest struct {
	Mounts []mountSpec `yaml:"mounts"`
}

type mountSpec struct {
	Prefix string `yaml:"prefix"`
	Target string `yaml:"target"`
}

func main() {
	mountFlags := pflag.StringArrayP("mount", "m", nil, "mount in prefix=target form (repeatable)")
	manifestPath := pflag.String("manifest", "", "YAML file listing mounts")
	verbose := pflag.BoolP("verbose", "v", false, "enable debug logging")
	pflag.Usage = usage
	pflag.Parse()

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	args := pflag.Args()
	if len(args) != 2 {
		usage()
		os.Exit(2)
	}
	command, path := args[0], args[1]

	specs, err := collectMounts(*mountFlags, *manifestPath)
	if err != nil {
		fatal(err)
	}
	if len(specs) == 0 {
		fatal(fmt.Errorf("no mounts given; use --mount or --manifest"))
	}

	root := overlayfs.New()
	var closers []io.Closer
	defer func() {
		for _, c := range closers {
			c.Close()
		}
	}()

	for _, spec := range specs {
		backend, closer, err := openBackend(spec.Target)
		if err != nil {
			fatal(fmt.Errorf("mount %s: %w", spec.Prefix, err))
		}
		if closer != nil {
			closers = append(closers, closer)
		}
		if err := root.Mount(spec.Prefix, backend); err != nil {
			fatal(fmt.Errorf("mount %s: %w", spec.Prefix, err))
		}
		slog.Debug("mounted", "prefix", spec.Prefix, "target", spec.Target)
	}

	switch command {
	case "ls":
		err = runList(root, path)
	case "cat":
		err = runCat(root, path)
	case "sum":
		err = runSum(root, path)
	case "tree":
		err = runTree(root, path)
	default:
		fatal(fmt.Errorf("unknown command %q", command))
	}
	if err != nil {
		fatal(err)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `usage: minifs [flags] <command> <path>

commands:
  ls    <path>   list the direct children of a directory
  cat   <path>   write a file's bytes to stdout
  sum   <path>   print the BLAKE3 digest of a file
  tree  <path>   print the subtree rooted at a path

flags:
`)
	pflag.PrintDefaults()
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "minifs:", err)
	os.Exit(1)
}

// collectMounts merges manifest mounts with --mount flags; flags are
// appended after the manifest so they shadow it.
func collectMounts(flags []string, manifestPath string) ([]mountSpec, error) {
	var specs []mountSpec

	if manifestPath != "" {
		data, err := os.ReadFile(manifestPath)
		if err != nil {
			return nil, fmt.Errorf("manifest: %w", err)
		}
		var m manifest
		if err := yaml.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("manifest %s: %w", manifestPath, err)
		}
		specs = append(specs, m.Mounts...)
	}

	for _, flag := range flags {
		prefix, target, ok := strings.Cut(flag, "=")
		if !ok {
			return nil, fmt.Errorf("bad --mount %q: want prefix=target", flag)
		}
		specs = append(specs, mountSpec{Prefix: prefix, Target: target})
	}

	return specs, nil
}

// openBackend opens target as a backend, detecting its kind. The
// returned closer, when non-nil, owns the archive's file handle and
// must outlive the backend.
func openBackend(target string) (vfs.FileSystem, io.Closer, error) {
	info, err := os.Stat(target)
	if err != nil {
		return nil, nil, err
	}
	if info.IsDir() {
		return diskfs.New(target), nil, nil
	}

	file, err := os.Open(target)
	if err != nil {
		return nil, nil, err
	}

	var backend vfs.FileSystem
	switch {
	case strings.HasSuffix(target, ".tar"):
		backend, err = tarfs.New(file, info.Size())
	case strings.HasSuffix(target, ".tar.gz"), strings.HasSuffix(target, ".tgz"):
		backend, err = tarfs.NewGzip(file, info.Size())
	case strings.HasSuffix(target, ".tar.zst"):
		backend, err = tarfs.NewZstd(file, info.Size())
	case strings.HasSuffix(target, ".tar.lz4"):
		backend, err = tarfs.NewLZ4(file, info.Size())
	case strings.HasSuffix(target, ".zip"):
		backend, err = zipfs.New(file, info.Size())
	default:
		err = fmt.Errorf("unrecognized archive type: %s", target)
	}
	if err != nil {
		file.Close()
		return nil, nil, err
	}

	return backend, file, nil
}

func runList(fsys vfs.FileSystem, path string) error {
	entries, err := fsys.ReadDir(path)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.IsDir {
			fmt.Printf("%12s  %s/\n", "-", entry.Name)
			continue
		}
		fmt.Printf("%12d  %s\n", entry.Size, entry.Name)
	}
	return nil
}

func runCat(fsys vfs.FileSystem, path string) error {
	file, err := fsys.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	_, err = io.Copy(os.Stdout, file)
	return err
}

func runSum(fsys vfs.FileSystem, path string) error {
	file, err := fsys.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	hasher := blake3.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return err
	}

	fmt.Printf("%x  %s\n", hasher.Sum(nil), path)
	return nil
}

func runTree(fsys vfs.FileSystem, path string) error {
	return vfs.Walk(fsys, path, func(p string, entry vfs.Entry, err error) error {
		if err != nil {
			return err
		}
		depth := strings.Count(strings.TrimPrefix(p, vfs.Clean(path)), "/")
		name := entry.Name
		if entry.IsDir {
			name += "/"
		}
		fmt.Printf("%s%s\n", strings.Repeat("  ", depth), name)
		return nil
	})
}
