// Package scanner enumerates candidate regular files for verification.
package scanner

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

// Options controls a filesystem walk.
type Options struct {
	// SameDevice restricts the walk to the device the root lives on,
	// so bind mounts and network filesystems under the root are not
	// descended into.
	SameDevice bool
}

// Walk calls fn with the absolute path of every regular file under
// root, in lexical traversal order. Unreadable directories and entries
// are logged and skipped; only a missing root is an error.
func Walk(root string, opts Options, logger *slog.Logger, fn func(path string) error) error {
	if logger == nil {
		logger = slog.Default()
	}
	root = filepath.Clean(root)

	info, err := os.Lstat(root)
	if err != nil {
		return fmt.Errorf("failed to stat scan root %s: %w", root, err)
	}
	rootDev, devOK := deviceOf(info)
	if opts.SameDevice && !devOK {
		logger.Warn("device ids unavailable, scanning without device boundary", "root", root)
	}

	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			logger.Warn("skipping unreadable entry", "path", path, "error", err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if opts.SameDevice && devOK && path != root {
				di, err := d.Info()
				if err != nil {
					logger.Warn("skipping unstatable directory", "path", path, "error", err)
					return filepath.SkipDir
				}
				if dev, ok := deviceOf(di); ok && dev != rootDev {
					logger.Debug("not crossing device boundary", "path", path)
					return filepath.SkipDir
				}
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		return fn(path)
	})
}
