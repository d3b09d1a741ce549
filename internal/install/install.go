// Licensed Materials - Property of IBM
// Copyright IBM Corp. 2023.
// US Government Users Restricted Rights - Use, duplication or disclosure restricted by GSA ADP Schedule Contract with IBM Corp.

// Package install moves built package sandboxes into the shared install
// prefix and takes them out again, keeping the status database and the
// per-package listfiles in step with the filesystem.
package install

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/quay/zlog"

	"github.com/zosopentools/stevedore/internal/control"
	"github.com/zosopentools/stevedore/internal/status"
)

// Result classifies one install attempt.
type Result uint8

const (
	RESULT_SUCCESS Result = iota
	RESULT_FILE_CONFLICTS
)

// Control files never ship into the prefix.
func isControlFile(name string) bool {
	lower := strings.ToLower(name)
	return lower == "control" || lower == "build_info"
}

// packageFiles lists the prefix-relative regular files a sandbox would
// install, sorted. Control files are excluded.
func packageFiles(pkgDir string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(pkgDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(pkgDir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if !strings.Contains(rel, "/") && isControlFile(rel) {
			return nil
		}
		out = append(out, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("unable to enumerate package files: %w", err)
	}
	sort.Strings(out)
	return out, nil
}

// installedFilesFor merges every installed listfile of one triplet into
// a single sorted list of prefix-relative files, triplet prefix and
// directory entries dropped.
func installedFilesFor(db *status.Database, triplet control.Triplet) ([]string, error) {
	all, err := db.InstalledFiles()
	if err != nil {
		return nil, err
	}
	prefix := string(triplet) + "/"
	var out []string
	for _, pf := range all {
		if pf.Paragraph.Package.Spec.Triplet != triplet {
			continue
		}
		for _, entry := range pf.Files {
			if strings.HasSuffix(entry, "/") {
				continue
			}
			out = append(out, strings.TrimPrefix(entry, prefix))
		}
	}
	sort.Strings(out)
	return out, nil
}

// intersect walks two sorted lists and returns their common entries.
func intersect(a, b []string) []string {
	var out []string
	for len(a) > 0 && len(b) > 0 {
		switch {
		case a[0] < b[0]:
			a = a[1:]
		case a[0] > b[0]:
			b = b[1:]
		default:
			out = append(out, a[0])
			a = a[1:]
			b = b[1:]
		}
	}
	return out
}

func copyFile(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// copyTree mirrors the sandbox under installedRoot and returns the
// listfile entries it produced. Every entry carries the triplet prefix;
// the list opens with the bare triplet directory and directory entries
// keep a trailing slash.
func copyTree(pkgDir, installedRoot string, triplet control.Triplet) ([]string, error) {
	entries := []string{string(triplet) + "/"}
	err := filepath.WalkDir(pkgDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(pkgDir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if !strings.Contains(rel, "/") && isControlFile(rel) {
			return nil
		}
		target := filepath.Join(installedRoot, string(triplet), filepath.FromSlash(rel))
		listed := string(triplet) + "/" + rel
		if d.IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			entries = append(entries, listed+"/")
			return nil
		}
		if err := copyFile(path, target); err != nil {
			return err
		}
		entries = append(entries, listed)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("unable to install package files: %w", err)
	}
	sort.Strings(entries)
	return entries, nil
}

func statusRecords(bcf *control.BinaryControlFile, want control.Want, state control.InstallState) []control.StatusParagraph {
	out := []control.StatusParagraph{{Package: bcf.Core, Want: want, State: state}}
	for _, f := range bcf.Features {
		out = append(out, control.StatusParagraph{Package: f, Want: want, State: state})
	}
	return out
}

// InstallPackage copies a built sandbox into the prefix. It first
// intersects the sandbox's files against every listfile already
// installed for the triplet; any overlap aborts the install before a
// single file or status record is touched, and the conflicting paths
// come back with the result.
func InstallPackage(ctx context.Context, pkgDir, installedRoot string, bcf *control.BinaryControlFile, db *status.Database) (Result, []string, error) {
	ctx = zlog.ContextWithValues(ctx, "component", "install", "spec", bcf.Core.Spec.String())

	pkgFiles, err := packageFiles(pkgDir)
	if err != nil {
		return 0, nil, err
	}
	installed, err := installedFilesFor(db, bcf.Core.Spec.Triplet)
	if err != nil {
		return 0, nil, err
	}
	if conflicts := intersect(pkgFiles, installed); len(conflicts) > 0 {
		zlog.Warn(ctx).
			Int("count", len(conflicts)).
			Msg("package files conflict with already installed files")
		return RESULT_FILE_CONFLICTS, conflicts, nil
	}

	if err := db.WriteUpdate(statusRecords(bcf, control.WANT_INSTALL, control.STATE_HALF_INSTALLED)...); err != nil {
		return 0, nil, err
	}

	entries, err := copyTree(pkgDir, installedRoot, bcf.Core.Spec.Triplet)
	if err != nil {
		return 0, nil, err
	}
	if err := db.WriteListfile(&bcf.Core, entries); err != nil {
		return 0, nil, err
	}

	if err := db.WriteUpdate(statusRecords(bcf, control.WANT_INSTALL, control.STATE_INSTALLED)...); err != nil {
		return 0, nil, err
	}

	zlog.Info(ctx).
		Int("files", len(pkgFiles)).
		Msg("package installed")
	return RESULT_SUCCESS, nil, nil
}

// specRecords gathers the live core and feature records for one spec,
// core first.
func specRecords(db *status.Database, spec control.PackageSpec) []control.StatusParagraph {
	var out []control.StatusParagraph
	for _, sp := range db.All() {
		if sp.Package.Spec == spec {
			out = append(out, sp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Package.Feature < out[j].Package.Feature
	})
	return out
}

// RemovePackage deletes one package's files from the prefix and purges
// its status records, features included. Listfile entries drive the
// deletion: files go first, then directories deepest first, a directory
// surviving when another package still owns files inside it.
func RemovePackage(ctx context.Context, installedRoot string, spec control.PackageSpec, db *status.Database) error {
	ctx = zlog.ContextWithValues(ctx, "component", "install", "spec", spec.String())

	records := specRecords(db, spec)
	if len(records) == 0 {
		return fmt.Errorf("package %v is not installed", spec)
	}
	core := records[0]
	if core.Package.Feature != "" {
		return fmt.Errorf("package %v has feature records but no core record", spec)
	}

	marked := make([]control.StatusParagraph, len(records))
	for i, sp := range records {
		sp.Want = control.WANT_PURGE
		sp.State = control.STATE_HALF_INSTALLED
		marked[i] = sp
	}
	if err := db.WriteUpdate(marked...); err != nil {
		return err
	}

	entries, err := db.ReadListfile(&core.Package)
	if err != nil {
		return err
	}

	var dirs []string
	for _, entry := range entries {
		if strings.HasSuffix(entry, "/") {
			dirs = append(dirs, strings.TrimSuffix(entry, "/"))
			continue
		}
		path := filepath.Join(installedRoot, filepath.FromSlash(entry))
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			zlog.Warn(ctx).
				Str("path", entry).
				Err(err).
				Msg("unable to delete installed file")
		}
	}

	// Deepest directories first, so children empty out before parents.
	sort.Sort(sort.Reverse(sort.StringSlice(dirs)))
	for _, dir := range dirs {
		path := filepath.Join(installedRoot, filepath.FromSlash(dir))
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			// Still holds files owned by another package.
			continue
		}
	}

	if err := db.RemoveListfile(&core.Package); err != nil {
		return err
	}

	purged := make([]control.StatusParagraph, len(records))
	for i, sp := range records {
		sp.Want = control.WANT_PURGE
		sp.State = control.STATE_NOT_INSTALLED
		purged[i] = sp
	}
	if err := db.WriteUpdate(purged...); err != nil {
		return err
	}

	zlog.Info(ctx).Msg("package removed")
	return nil
}
