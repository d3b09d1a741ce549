// Licensed Materials - Property of IBM
// Copyright IBM Corp. 2023.
// US Government Users Restricted Rights - Use, duplication or disclosure restricted by GSA ADP Schedule Contract with IBM Corp.

// Package status maintains the installed-package database: an append-only
// journal of status paragraphs compacted into a single status file at
// load time. Updates are numbered files under updates/; a record in a
// later update supersedes earlier records with the same key.
package status

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/zosopentools/stevedore/internal/control"
	"github.com/zosopentools/stevedore/internal/paragraph"
)

const (
	statusFile = "status"
	updatesDir = "updates"
	infoDir    = "info"

	// Update files are staged under "incomplete.NNNNNN", then renamed to
	// their bare number. A crash between the two steps leaves only the
	// stage file, which load deletes.
	incompletePrefix = "incomplete."
)

// pgkey identifies one logical record. Feature is empty for the core
// package.
type pgkey struct {
	Name    string
	Triplet control.Triplet
	Feature string
}

func keyOf(sp *control.StatusParagraph) pgkey {
	return pgkey{
		Name:    sp.Package.Spec.Name,
		Triplet: sp.Package.Spec.Triplet,
		Feature: sp.Package.Feature,
	}
}

// Database is the loaded status database for one install prefix. It is
// not safe for concurrent use.
type Database struct {
	root  string
	index map[pgkey]control.StatusParagraph
	next  int
}

// replay folds a sequence of status paragraphs into the latest-wins
// index. Terminal purge records are dropped so compaction converges.
func replay(index map[pgkey]control.StatusParagraph, pghs []control.StatusParagraph) {
	for _, sp := range pghs {
		key := keyOf(&sp)
		if sp.Want == control.WANT_PURGE && sp.State == control.STATE_NOT_INSTALLED {
			delete(index, key)
			continue
		}
		index[key] = sp
	}
}

func parseStatusFile(path string) ([]control.StatusParagraph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	pghs, err := paragraph.Parse(data, path)
	if err != nil {
		return nil, err
	}
	out := make([]control.StatusParagraph, 0, len(pghs))
	for _, pgh := range pghs {
		sp, err := control.ParseStatusParagraph(path, pgh)
		if err != nil {
			return nil, err
		}
		out = append(out, sp)
	}
	return out, nil
}

// Load reads the database under dir (the installed/vcpkg directory),
// applies any pending update files in numeric order, and compacts the
// result back into the status file before deleting the applied updates.
// A missing directory is an empty database.
func Load(dir string) (*Database, error) {
	db := &Database{
		root:  dir,
		index: make(map[pgkey]control.StatusParagraph),
		next:  1,
	}

	if err := os.MkdirAll(filepath.Join(dir, updatesDir), 0o755); err != nil {
		return nil, fmt.Errorf("unable to prepare status database: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(dir, infoDir), 0o755); err != nil {
		return nil, fmt.Errorf("unable to prepare status database: %w", err)
	}

	base, err := parseStatusFile(filepath.Join(dir, statusFile))
	if err != nil {
		return nil, err
	}
	replay(db.index, base)

	entries, err := os.ReadDir(filepath.Join(dir, updatesDir))
	if err != nil {
		return nil, err
	}

	type update struct {
		seq  int
		name string
	}
	var updates []update
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.HasPrefix(entry.Name(), incompletePrefix) {
			// Leftover stage file from a crash mid-journal.
			if err := os.Remove(filepath.Join(dir, updatesDir, entry.Name())); err != nil {
				return nil, fmt.Errorf("unable to clear stage file: %w", err)
			}
			continue
		}
		seq, err := strconv.Atoi(entry.Name())
		if err != nil {
			// Strays are not part of the log.
			continue
		}
		updates = append(updates, update{seq: seq, name: entry.Name()})
	}
	sort.Slice(updates, func(i, j int) bool { return updates[i].seq < updates[j].seq })

	for _, upd := range updates {
		pghs, err := parseStatusFile(filepath.Join(dir, updatesDir, upd.name))
		if err != nil {
			return nil, err
		}
		replay(db.index, pghs)
		if upd.seq >= db.next {
			db.next = upd.seq + 1
		}
	}

	if err := db.compact(); err != nil {
		return nil, err
	}
	for _, upd := range updates {
		if err := os.Remove(filepath.Join(dir, updatesDir, upd.name)); err != nil {
			return nil, err
		}
	}
	db.next = 1

	return db, nil
}

// sorted returns the current records ordered by name, triplet, feature.
func (db *Database) sorted() []control.StatusParagraph {
	out := make([]control.StatusParagraph, 0, len(db.index))
	for _, sp := range db.index {
		out = append(out, sp)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := keyOf(&out[i]), keyOf(&out[j])
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		if a.Triplet != b.Triplet {
			return a.Triplet < b.Triplet
		}
		return a.Feature < b.Feature
	})
	return out
}

func serializeParagraphs(pghs []control.StatusParagraph) []byte {
	out := make([]paragraph.Paragraph, 0, len(pghs))
	for i := range pghs {
		out = append(out, pghs[i].Paragraph())
	}
	return paragraph.SerializeMany(out)
}

// compact rewrites the status file from the in-memory index via a
// temporary file and rename.
func (db *Database) compact() error {
	path := filepath.Join(db.root, statusFile)
	tmp := path + "-new"
	if err := os.WriteFile(tmp, serializeParagraphs(db.sorted()), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// WriteUpdate journals the given records as one numbered update file and
// applies them to the in-memory view. The file is fully written and
// synced under a stage name before the rename publishes it.
func (db *Database) WriteUpdate(pghs ...control.StatusParagraph) error {
	name := fmt.Sprintf("%06d", db.next)
	stage := filepath.Join(db.root, updatesDir, incompletePrefix+name)
	if err := writeSynced(stage, serializeParagraphs(pghs)); err != nil {
		return fmt.Errorf("unable to journal status update: %w", err)
	}
	final := filepath.Join(db.root, updatesDir, name)
	if err := os.Rename(stage, final); err != nil {
		return fmt.Errorf("unable to journal status update: %w", err)
	}
	db.next++
	replay(db.index, pghs)
	return nil
}

func writeSynced(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Find returns the latest record for (name, triplet, feature), feature
// empty meaning the core package, or nil when none exists.
func (db *Database) Find(name string, triplet control.Triplet, feature string) *control.StatusParagraph {
	if feature == control.CoreFeature {
		feature = ""
	}
	sp, ok := db.index[pgkey{Name: name, Triplet: triplet, Feature: feature}]
	if !ok {
		return nil
	}
	return &sp
}

// FindInstalled returns the record only when it reports a completed
// install.
func (db *Database) FindInstalled(name string, triplet control.Triplet, feature string) *control.StatusParagraph {
	sp := db.Find(name, triplet, feature)
	if sp == nil || !sp.IsInstalled() {
		return nil
	}
	return sp
}

// InstalledPackages returns every record in a terminal installed state,
// sorted by name, triplet, feature.
func (db *Database) InstalledPackages() []control.StatusParagraph {
	var out []control.StatusParagraph
	for _, sp := range db.sorted() {
		if sp.IsInstalled() {
			out = append(out, sp)
		}
	}
	return out
}

// All returns every live record, sorted.
func (db *Database) All() []control.StatusParagraph {
	return db.sorted()
}

// ListfilePath returns the path of the listfile recording the files a
// package installed into the prefix.
func (db *Database) ListfilePath(bp *control.BinaryParagraph) string {
	return filepath.Join(db.root, infoDir, bp.FullStem()+".list")
}

// PackageFiles pairs an installed record with the prefix-relative paths
// its listfile names.
type PackageFiles struct {
	Paragraph control.StatusParagraph
	Files     []string
}

// InstalledFiles reads the listfile of every fully installed core
// package. Directory entries carry a trailing slash.
func (db *Database) InstalledFiles() ([]PackageFiles, error) {
	var out []PackageFiles
	for _, sp := range db.InstalledPackages() {
		if sp.Package.Feature != "" {
			// Feature records share the core package's listfile.
			continue
		}
		files, err := db.ReadListfile(&sp.Package)
		if err != nil {
			return nil, err
		}
		out = append(out, PackageFiles{Paragraph: sp, Files: files})
	}
	return out, nil
}

// ReadListfile returns the sorted prefix-relative paths recorded for a
// package, or nil when no listfile exists.
func (db *Database) ReadListfile(bp *control.BinaryParagraph) ([]string, error) {
	data, err := os.ReadFile(db.ListfilePath(bp))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var files []string
	for _, line := range strings.Split(string(data), "\n") {
		if line = strings.TrimRight(line, "\r"); line != "" {
			files = append(files, line)
		}
	}
	sort.Strings(files)
	return files, nil
}

// WriteListfile records the sorted prefix-relative paths a package
// installed.
func (db *Database) WriteListfile(bp *control.BinaryParagraph, files []string) error {
	sorted := make([]string, len(files))
	copy(sorted, files)
	sort.Strings(sorted)
	var sb strings.Builder
	for _, f := range sorted {
		sb.WriteString(f)
		sb.WriteByte('\n')
	}
	return os.WriteFile(db.ListfilePath(bp), []byte(sb.String()), 0o644)
}

// RemoveListfile deletes a package's listfile if present.
func (db *Database) RemoveListfile(bp *control.BinaryParagraph) error {
	err := os.Remove(db.ListfilePath(bp))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
