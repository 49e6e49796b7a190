package asset

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/specialistvlad/assetgraph/internal/ctxlog"
	"github.com/specialistvlad/assetgraph/internal/fsutil"
)

// Database is the set of assets tracked under one project root. Paths are
// kept absolute. It is safe for concurrent use.
type Database struct {
	root string

	mu      sync.RWMutex
	records map[string]Record
}

// NewDatabase creates an empty database rooted at root.
func NewDatabase(root string) *Database {
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	return &Database{root: root, records: make(map[string]Record)}
}

// Root returns the absolute project root.
func (d *Database) Root() string {
	return d.root
}

// Resolve turns a project-relative path into an absolute one.
func (d *Database) Resolve(path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(d.root, path)
}

// Scan walks the project root and fingerprints every visible file,
// replacing the current contents.
func (d *Database) Scan(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Scanning asset root.", "root", d.root)

	files, err := fsutil.FindFiles(d.root, func(string, fs.DirEntry) bool { return true })
	if err != nil {
		return fmt.Errorf("scan asset root %s: %w", d.root, err)
	}

	records := make(map[string]Record, len(files))
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		rec, err := readRecord(path)
		if err != nil {
			return err
		}
		records[rec.Path] = rec
	}

	d.mu.Lock()
	d.records = records
	d.mu.Unlock()

	logger.Info("Asset root scanned.", "root", d.root, "assets", len(records))
	return nil
}

// Put inserts or replaces a record. Relative paths are resolved against
// the root.
func (d *Database) Put(rec Record) {
	rec.Path = d.Resolve(rec.Path)
	d.mu.Lock()
	defer d.mu.Unlock()
	d.records[rec.Path] = rec
}

// Delete removes a record by path.
func (d *Database) Delete(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.records, path)
}

// deleteTree removes path and, when it named a directory, everything below it.
func (d *Database) deleteTree(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for p := range d.records {
		if fsutil.Within(path, p) {
			delete(d.records, p)
		}
	}
}

// Get returns the record stored for path.
func (d *Database) Get(path string) (Record, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	rec, ok := d.records[d.Resolve(path)]
	return rec, ok
}

// Len returns the number of tracked assets.
func (d *Database) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.records)
}

// Under returns every record at or below root, sorted by path.
func (d *Database) Under(root string) Group {
	root = d.Resolve(root)

	d.mu.RLock()
	out := make(Group, 0)
	for path, rec := range d.records {
		if fsutil.Within(root, path) {
			out = append(out, rec)
		}
	}
	d.mu.RUnlock()

	slices.SortFunc(out, func(a, b Record) int {
		switch {
		case a.Path < b.Path:
			return -1
		case a.Path > b.Path:
			return 1
		}
		return 0
	})
	return out
}

// ApplyChanges brings the database in line with an import notification.
// moved[i] is the new location of movedFrom[i].
func (d *Database) ApplyChanges(ctx context.Context, imported, deleted, moved, movedFrom []string) error {
	if len(moved) != len(movedFrom) {
		return fmt.Errorf("moved and movedFrom differ in length: %d != %d", len(moved), len(movedFrom))
	}
	logger := ctxlog.FromContext(ctx)

	var errs []error
	refresh := func(path string) {
		path = d.Resolve(path)
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			files, err := fsutil.FindFiles(path, func(string, fs.DirEntry) bool { return true })
			if err != nil {
				errs = append(errs, err)
				return
			}
			for _, f := range files {
				if rec, err := readRecord(f); err == nil {
					d.Put(rec)
				}
			}
			return
		}
		rec, err := readRecord(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			d.deleteTree(path)
		case err != nil:
			errs = append(errs, err)
		default:
			d.Put(rec)
		}
	}

	for _, path := range deleted {
		d.deleteTree(d.Resolve(path))
	}
	for i := range moved {
		d.deleteTree(d.Resolve(movedFrom[i]))
		refresh(moved[i])
	}
	for _, path := range imported {
		refresh(path)
	}

	logger.Debug("Asset changes applied.",
		"imported", len(imported), "deleted", len(deleted), "moved", len(moved), "assets", d.Len())
	return errors.Join(errs...)
}

func readRecord(path string) (Record, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Record{}, err
	}
	if info.IsDir() {
		return Record{}, fmt.Errorf("%s is a directory", path)
	}
	fp, err := FingerprintFile(path)
	if err != nil {
		return Record{}, err
	}
	return NewRecord(path, fp), nil
}

// FingerprintFile hashes the content of a file.
func FingerprintFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	d := xxhash.New()
	if _, err := io.Copy(d, f); err != nil {
		return "", fmt.Errorf("fingerprint %s: %w", path, err)
	}
	return strconv.FormatUint(d.Sum64(), 16), nil
}

// FingerprintBytes hashes an in-memory payload the same way FingerprintFile
// hashes a file.
func FingerprintBytes(b []byte) string {
	return strconv.FormatUint(xxhash.Sum64(b), 16)
}
