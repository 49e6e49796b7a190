// Package watcher turns file system events below a folder into batched
// asset change notifications. Events are debounced: a batch is delivered
// once no new event arrived for the debounce window.
package watcher

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/specialistvlad/assetgraph/internal/ctxlog"
	"github.com/specialistvlad/assetgraph/internal/fsutil"
)

// Op is the kind of a file change.
type Op int

const (
	OpCreate Op = iota
	OpWrite
	OpRemove
	OpRename
)

// String returns the string representation of the operation.
func (op Op) String() string {
	switch op {
	case OpCreate:
		return "create"
	case OpWrite:
		return "write"
	case OpRemove:
		return "remove"
	case OpRename:
		return "rename"
	default:
		return "unknown"
	}
}

// Change is one observed file event.
type Change struct {
	Path string
	Op   Op
	Time time.Time
}

// ChangeSet is a debounced batch in the shape the asset database and the
// controller consume. Moved[i] is the new location of MovedFrom[i].
type ChangeSet struct {
	Imported  []string
	Deleted   []string
	Moved     []string
	MovedFrom []string
}

// Len returns the number of paths in the set.
func (cs ChangeSet) Len() int {
	return len(cs.Imported) + len(cs.Deleted) + len(cs.Moved)
}

// Handler receives every batch, from a single goroutine.
type Handler func(ctx context.Context, changes ChangeSet)

// Options configures a Watcher.
type Options struct {
	// Debounce is how long to wait for more events. Default 200ms.
	Debounce time.Duration
	// Ignore holds glob patterns matched against base names.
	Ignore []string
	// Exclude holds folders whose events are dropped.
	Exclude []string
	// Only restricts events to these paths when set. A path that is
	// renamed is followed to the next file created in its folder.
	Only []string
	// BufferSize is the capacity of the event buffer. Default 1024.
	BufferSize int
}

// DefaultOptions returns the options used for a nil *Options.
func DefaultOptions() Options {
	return Options{
		Debounce:   200 * time.Millisecond,
		Ignore:     []string{"*.swp", "*.tmp", "*~"},
		BufferSize: 1024,
	}
}

// Watcher watches a folder tree.
type Watcher struct {
	root    string
	fsw     *fsnotify.Watcher
	handler Handler
	opts    Options

	changes  chan Change
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	mu       sync.Mutex
	watching bool
	only     []string
	renamed  []string
}

// New creates a watcher for root. Call Start to begin watching.
func New(root string, handler Handler, opts *Options) (*Watcher, error) {
	o := DefaultOptions()
	if opts != nil {
		if opts.Debounce > 0 {
			o.Debounce = opts.Debounce
		}
		if opts.Ignore != nil {
			o.Ignore = opts.Ignore
		}
		if opts.BufferSize > 0 {
			o.BufferSize = opts.BufferSize
		}
		o.Exclude = opts.Exclude
		o.Only = opts.Only
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		root:    root,
		fsw:     fsw,
		handler: handler,
		opts:    o,
		only:    slices.Clone(o.Only),
		changes: make(chan Change, o.BufferSize),
		done:    make(chan struct{}),
	}, nil
}

// Start adds the folder tree and starts delivering batches until ctx is
// cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.watching {
		w.mu.Unlock()
		return nil
	}
	w.watching = true
	w.mu.Unlock()

	if err := w.addRecursive(w.root); err != nil {
		return err
	}
	ctxlog.FromContext(ctx).Debug("👀 Watching folder.", "root", w.root)

	w.wg.Add(2)
	go func() {
		defer w.wg.Done()
		w.processEvents(ctx)
	}()
	go func() {
		defer w.wg.Done()
		w.debounceLoop(ctx)
	}()
	return nil
}

// Stop stops watching and waits for the pending batch to be delivered.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		_ = w.fsw.Close()
		w.wg.Wait()

		w.mu.Lock()
		w.watching = false
		w.mu.Unlock()
	})
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.root && w.ignored(path) {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}

// Only returns the paths events are currently restricted to.
func (w *Watcher) Only() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return slices.Clone(w.only)
}

func (w *Watcher) ignored(path string) bool {
	if w.filtered(path) {
		return true
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.only) > 0 && !slices.Contains(w.only, path)
}

// filtered applies the hidden, Ignore and Exclude rules.
func (w *Watcher) filtered(path string) bool {
	if fsutil.IsHidden(path) {
		return true
	}
	base := filepath.Base(path)
	for _, pattern := range w.opts.Ignore {
		if ok, _ := filepath.Match(pattern, base); ok {
			return true
		}
	}
	for _, dir := range w.opts.Exclude {
		if fsutil.Within(dir, path) {
			return true
		}
	}
	return false
}

// follow keeps the Only list in step with renames: once a tracked path is
// renamed, the next file created in the same folder replaces it. A file
// recreated under the tracked name cancels the pending rename.
func (w *Watcher) follow(event fsnotify.Event) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.only) == 0 {
		return
	}
	switch {
	case event.Has(fsnotify.Rename) && slices.Contains(w.only, event.Name):
		w.renamed = append(w.renamed, event.Name)
	case event.Has(fsnotify.Create) && len(w.renamed) > 0:
		if i := slices.Index(w.renamed, event.Name); i >= 0 {
			w.renamed = slices.Delete(w.renamed, i, i+1)
			return
		}
		old := w.renamed[0]
		if filepath.Dir(old) != filepath.Dir(event.Name) || w.filtered(event.Name) {
			return
		}
		if info, err := os.Stat(event.Name); err != nil || info.IsDir() {
			return
		}
		w.renamed = w.renamed[1:]
		w.only[slices.Index(w.only, old)] = event.Name
	}
}

func (w *Watcher) processEvents(ctx context.Context) {
	logger := ctxlog.FromContext(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() && !w.ignored(event.Name) {
					if err := w.addRecursive(event.Name); err != nil {
						logger.Warn("Cannot watch new folder.", "path", event.Name, "error", err)
					}
				}
			}
			w.follow(event)
			if w.ignored(event.Name) || event.Op == fsnotify.Chmod {
				continue
			}

			change := Change{Path: event.Name, Op: convertOp(event.Op), Time: time.Now()}
			select {
			case w.changes <- change:
			default:
				logger.Warn("File event buffer full, dropping event.", "path", event.Name)
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			logger.Warn("File watcher error.", "error", err)
		}
	}
}

func convertOp(op fsnotify.Op) Op {
	switch {
	case op.Has(fsnotify.Create):
		return OpCreate
	case op.Has(fsnotify.Remove):
		return OpRemove
	case op.Has(fsnotify.Rename):
		return OpRename
	default:
		return OpWrite
	}
}

func (w *Watcher) debounceLoop(ctx context.Context) {
	var (
		batch  []Change
		timer  *time.Timer
		timerC <-chan time.Time
	)
	flush := func() {
		if len(batch) > 0 {
			if cs := Classify(batch); cs.Len() > 0 && w.handler != nil {
				w.handler(ctx, cs)
			}
			batch = batch[:0]
		}
		if timer != nil {
			timer.Stop()
			timer, timerC = nil, nil
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			flush()
			return
		case change := <-w.changes:
			batch = append(batch, change)
			if timer == nil {
				timer = time.NewTimer(w.opts.Debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.opts.Debounce)
			}
		case <-timerC:
			flush()
		}
	}
}

// Classify folds a batch of events into a ChangeSet. Only the last event
// per path counts. A rename followed by a create is read as a move; a
// rename left unpaired is a deletion.
func Classify(changes []Change) ChangeSet {
	last := make(map[string]int, len(changes))
	deduped := make([]Change, 0, len(changes))
	for _, c := range changes {
		if idx, ok := last[c.Path]; ok {
			deduped[idx] = c
			continue
		}
		last[c.Path] = len(deduped)
		deduped = append(deduped, c)
	}

	var (
		cs      ChangeSet
		renamed []string
	)
	for _, c := range deduped {
		switch c.Op {
		case OpRename:
			renamed = append(renamed, c.Path)
		case OpCreate:
			if len(renamed) > 0 {
				cs.Moved = append(cs.Moved, c.Path)
				cs.MovedFrom = append(cs.MovedFrom, renamed[0])
				renamed = renamed[1:]
				continue
			}
			cs.Imported = append(cs.Imported, c.Path)
		case OpWrite:
			cs.Imported = append(cs.Imported, c.Path)
		case OpRemove:
			cs.Deleted = append(cs.Deleted, c.Path)
		}
	}
	cs.Deleted = append(cs.Deleted, renamed...)
	return cs
}
