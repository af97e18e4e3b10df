// Package watch imports lead files dropped into an inbox directory.
package watch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-qualify/internal/chain"
	"github.com/sells-group/lead-qualify/internal/leadfile"
	"github.com/sells-group/lead-qualify/internal/model"
)

// DefaultDebounce is how long a file must stay quiet before it is imported.
const DefaultDebounce = 2 * time.Second

// Importer creates a batch from rows. *chain.Executor satisfies it.
type Importer interface {
	Import(ctx context.Context, rows []leadfile.Row, opts chain.ImportOptions) (*model.ExecutionResult, error)
}

// Config configures a Watcher.
type Config struct {
	Dir          string
	ProcessedDir string
	FailedDir    string
	Debounce     time.Duration
	Source       string
	// Import is the template for every import; Name is set per file.
	Import chain.ImportOptions
}

// Watcher imports every .csv or .xlsx file that lands in Dir, then moves
// it to ProcessedDir or FailedDir.
type Watcher struct {
	cfg Config
	imp Importer

	mu     sync.Mutex
	timers map[string]*time.Timer
	ready  chan string
}

// New validates cfg and fills in the defaults.
func New(cfg Config, imp Importer) (*Watcher, error) {
	if cfg.Dir == "" {
		return nil, eris.New("watch: dir is required")
	}
	if imp == nil {
		return nil, eris.New("watch: importer is required")
	}
	if cfg.ProcessedDir == "" {
		cfg.ProcessedDir = filepath.Join(cfg.Dir, "processed")
	}
	if cfg.FailedDir == "" {
		cfg.FailedDir = filepath.Join(cfg.Dir, "failed")
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.Source == "" {
		cfg.Source = "watch"
	}
	return &Watcher{
		cfg:    cfg,
		imp:    imp,
		timers: make(map[string]*time.Timer),
		ready:  make(chan string, 64),
	}, nil
}

// IsLeadFile reports whether path looks like an importable lead file.
// Hidden files and office lock files are ignored.
func IsLeadFile(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") || strings.HasPrefix(base, "~$") {
		return false
	}
	switch strings.ToLower(filepath.Ext(base)) {
	case ".csv", ".xlsx":
		return true
	default:
		return false
	}
}

// Run imports files already in Dir, then watches for new ones until ctx
// ends. Files are imported one at a time.
func (w *Watcher) Run(ctx context.Context) error {
	for _, dir := range []string{w.cfg.Dir, w.cfg.ProcessedDir, w.cfg.FailedDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return eris.Wrapf(err, "watch: create %s", dir)
		}
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return eris.Wrap(err, "watch: new watcher")
	}
	defer fw.Close()
	if err := fw.Add(w.cfg.Dir); err != nil {
		return eris.Wrapf(err, "watch: add %s", w.cfg.Dir)
	}

	if err := w.Backfill(ctx); err != nil {
		return err
	}

	zap.L().Info("watch: watching inbox", zap.String("dir", w.cfg.Dir))
	for {
		select {
		case <-ctx.Done():
			w.stopTimers()
			return nil
		case evt, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if evt.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0 && IsLeadFile(evt.Name) {
				w.schedule(evt.Name)
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			zap.L().Warn("watch: watcher error", zap.Error(err))
		case path := <-w.ready:
			if _, err := w.ProcessFile(ctx, path); err != nil {
				zap.L().Error("watch: import failed", zap.String("file", path), zap.Error(err))
			}
		}
	}
}

// Backfill imports every lead file already sitting in Dir.
func (w *Watcher) Backfill(ctx context.Context) error {
	entries, err := os.ReadDir(w.cfg.Dir)
	if err != nil {
		return eris.Wrapf(err, "watch: read %s", w.cfg.Dir)
	}
	for _, e := range entries {
		if ctx.Err() != nil {
			return nil
		}
		path := filepath.Join(w.cfg.Dir, e.Name())
		if e.IsDir() || !IsLeadFile(path) {
			continue
		}
		if _, err := w.ProcessFile(ctx, path); err != nil {
			zap.L().Error("watch: import failed", zap.String("file", path), zap.Error(err))
		}
	}
	return nil
}

// schedule (re)arms the quiet-period timer for path. Editors and copy
// tools write in several steps; only the last event triggers an import.
func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.timers[path]; ok {
		t.Reset(w.cfg.Debounce)
		return
	}
	w.timers[path] = time.AfterFunc(w.cfg.Debounce, func() {
		w.mu.Lock()
		delete(w.timers, path)
		w.mu.Unlock()
		w.ready <- path
	})
}

func (w *Watcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, t := range w.timers {
		t.Stop()
		delete(w.timers, path)
	}
}

// ProcessFile imports one file and moves it out of the inbox. A file that
// cannot be read, or whose import fails outright, goes to FailedDir.
// Partially imported files count as processed; the failed blocks are on
// the batch.
func (w *Watcher) ProcessFile(ctx context.Context, path string) (*model.ExecutionResult, error) {
	if _, err := os.Stat(path); err != nil {
		// Already moved by an earlier event.
		return nil, nil
	}
	log := zap.L().With(zap.String("file", path))

	rows, err := leadfile.ReadFile(ctx, path)
	if err != nil {
		return nil, w.reject(path, eris.Wrap(err, "watch: read file"))
	}
	if len(rows) == 0 {
		return nil, w.reject(path, eris.New("watch: file has no rows"))
	}

	opts := w.cfg.Import
	opts.Source = w.cfg.Source
	opts.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	res, err := w.imp.Import(ctx, rows, opts)
	if err != nil {
		return nil, w.reject(path, eris.Wrap(err, "watch: import"))
	}
	if res.Succeeded == 0 {
		return res, w.reject(path, eris.Errorf("watch: no rows imported into %s", res.BatchID))
	}

	dest, err := move(path, w.cfg.ProcessedDir)
	if err != nil {
		return res, err
	}
	log.Info("watch: file imported",
		zap.String("batch_id", res.BatchID),
		zap.Int("succeeded", res.Succeeded),
		zap.Int("failed", res.Failed),
		zap.String("moved_to", dest),
	)
	return res, nil
}

func (w *Watcher) reject(path string, cause error) error {
	if _, err := move(path, w.cfg.FailedDir); err != nil {
		zap.L().Warn("watch: move to failed dir", zap.String("file", path), zap.Error(err))
	}
	return cause
}

// move renames path into dir, prefixing a timestamp when the name is taken.
func move(path, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", eris.Wrapf(err, "watch: create %s", dir)
	}
	dest := filepath.Join(dir, filepath.Base(path))
	if _, err := os.Stat(dest); err == nil {
		dest = filepath.Join(dir, time.Now().UTC().Format("20060102T150405")+"_"+filepath.Base(path))
	}
	if err := os.Rename(path, dest); err != nil {
		return "", eris.Wrapf(err, "watch: move %s", path)
	}
	return dest, nil
}
