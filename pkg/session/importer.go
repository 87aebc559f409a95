package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"corvus-hq/rookery/pkg/store"
	"corvus-hq/rookery/pkg/telemetry/logging"
)

// importedSuffix marks drop files that were already processed.
const importedSuffix = ".imported"

// importSettleDelay gives the writing process time to finish before the
// file is read. Drop files are small; partial writes settle quickly.
const importSettleDelay = 200 * time.Millisecond

// dropFile is the accepted drop-file shape. JSON is valid YAML, so one
// decoder covers both.
type dropFile struct {
	Sessions []dropEntry `yaml:"sessions"`
}

// dropEntry is one cookie credential in a drop file.
type dropEntry struct {
	Cookies  string            `yaml:"cookies"`
	Metadata map[string]string `yaml:"metadata"`
}

// Importer watches a drop directory for cookie files and imports their
// entries into the pool. It gives operators a no-API path to add sessions:
// write a YAML or JSON file into the directory and it is picked up, each
// entry inserted (duplicates skipped), and the file renamed with an
// .imported suffix.
type Importer struct {
	pool   *Pool
	dir    string
	logger *logging.Logger

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewImporter builds an importer for the given drop directory.
func NewImporter(pool *Pool, dir string, logger *logging.Logger) *Importer {
	return &Importer{
		pool:   pool,
		dir:    dir,
		logger: logger,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start processes files already present in the directory, then watches for
// new ones until the context is canceled or Stop is called. The watch loop
// runs in its own goroutine.
func (im *Importer) Start(ctx context.Context) error {
	im.mu.Lock()
	defer im.mu.Unlock()

	if im.running {
		return nil
	}

	if err := os.MkdirAll(im.dir, 0o750); err != nil {
		return fmt.Errorf("creating import directory: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating import watcher: %w", err)
	}
	if err := watcher.Add(im.dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watching import directory: %w", err)
	}
	im.watcher = watcher
	im.running = true

	im.scanExisting(ctx)

	go im.watch(ctx)

	im.logger.Info("cookie importer started", "dir", im.dir)
	return nil
}

// Stop halts the watch loop and waits for it to drain.
func (im *Importer) Stop() {
	im.mu.Lock()
	if !im.running {
		im.mu.Unlock()
		return
	}
	im.running = false
	close(im.stopCh)
	im.mu.Unlock()

	<-im.doneCh
	im.logger.Info("cookie importer stopped")
}

// scanExisting imports files dropped before the watcher started.
func (im *Importer) scanExisting(ctx context.Context) {
	entries, err := os.ReadDir(im.dir)
	if err != nil {
		im.logger.Warn("import directory scan failed", "dir", im.dir, "error", err)
		return
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		im.maybeImport(ctx, filepath.Join(im.dir, e.Name()))
	}
}

// watch is the event loop.
func (im *Importer) watch(ctx context.Context) {
	defer close(im.doneCh)
	defer im.watcher.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case <-im.stopCh:
			return
		case event, ok := <-im.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			time.Sleep(importSettleDelay)
			im.maybeImport(ctx, event.Name)
		case err, ok := <-im.watcher.Errors:
			if !ok {
				return
			}
			im.logger.Warn("import watcher error", "error", err)
		}
	}
}

// maybeImport imports one drop file if it is eligible.
func (im *Importer) maybeImport(ctx context.Context, path string) {
	name := filepath.Base(path)
	if strings.HasPrefix(name, ".") || strings.HasSuffix(name, importedSuffix) {
		return
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml", ".json":
	default:
		return
	}
	if info, err := os.Stat(path); err != nil || info.IsDir() {
		return
	}

	imported, skipped, err := im.importFile(ctx, path)
	if err != nil {
		im.logger.Error("cookie import failed", "file", name, "error", err)
		return
	}

	if err := os.Rename(path, path+importedSuffix); err != nil {
		im.logger.Warn("imported file rename failed", "file", name, "error", err)
	}
	im.logger.Info("cookie drop file imported",
		"file", name, "imported", imported, "skipped", skipped)
}

// importFile parses one drop file and inserts its entries. Duplicates are
// skipped, not errors.
func (im *Importer) importFile(ctx context.Context, path string) (imported, skipped int, err error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, 0, err
	}

	var file dropFile
	if err := yaml.Unmarshal(raw, &file); err != nil || len(file.Sessions) == 0 {
		// A bare list of entries is also accepted.
		var list []dropEntry
		if listErr := yaml.Unmarshal(raw, &list); listErr != nil {
			if err == nil {
				err = listErr
			}
			return 0, 0, fmt.Errorf("parsing drop file: %w", err)
		}
		file.Sessions = list
	}

	for _, entry := range file.Sessions {
		cookie := strings.TrimSpace(entry.Cookies)
		if cookie == "" {
			skipped++
			continue
		}
		if _, err := im.pool.Add(ctx, cookie, entry.Metadata); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				skipped++
				continue
			}
			return imported, skipped, err
		}
		imported++
	}
	return imported, skipped, nil
}
