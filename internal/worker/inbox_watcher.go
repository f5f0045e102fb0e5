package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"campusrag/internal/app"
	"campusrag/internal/model"
)

const defaultSettleDelay = 500 * time.Millisecond

type Uploader interface {
	Upload(ctx context.Context, in app.UploadInput) (*model.Document, error)
}

// InboxWatcher uploads every PDF dropped into a directory on behalf of a
// fixed administrator. Files are removed once the document is recorded;
// files the upload rejects are renamed with a ".rejected" suffix.
type InboxWatcher struct {
	dir        string
	uploader   Uploader
	uploaderID uint
	settle     time.Duration
	logger     *slog.Logger

	watcher *fsnotify.Watcher
	ready   chan string
	mu      sync.Mutex
	timers  map[string]*time.Timer

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewInboxWatcher(dir string, uploader Uploader, uploaderID uint, settle time.Duration, logger *slog.Logger) *InboxWatcher {
	if settle <= 0 {
		settle = defaultSettleDelay
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &InboxWatcher{
		dir:        dir,
		uploader:   uploader,
		uploaderID: uploaderID,
		settle:     settle,
		logger:     logger,
		ready:      make(chan string, 64),
		timers:     make(map[string]*time.Timer),
	}
}

// Start watches the directory and queues the PDFs already present.
func (w *InboxWatcher) Start(ctx context.Context) error {
	if w.cancel != nil {
		return nil
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("create inbox dir failed: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create inbox watcher failed: %w", err)
	}
	if err := watcher.Add(w.dir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch inbox dir failed: %w", err)
	}
	w.watcher = watcher

	watchCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	w.wg.Add(2)
	go w.watch(watchCtx)
	go w.drain(watchCtx)

	entries, err := os.ReadDir(w.dir)
	if err != nil {
		w.logger.Warn("list inbox dir failed", "dir", w.dir, "error", err)
	}
	for _, e := range entries {
		if !e.IsDir() && isPDFName(e.Name()) {
			w.schedule(watchCtx, filepath.Join(w.dir, e.Name()))
		}
	}

	w.logger.Info("inbox watcher started", "dir", w.dir)
	return nil
}

func (w *InboxWatcher) watch(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !isPDFName(event.Name) {
				continue
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) {
				w.schedule(ctx, event.Name)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("inbox watcher error", "error", err)
		}
	}
}

// schedule hands path to drain once it has stopped changing for the settle delay.
func (w *InboxWatcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.timers[path]; ok {
		t.Reset(w.settle)
		return
	}
	w.timers[path] = time.AfterFunc(w.settle, func() {
		w.mu.Lock()
		delete(w.timers, path)
		w.mu.Unlock()
		select {
		case w.ready <- path:
		case <-ctx.Done():
		}
	})
}

func (w *InboxWatcher) drain(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case path := <-w.ready:
			w.ingest(ctx, path)
		}
	}
}

func (w *InboxWatcher) ingest(ctx context.Context, path string) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return
	}
	if err != nil {
		w.logger.Error("read inbox file failed", "path", path, "error", err)
		return
	}

	name := filepath.Base(path)
	doc, err := w.uploader.Upload(ctx, app.UploadInput{
		Title:       titleFromFilename(name),
		Filename:    name,
		ContentType: "application/pdf",
		Data:        data,
		UploadedBy:  w.uploaderID,
	})
	switch {
	case err == nil || errors.Is(err, app.ErrIngestEnqueue):
		if err != nil {
			w.logger.Warn("inbox document recorded but not queued", "path", path, "error", err)
		}
		if rmErr := os.Remove(path); rmErr != nil {
			w.logger.Warn("remove inbox file failed", "path", path, "error", rmErr)
		}
		if doc != nil {
			w.logger.Info("inbox file uploaded", "path", path, "document_id", doc.ID)
		}
	case errors.Is(err, app.ErrUnsupportedFile), errors.Is(err, app.ErrFileTooLarge), errors.Is(err, app.ErrInvalidInput):
		w.logger.Warn("inbox file rejected", "path", path, "error", err)
		if mvErr := os.Rename(path, path+".rejected"); mvErr != nil {
			w.logger.Warn("rename rejected inbox file failed", "path", path, "error", mvErr)
		}
	default:
		// left in place; picked up again on the next start
		w.logger.Error("inbox upload failed", "path", path, "error", err)
	}
}

func (w *InboxWatcher) Close() {
	if w.cancel == nil {
		return
	}
	w.cancel()
	_ = w.watcher.Close()
	w.mu.Lock()
	for path, t := range w.timers {
		t.Stop()
		delete(w.timers, path)
	}
	w.mu.Unlock()
	w.wg.Wait()
}

func isPDFName(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".pdf")
}

// titleFromFilename turns "guide_de-l'etudiant.pdf" into "guide de l'etudiant".
func titleFromFilename(name string) string {
	title := strings.TrimSuffix(name, filepath.Ext(name))
	title = strings.NewReplacer("_", " ", "-", " ").Replace(title)
	title = strings.Join(strings.Fields(title), " ")
	if title == "" {
		title = name
	}
	if runes := []rune(title); len(runes) > model.MaxNameLength {
		title = strings.TrimSpace(string(runes[:model.MaxNameLength]))
	}
	return title
}
