package hostsync

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/codepad/internal/ignore"
	"github.com/fyrsmithlabs/codepad/internal/logging"
	"github.com/fyrsmithlabs/codepad/internal/vfs"
)

// Watch mirrors changes under a host directory into a project. Create one
// with NewWatch and drive it with Run.
type Watch struct {
	s         *Syncer
	root      string
	projectID string
	matcher   *ignore.Matcher
	fsw       *fsnotify.Watcher
	saver     *vfs.Autosaver
	known     map[string]bool
}

// Watch blocks, mirroring root into the project until ctx is done.
func (s *Syncer) Watch(ctx context.Context, root, projectID string) error {
	w, err := s.NewWatch(root, projectID)
	if err != nil {
		return err
	}
	return w.Run(ctx)
}

// NewWatch registers watches on every non-ignored directory under root.
// Events that happen after it returns are not lost.
func (s *Syncer) NewWatch(root, projectID string) (*Watch, error) {
	matcher, err := s.prepare(root)
	if err != nil {
		return nil, err
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWatcherFailed, err)
	}
	w := &Watch{
		s:         s,
		root:      root,
		projectID: projectID,
		matcher:   matcher,
		fsw:       fsw,
		saver:     vfs.NewAutosaver(s.target, s.debounce, s.logger),
		known:     make(map[string]bool),
	}
	if err := w.addTree(root); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	return w, nil
}

// Run processes events until ctx is done, then flushes pending saves.
func (w *Watch) Run(ctx context.Context) error {
	ctx = logging.WithProjectID(ctx, w.projectID)
	defer func() {
		_ = w.fsw.Close()
		if err := w.saver.Close(context.WithoutCancel(ctx)); err != nil {
			w.s.logger.Error(ctx, "flushing watched files", zap.Error(err))
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handle(ctx, ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.s.logger.Warn(ctx, "watch error", zap.Error(err))
		}
	}
}

// addTree watches dir and every non-ignored directory below it and records
// the files it finds.
func (w *Watch) addTree(dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, ok := relative(w.root, p)
		if d.IsDir() {
			if ok && w.matcher.Match(rel, true) {
				return filepath.SkipDir
			}
			if err := w.fsw.Add(p); err != nil {
				return fmt.Errorf("watching %s: %w", p, err)
			}
			return nil
		}
		if ok && !w.matcher.Match(rel, false) {
			w.known[rel] = true
		}
		return nil
	})
}

func (w *Watch) handle(ctx context.Context, ev fsnotify.Event) {
	rel, ok := relative(w.root, ev.Name)
	if !ok {
		return
	}
	log := w.s.logger

	switch {
	case ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write):
		info, err := os.Stat(ev.Name)
		if err != nil {
			return
		}
		if info.IsDir() {
			if w.matcher.Match(rel, true) {
				return
			}
			before := len(w.known)
			if err := w.addTree(ev.Name); err != nil {
				log.Warn(ctx, "watching new directory", zap.String("path", rel), zap.Error(err))
			}
			if len(w.known) != before {
				w.resync(ctx, rel)
			}
			return
		}
		w.schedule(ctx, rel, ev.Name)

	case ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename):
		for _, fp := range w.knownUnder(rel) {
			w.saver.Cancel(w.projectID, fp)
			delete(w.known, fp)
			if err := w.s.target.DeleteFile(ctx, w.projectID, fp); err != nil {
				log.Error(ctx, "deleting watched file", zap.String("path", fp), zap.Error(err))
			}
		}
	}
}

func (w *Watch) schedule(ctx context.Context, rel, abs string) {
	if w.matcher.Match(rel, false) {
		return
	}
	content, reason, err := w.s.readText(abs)
	if err != nil {
		w.s.logger.Warn(ctx, "reading watched file", zap.String("path", rel), zap.Error(err))
		return
	}
	if reason != "" {
		w.s.logger.Debug(ctx, "watched file skipped", zap.String("path", rel), zap.String("reason", reason))
		return
	}
	w.known[rel] = true
	if err := w.saver.Schedule(w.projectID, rel, content); err != nil {
		w.s.logger.Error(ctx, "scheduling watched file", zap.String("path", rel), zap.Error(err))
	}
}

// resync schedules every known file under dir, for directories that were
// moved in with content already in place.
func (w *Watch) resync(ctx context.Context, dir string) {
	for _, fp := range w.knownUnder(dir) {
		w.schedule(ctx, fp, filepath.Join(w.root, filepath.FromSlash(fp)))
	}
}

func (w *Watch) knownUnder(rel string) []string {
	var out []string
	for fp := range w.known {
		if fp == rel || strings.HasPrefix(fp, rel+"/") {
			out = append(out, fp)
		}
	}
	return out
}
