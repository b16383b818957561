package vfs

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/codepad/internal/logging"
)

// ErrAutosaverClosed is returned by Schedule after Close.
var ErrAutosaverClosed = errors.New("autosaver closed")

// Saver is the write side an Autosaver drives. *Service implements it.
type Saver interface {
	SaveFile(ctx context.Context, projectID, path, content string) error
}

// Autosaver coalesces rapid edits of one file into a single SaveFile once
// the file has been quiet for the configured window.
type Autosaver struct {
	saver  Saver
	window time.Duration
	logger *logging.Logger

	mu      sync.Mutex
	pending map[fileKey]*pendingWrite
	closed  bool
}

type fileKey struct {
	projectID string
	path      string
}

type pendingWrite struct {
	content string
	timer   *time.Timer
	gen     uint64
}

// NewAutosaver returns an Autosaver with the given quiescence window. A
// window of zero or less saves synchronously inside Schedule.
func NewAutosaver(saver Saver, window time.Duration, logger *logging.Logger) *Autosaver {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Autosaver{
		saver:   saver,
		window:  window,
		logger:  logger,
		pending: make(map[fileKey]*pendingWrite),
	}
}

// Schedule records content as the latest edit of path and restarts its
// quiescence timer.
func (a *Autosaver) Schedule(projectID, path, content string) error {
	np, err := NormalizePath(path)
	if err != nil {
		return err
	}
	k := fileKey{projectID: projectID, path: np}

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return ErrAutosaverClosed
	}
	if a.window <= 0 {
		a.mu.Unlock()
		return a.saver.SaveFile(context.Background(), projectID, np, content)
	}

	pw, ok := a.pending[k]
	if !ok {
		pw = &pendingWrite{}
		a.pending[k] = pw
	} else {
		pw.timer.Stop()
	}
	pw.content = content
	pw.gen++
	gen := pw.gen
	pw.timer = time.AfterFunc(a.window, func() { a.fire(k, gen) })
	a.mu.Unlock()
	return nil
}

// fire saves k if no newer edit superseded the timer that called it.
func (a *Autosaver) fire(k fileKey, gen uint64) {
	a.mu.Lock()
	pw, ok := a.pending[k]
	if !ok || pw.gen != gen {
		a.mu.Unlock()
		return
	}
	delete(a.pending, k)
	content := pw.content
	a.mu.Unlock()

	ctx := logging.WithProjectID(context.Background(), k.projectID)
	if err := a.saver.SaveFile(ctx, k.projectID, k.path, content); err != nil {
		a.logger.Error(ctx, "autosave failed", zap.String("path", k.path), zap.Error(err))
	}
}

// Flush saves every pending edit now, in project then path order, and
// returns the first error. Remaining edits are still attempted.
func (a *Autosaver) Flush(ctx context.Context) error {
	a.mu.Lock()
	batch := make(map[fileKey]string, len(a.pending))
	for k, pw := range a.pending {
		pw.timer.Stop()
		batch[k] = pw.content
	}
	a.pending = make(map[fileKey]*pendingWrite)
	a.mu.Unlock()

	keys := make([]fileKey, 0, len(batch))
	for k := range batch {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].projectID != keys[j].projectID {
			return keys[i].projectID < keys[j].projectID
		}
		return keys[i].path < keys[j].path
	})

	var first error
	for _, k := range keys {
		if err := a.saver.SaveFile(ctx, k.projectID, k.path, batch[k]); err != nil {
			a.logger.Error(ctx, "autosave flush failed", zap.String("path", k.path), zap.Error(err))
			if first == nil {
				first = err
			}
		}
	}
	return first
}

// Cancel drops the pending edit of path, reporting whether one existed.
func (a *Autosaver) Cancel(projectID, path string) bool {
	np, err := NormalizePath(path)
	if err != nil {
		return false
	}
	k := fileKey{projectID: projectID, path: np}

	a.mu.Lock()
	defer a.mu.Unlock()
	pw, ok := a.pending[k]
	if !ok {
		return false
	}
	pw.timer.Stop()
	delete(a.pending, k)
	return true
}

// Pending returns the number of edits waiting to be saved.
func (a *Autosaver) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.pending)
}

// Close stops accepting edits and flushes what is pending.
func (a *Autosaver) Close(ctx context.Context) error {
	a.mu.Lock()
	a.closed = true
	a.mu.Unlock()
	return a.Flush(ctx)
}
