// Package hostsync copies a directory on the host into a project and keeps
// it in step with later edits.
//
// Import walks the tree once. A Watch follows fsnotify events and pushes
// writes through a vfs.Autosaver, so an editor saving a file several times
// in quick succession results in one project write.
package hostsync

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/codepad/internal/ignore"
	"github.com/fyrsmithlabs/codepad/internal/logging"
)

// DefaultMaxFileSize is the largest file Import copies.
const DefaultMaxFileSize = 1 << 20

var (
	// ErrNotDirectory is returned when the import root is not a directory.
	ErrNotDirectory = errors.New("not a directory")

	// ErrWatcherFailed indicates the filesystem watcher failed to initialize.
	ErrWatcherFailed = errors.New("failed to initialize filesystem watcher")
)

// Target receives imported files. *vfs.Service implements it.
type Target interface {
	SaveFile(ctx context.Context, projectID, path, content string) error
	DeleteFile(ctx context.Context, projectID, path string) error
}

// Syncer imports host directories into projects.
type Syncer struct {
	target      Target
	parser      *ignore.Parser
	maxFileSize int64
	debounce    time.Duration
	logger      *logging.Logger
}

// Option configures a Syncer.
type Option func(*Syncer)

func WithParser(p *ignore.Parser) Option {
	return func(s *Syncer) { s.parser = p }
}

func WithMaxFileSize(n int64) Option {
	return func(s *Syncer) { s.maxFileSize = n }
}

// WithDebounce sets the quiet window a watched file needs before it is
// saved. Zero saves on every event.
func WithDebounce(d time.Duration) Option {
	return func(s *Syncer) { s.debounce = d }
}

func WithLogger(l *logging.Logger) Option {
	return func(s *Syncer) {
		if l != nil {
			s.logger = l
		}
	}
}

func New(target Target, opts ...Option) *Syncer {
	s := &Syncer{
		target:      target,
		parser:      ignore.DefaultParser(),
		maxFileSize: DefaultMaxFileSize,
		logger:      logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Skipped is a file Import did not copy.
type Skipped struct {
	Path   string
	Reason string
}

// Report lists what an Import did, in walk order.
type Report struct {
	Imported []string
	Skipped  []Skipped
}

// Import copies every text file under root into the project. Ignored paths
// are not reported; oversized and binary files are reported as skipped.
func (s *Syncer) Import(ctx context.Context, root, projectID string) (*Report, error) {
	matcher, err := s.prepare(root)
	if err != nil {
		return nil, err
	}
	ctx = logging.WithProjectID(ctx, projectID)

	report := &Report{}
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, ok := relative(root, p)
		if !ok {
			return nil
		}
		if d.IsDir() {
			if matcher.Match(rel, true) {
				return filepath.SkipDir
			}
			return nil
		}
		if matcher.Match(rel, false) {
			return nil
		}

		content, reason, err := s.readText(p)
		if err != nil {
			return err
		}
		if reason != "" {
			report.Skipped = append(report.Skipped, Skipped{Path: rel, Reason: reason})
			return nil
		}
		if err := s.target.SaveFile(ctx, projectID, rel, content); err != nil {
			return fmt.Errorf("importing %s: %w", rel, err)
		}
		report.Imported = append(report.Imported, rel)
		return nil
	})
	if err != nil {
		return report, err
	}
	s.logger.Info(ctx, "host directory imported",
		zap.String("root", root),
		zap.Int("imported", len(report.Imported)),
		zap.Int("skipped", len(report.Skipped)))
	return report, nil
}

func (s *Syncer) prepare(root string) (*ignore.Matcher, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s: %w", root, ErrNotDirectory)
	}
	return s.parser.ParseProject(root)
}

// readText returns the file's content, or a reason it is not importable.
func (s *Syncer) readText(p string) (content, reason string, err error) {
	info, err := os.Lstat(p)
	if err != nil {
		return "", "", err
	}
	if !info.Mode().IsRegular() {
		return "", "not a regular file", nil
	}
	if s.maxFileSize > 0 && info.Size() > s.maxFileSize {
		return "", fmt.Sprintf("larger than %d bytes", s.maxFileSize), nil
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return "", "", err
	}
	if bytes.IndexByte(data, 0) >= 0 || !utf8.Valid(data) {
		return "", "binary content", nil
	}
	return string(data), "", nil
}

func relative(root, p string) (string, bool) {
	rel, err := filepath.Rel(root, p)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", false
	}
	return filepath.ToSlash(rel), true
}
