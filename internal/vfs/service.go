// Package vfs is the virtual file system: an in-memory table of projects and
// their files, written through to a filestore.Store on every mutation.
//
// Persistence is best effort. A failed load starts from an empty table and a
// failed save is logged and counted but not returned, so the in-memory table
// stays authoritative and anything written since the last successful save is
// lost if the process exits.
package vfs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/codepad/internal/events"
	"github.com/fyrsmithlabs/codepad/internal/filestore"
	"github.com/fyrsmithlabs/codepad/internal/logging"
	"github.com/fyrsmithlabs/codepad/internal/metrics"
)

// projectsKey is the single filestore key holding the whole table.
const projectsKey = "projects"

// tracer is looked up per call so spans follow the current global provider.
func tracer() trace.Tracer { return otel.Tracer("github.com/fyrsmithlabs/codepad/internal/vfs") }

// Service owns the project table.
//
// A single mutex serializes access, but callers that read a project, edit it
// and save it back still race with each other: the last save wins.
type Service struct {
	mu          sync.RWMutex
	projects    map[string]*Project
	initialized bool

	store     filestore.Store
	templates map[string]Template
	logger    *logging.Logger
	notifier  events.Notifier
	metrics   *metrics.Metrics
	now       func() time.Time
	newID     func() string
}

// Option configures a Service.
type Option func(*Service)

func WithLogger(l *logging.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithNotifier(n events.Notifier) Option {
	return func(s *Service) {
		if n != nil {
			s.notifier = n
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock overrides time.Now, for deterministic timestamps in tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithTemplates replaces the embedded templates.
func WithTemplates(t map[string]Template) Option {
	return func(s *Service) { s.templates = t }
}

// NewService creates a Service persisting into store. Initialize must be
// called before any other method.
func NewService(store filestore.Store, opts ...Option) *Service {
	s := &Service{
		projects:  make(map[string]*Project),
		store:     store,
		templates: builtinTemplates,
		logger:    logging.NewNop(),
		notifier:  events.NopNotifier{},
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Initialize loads the persisted table. A missing record starts an empty
// table; an unreadable or malformed one is logged and also starts empty.
// Calling it again reloads from the store.
func (s *Service) Initialize(ctx context.Context) error {
	ctx, span := tracer().Start(ctx, "vfs.Initialize")
	defer span.End()

	table := make(map[string]*Project)

	data, err := s.store.Get(ctx, projectsKey)
	switch {
	case errors.Is(err, filestore.ErrNotFound):
		s.logger.Info(ctx, "no persisted project table, starting empty",
			zap.String("store", s.store.Type()))
	case err != nil:
		s.metrics.PersistenceFailure("load")
		s.logger.Error(ctx, "failed to load project table, starting empty",
			zap.String("store", s.store.Type()), zap.Error(err))
	default:
		if err := json.Unmarshal(data, &table); err != nil {
			s.metrics.PersistenceFailure("decode")
			s.logger.Error(ctx, "malformed project table, starting empty", zap.Error(err))
			table = make(map[string]*Project)
		}
	}

	for id, p := range table {
		if p == nil {
			delete(table, id)
			continue
		}
		normalizeLoaded(id, p)
	}

	s.mu.Lock()
	s.projects = table
	s.initialized = true
	s.metrics.SetProjects(len(table))
	s.mu.Unlock()

	span.SetAttributes(attribute.Int("projects", len(table)))
	s.logger.Debug(ctx, "project table loaded", zap.Int("projects", len(table)))
	return nil
}

// normalizeLoaded repairs what a stale or hand-edited record may carry:
// languages are always recomputed and nil collections replaced.
func normalizeLoaded(id string, p *Project) {
	p.ID = id
	if p.Files == nil {
		p.Files = make(map[string]*FileRecord)
	}
	for path, f := range p.Files {
		if f == nil {
			delete(p.Files, path)
			continue
		}
		f.Language = LanguageFor(path)
	}
	if m, ok := p.Files[ManifestPath]; ok {
		p.Dependencies = dependencyNames(m.Content)
	}
	if p.Dependencies == nil {
		p.Dependencies = []string{}
	}
}

// CreateProject allocates a project populated from the named template. An
// empty template name selects the blank template.
func (s *Service) CreateProject(ctx context.Context, name, template string) (*Project, error) {
	ctx, span := tracer().Start(ctx, "vfs.CreateProject", trace.WithAttributes(
		attribute.String("template", template),
	))
	defer span.End()

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, spanErr(span, ErrEmptyProjectName)
	}
	if template == "" {
		template = DefaultTemplate
	}
	tmpl, ok := s.templates[template]
	if !ok {
		return nil, spanErr(span, fmt.Errorf("%w: %s", ErrUnknownTemplate, template))
	}

	s.mu.Lock()
	if !s.initialized {
		s.mu.Unlock()
		return nil, spanErr(span, ErrNotInitialized)
	}
	now := s.now()
	p := &Project{
		ID:           s.newID(),
		Name:         name,
		Template:     template,
		Files:        make(map[string]*FileRecord, len(tmpl.Files)),
		Dependencies: []string{},
		CreatedAt:    now,
		LastModified: now,
	}
	for path, content := range tmpl.Files {
		s.putFile(p, path, content, now)
	}
	s.projects[p.ID] = p
	s.persist(ctx, "create_project")
	out := p.Clone()
	s.mu.Unlock()

	ctx = logging.WithProjectID(ctx, out.ID)
	span.SetAttributes(attribute.String("project.id", out.ID))
	s.metrics.VFSOp("create_project")
	s.logger.Info(ctx, "project created",
		zap.String("name", out.Name), zap.String("template", template), zap.Int("files", len(out.Files)))
	s.notify(ctx, events.ProjectCreated, out.ID, "")
	return out, nil
}

// GetProject returns a copy of the project.
func (s *Service) GetProject(ctx context.Context, id string) (*Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	return p.Clone(), nil
}

// GetAllProjects returns copies of every project in no particular order.
func (s *Service) GetAllProjects(ctx context.Context) ([]*Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.initialized {
		return nil, ErrNotInitialized
	}
	out := make([]*Project, 0, len(s.projects))
	for _, p := range s.projects {
		out = append(out, p.Clone())
	}
	return out, nil
}

// RenameProject changes a project's display name.
func (s *Service) RenameProject(ctx context.Context, id, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyProjectName
	}
	return s.mutate(ctx, "rename_project", events.ProjectRenamed, id, "", func(p *Project, now time.Time) error {
		p.Name = name
		p.LastModified = now
		return nil
	})
}

// ReadFile returns the content stored at path.
func (s *Service) ReadFile(ctx context.Context, id, path string) (string, error) {
	np, err := NormalizePath(path)
	if err != nil {
		return "", err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, err := s.lookup(id)
	if err != nil {
		return "", err
	}
	f, ok := p.Files[np]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrFileNotFound, np)
	}
	return f.Content, nil
}

// SaveFile creates or overwrites path and persists the whole table.
func (s *Service) SaveFile(ctx context.Context, id, path, content string) error {
	np, err := NormalizePath(path)
	if err != nil {
		return err
	}
	return s.mutate(ctx, "save_file", events.FileSaved, id, np, func(p *Project, now time.Time) error {
		s.putFile(p, np, content, now)
		return nil
	})
}

// CreateFile saves a language-appropriate placeholder at path. An existing
// file is overwritten.
func (s *Service) CreateFile(ctx context.Context, id, path string) error {
	np, err := NormalizePath(path)
	if err != nil {
		return err
	}
	return s.SaveFile(ctx, id, np, placeholder(np))
}

// DeleteFile removes path. Deleting a missing path is not an error.
func (s *Service) DeleteFile(ctx context.Context, id, path string) error {
	np, err := NormalizePath(path)
	if err != nil {
		return err
	}
	return s.mutate(ctx, "delete_file", events.FileDeleted, id, np, func(p *Project, now time.Time) error {
		if _, ok := p.Files[np]; !ok {
			return errNoChange
		}
		delete(p.Files, np)
		if np == ManifestPath {
			p.Dependencies = []string{}
		}
		p.LastModified = now
		return nil
	})
}

// DeleteProject removes a project. Deleting an unknown id is not an error.
func (s *Service) DeleteProject(ctx context.Context, id string) error {
	ctx, span := tracer().Start(ctx, "vfs.DeleteProject", trace.WithAttributes(attribute.String("project.id", id)))
	defer span.End()

	s.mu.Lock()
	if !s.initialized {
		s.mu.Unlock()
		return spanErr(span, ErrNotInitialized)
	}
	_, existed := s.projects[id]
	if existed {
		delete(s.projects, id)
		s.persist(ctx, "delete_project")
	}
	s.mu.Unlock()

	if existed {
		ctx = logging.WithProjectID(ctx, id)
		s.metrics.VFSOp("delete_project")
		s.logger.Info(ctx, "project deleted")
		s.notify(ctx, events.ProjectDeleted, id, "")
	}
	return nil
}

// InstallPackage records name@version in the project's manifest, creating
// the manifest if the project has none. Every other manifest key is kept.
// Nothing is fetched or validated.
func (s *Service) InstallPackage(ctx context.Context, id, name, version string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyPackageName
	}
	if version == "" {
		version = "latest"
	}
	return s.mutate(ctx, "install_package", events.PackageInstalled, id, ManifestPath, func(p *Project, now time.Time) error {
		var m *manifest
		if f, ok := p.Files[ManifestPath]; ok {
			var err error
			if m, err = parseManifest(f.Content); err != nil {
				return err
			}
		} else {
			m = newManifest(manifestName(p.Name))
		}
		if err := m.setDependency(name, version); err != nil {
			return err
		}
		s.putFile(p, ManifestPath, m.encode(), now)
		return nil
	})
}

// GetInstalledPackages reads the manifest's dependencies back, sorted by
// name. A project without a manifest has none.
func (s *Service) GetInstalledPackages(ctx context.Context, id string) ([]Package, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	f, ok := p.Files[ManifestPath]
	if !ok {
		return []Package{}, nil
	}
	m, err := parseManifest(f.Content)
	if err != nil {
		return nil, err
	}
	deps, err := m.dependencies()
	if err != nil {
		return nil, err
	}
	return packagesFrom(deps), nil
}

// errNoChange lets a mutation report success without persisting.
var errNoChange = errors.New("no change")

// mutate runs fn against the live project under the write lock, persists,
// and emits evType on success.
func (s *Service) mutate(ctx context.Context, op, evType, id, path string, fn func(*Project, time.Time) error) error {
	ctx, span := tracer().Start(ctx, "vfs."+op, trace.WithAttributes(
		attribute.String("project.id", id),
		attribute.String("path", path),
	))
	defer span.End()
	ctx = logging.WithProjectID(ctx, id)

	s.mu.Lock()
	p, err := s.lookup(id)
	if err != nil {
		s.mu.Unlock()
		return spanErr(span, err)
	}
	err = fn(p, s.now())
	if errors.Is(err, errNoChange) {
		s.mu.Unlock()
		return nil
	}
	if err != nil {
		s.mu.Unlock()
		return spanErr(span, err)
	}
	s.persist(ctx, op)
	s.mu.Unlock()

	s.metrics.VFSOp(op)
	s.logger.Debug(ctx, "vfs mutation", zap.String("op", op), zap.String("path", path))
	s.notify(ctx, evType, id, path)
	return nil
}

// lookup must be called with s.mu held.
func (s *Service) lookup(id string) (*Project, error) {
	if !s.initialized {
		return nil, ErrNotInitialized
	}
	p, ok := s.projects[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProjectNotFound, id)
	}
	return p, nil
}

// putFile must be called with s.mu held.
func (s *Service) putFile(p *Project, path, content string, now time.Time) {
	p.Files[path] = &FileRecord{
		Content:      content,
		Language:     LanguageFor(path),
		LastModified: now,
	}
	p.LastModified = now
	if path == ManifestPath {
		if deps := dependencyNames(content); deps != nil {
			p.Dependencies = deps
		} else {
			p.Dependencies = []string{}
		}
	}
}

// persist writes the whole table. Failures are logged and counted, never
// returned. Must be called with s.mu held.
func (s *Service) persist(ctx context.Context, op string) {
	s.metrics.SetProjects(len(s.projects))

	data, err := json.Marshal(s.projects)
	if err != nil {
		s.metrics.PersistenceFailure(op)
		s.logger.Error(ctx, "failed to encode project table", zap.String("op", op), zap.Error(err))
		return
	}
	if err := s.store.Put(ctx, projectsKey, data); err != nil {
		s.metrics.PersistenceFailure(op)
		s.logger.Error(ctx, "failed to persist project table; in-memory state kept",
			zap.String("op", op), zap.String("store", s.store.Type()), zap.Error(err))
	}
}

func (s *Service) notify(ctx context.Context, typ, id, path string) {
	ev := events.Event{Type: typ, ProjectID: id, Path: path, At: s.now()}
	if err := s.notifier.Notify(ctx, ev); err != nil {
		s.logger.Warn(ctx, "failed to publish change event", zap.String("type", typ), zap.Error(err))
	}
}

func spanErr(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// manifestName derives an npm-style package name from a project name.
func manifestName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		case r == ' ':
			b.WriteByte('-')
		}
	}
	if b.Len() == 0 {
		return "project"
	}
	return b.String()
}
