package watcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	perrors "github.com/conneroisu/popcode/internal/errors"
	"github.com/conneroisu/popcode/internal/gists"
	"github.com/conneroisu/popcode/internal/logging"
	"github.com/conneroisu/popcode/internal/project"
)

// DefaultDebounce is the quiet period before a batch of changes is applied.
const DefaultDebounce = 200 * time.Millisecond

// Sink receives the changes read from disk.
type Sink interface {
	OpenProject(ctx context.Context, p project.Project)
	SourceEdited(ctx context.Context, lang project.Language, source string)
}

// sourceFiles maps the file names used in exported gists to languages, so a
// checked-out gist can be edited in place.
var sourceFiles = map[string]project.Language{
	gists.FileHTML:       project.HTML,
	gists.FileCSS:        project.CSS,
	gists.FileJavaScript: project.JavaScript,
}

// ProjectSync applies project documents (.json, .yml, .yaml) and loose
// source files (index.html, styles.css, script.js) to a Sink. A project
// document without a key keeps the key it was first opened with, so saving
// it again updates the same project.
type ProjectSync struct {
	sink   Sink
	logger logging.Logger

	mu   sync.Mutex
	keys map[string]string
}

// NewProjectSync creates a ProjectSync.
func NewProjectSync(sink Sink, logger logging.Logger) *ProjectSync {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &ProjectSync{
		sink:   sink,
		logger: logger.WithComponent("project-sync"),
		keys:   make(map[string]string),
	}
}

// Filter accepts project documents and source files.
func (s *ProjectSync) Filter(path string) bool {
	if _, ok := sourceFiles[filepath.Base(path)]; ok {
		return true
	}
	return isProjectDocument(path)
}

func isProjectDocument(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".yml", ".yaml":
		return filepath.Base(path) != ".popcode.yml"
	}
	return false
}

// Open reads the project document at path and opens it.
func (s *ProjectSync) Open(ctx context.Context, path string) (project.Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return project.Project{}, perrors.NewIOError(perrors.CodeFileNotFound,
			"cannot read project file "+path, err)
	}
	p, err := project.Parse(data, project.FormatForPath(path))
	if err != nil {
		return project.Project{}, fmt.Errorf("%s: %w", path, err)
	}
	p = p.WithKey(s.keyFor(path, p.Key()))

	s.sink.OpenProject(ctx, p)
	s.logger.Info(ctx, "Opened project file", "path", path, "project", p.Key())
	return p, nil
}

func (s *ProjectSync) keyFor(path, key string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if key != "" {
		s.keys[path] = key
		return key
	}
	if known, ok := s.keys[path]; ok {
		return known
	}
	key = project.NewKey()
	s.keys[path] = key
	return key
}

// Handle is a ChangeHandler. Deleted and renamed-away files are ignored;
// the workspace keeps what it last read.
func (s *ProjectSync) Handle(ctx context.Context, events []ChangeEvent) error {
	var errs []error
	for _, event := range events {
		if event.Type == EventTypeDeleted || event.Type == EventTypeRenamed {
			s.logger.Debug(ctx, "Ignoring removed file", "path", event.Path, "change", event.Type.String())
			continue
		}

		if lang, ok := sourceFiles[filepath.Base(event.Path)]; ok {
			data, err := os.ReadFile(event.Path)
			if err != nil {
				errs = append(errs, fmt.Errorf("reading %s: %w", event.Path, err))
				continue
			}
			s.sink.SourceEdited(ctx, lang, string(data))
			s.logger.Debug(ctx, "Applied source file", "path", event.Path, "language", string(lang))
			continue
		}

		if isProjectDocument(event.Path) {
			if _, err := s.Open(ctx, event.Path); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// Watch watches dir recursively and applies every change until ctx is
// cancelled. The caller stops the returned watcher.
func (s *ProjectSync) Watch(ctx context.Context, dir string, debounce time.Duration) (*FileWatcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	fw, err := NewFileWatcher(debounce, s.logger)
	if err != nil {
		return nil, err
	}

	fw.AddFilter(NoHiddenFilter)
	fw.AddFilter(s.Filter)
	fw.AddHandler(s.Handle)

	if err := fw.AddRecursive(dir); err != nil {
		_ = fw.Stop()
		return nil, fmt.Errorf("watching %s: %w", dir, err)
	}
	fw.Start(ctx)
	return fw, nil
}
