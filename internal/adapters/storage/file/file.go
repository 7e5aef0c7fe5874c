// Package file stores each state key in its own file under a directory. Other
// processes sharing the directory are observed with fsnotify.
package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	apperrors "github.com/AI-Team-Dev/jobportal/internal/errors"
	"github.com/AI-Team-Dev/jobportal/internal/ports"
)

const (
	fileSuffix = ".state"
	tempPrefix = ".tmp-"
	dirPerm    = 0o700
	filePerm   = 0o600
)

// Options configures Store.
type Options struct {
	Dir    string
	Logger *slog.Logger
}

// Store is safe for concurrent use.
type Store struct {
	dir    string
	logger *slog.Logger

	mu sync.Mutex
	// own holds the last content this handle wrote per key; nil marks a delete.
	own map[string]*string
}

// New creates the directory when missing.
func New(opts Options) (*Store, error) {
	dir := strings.TrimSpace(opts.Dir)
	if dir == "" {
		return nil, apperrors.Validation("storage directory is required")
	}
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return nil, apperrors.Storage(err, "create storage directory")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		dir:    dir,
		logger: logger.With("component", "file_storage", "dir", dir),
		own:    map[string]*string{},
	}, nil
}

// Dir returns the storage directory.
func (s *Store) Dir() string { return s.dir }

func (s *Store) path(key string) string {
	return filepath.Join(s.dir, url.PathEscape(key)+fileSuffix)
}

func keyFromName(name string) (string, bool) {
	base := filepath.Base(name)
	if strings.HasPrefix(base, tempPrefix) || !strings.HasSuffix(base, fileSuffix) {
		return "", false
	}
	key, err := url.PathUnescape(strings.TrimSuffix(base, fileSuffix))
	if err != nil {
		return "", false
	}
	return key, true
}

// Get implements ports.StateStorage.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	b, err := os.ReadFile(s.path(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", false, nil
		}
		return "", false, apperrors.Storage(err, "read state file")
	}
	return string(b), true, nil
}

// Set writes through a temp file and rename so readers never see partial data.
func (s *Store) Set(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := os.CreateTemp(s.dir, tempPrefix+"*")
	if err != nil {
		return apperrors.Storage(err, "create temp state file")
	}
	tmpName := tmp.Name()
	_, writeErr := tmp.WriteString(value)
	closeErr := tmp.Close()
	if err := errors.Join(writeErr, closeErr); err != nil {
		_ = os.Remove(tmpName)
		return apperrors.Storage(err, "write state file")
	}
	if err := os.Chmod(tmpName, filePerm); err != nil {
		_ = os.Remove(tmpName)
		return apperrors.Storage(err, "chmod state file")
	}
	if err := os.Rename(tmpName, s.path(key)); err != nil {
		_ = os.Remove(tmpName)
		return apperrors.Storage(err, "replace state file")
	}
	v := value
	s.own[key] = &v
	return nil
}

// Delete implements ports.StateStorage.
func (s *Store) Delete(ctx context.Context, keys ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var errs []error
	for _, k := range keys {
		if err := os.Remove(s.path(k)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, fmt.Errorf("remove %s: %w", k, err))
			continue
		}
		s.own[k] = nil
	}
	if err := errors.Join(errs...); err != nil {
		return apperrors.Storage(err, "delete state file")
	}
	return nil
}

// Watch reports changes made to the directory by other processes. A change is
// considered foreign when the file content differs from what this handle last
// wrote for the key.
func (s *Store) Watch(ctx context.Context, onChange func(key string)) (func(), error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, apperrors.Storage(err, "create file watcher")
	}
	if err := w.Add(s.dir); err != nil {
		_ = w.Close()
		return nil, apperrors.Storage(err, "watch storage directory")
	}

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.watchLoop(ctx, w, done, onChange)
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			if err := w.Close(); err != nil {
				s.logger.Debug("close file watcher", "error", err)
			}
			wg.Wait()
		})
	}, nil
}

func (s *Store) watchLoop(ctx context.Context, w *fsnotify.Watcher, done <-chan struct{}, onChange func(string)) {
	const relevant = fsnotify.Create | fsnotify.Write | fsnotify.Remove | fsnotify.Rename
	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case event, ok := <-w.Events:
			if !ok {
				return
			}
			if event.Op&relevant == 0 {
				continue
			}
			key, ok := keyFromName(event.Name)
			if !ok || s.isOwn(key) {
				continue
			}
			onChange(key)
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			s.logger.Warn("file watcher error", "error", err)
		}
	}
}

func (s *Store) isOwn(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	mine, tracked := s.own[key]
	if !tracked {
		return false
	}
	b, err := os.ReadFile(s.path(key))
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return mine == nil
	case err != nil:
		return false
	default:
		return mine != nil && *mine == string(b)
	}
}

var _ ports.StateStorage = (*Store)(nil)
