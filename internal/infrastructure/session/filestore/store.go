package filestore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/smart-document-manager/internal/core/domain"
	"github.com/kirillkom/smart-document-manager/internal/core/ports"
)

// Store persists the session as a YAML file readable only by its owner.
type Store struct {
	path string
	now  func() time.Time

	mu sync.Mutex
}

var _ ports.SessionStore = (*Store)(nil)

func New(path string) *Store {
	return &Store{path: path, now: time.Now}
}

// DefaultPath is ~/.config/smartdoc/session.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".config", "smartdoc", "session.yaml"), nil
}

func (s *Store) Path() string {
	return s.path
}

// Load returns nil without error when no session file exists or it holds no token.
func (s *Store) Load(_ context.Context) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read session file: %w", err)
	}

	var session domain.Session
	if err := yaml.Unmarshal(raw, &session); err != nil {
		return nil, fmt.Errorf("parse session file %s: %w", s.path, err)
	}
	if strings.TrimSpace(session.Token) == "" {
		return nil, nil
	}
	return &session, nil
}

func (s *Store) Save(_ context.Context, session domain.Session) error {
	if session.UpdatedAt.IsZero() {
		session.UpdatedAt = s.now().UTC()
	}
	raw, err := yaml.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".session-*.yaml")
	if err != nil {
		return fmt.Errorf("create temp session file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = os.Remove(tmpPath)
	}()

	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("chmod session file: %w", err)
	}
	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write session file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close session file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("replace session file: %w", err)
	}
	return nil
}

func (s *Store) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove session file: %w", err)
	}
	return nil
}
