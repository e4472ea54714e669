package fs

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/pedigree/pkg/core"
	"github.com/aretw0/pedigree/pkg/git"
)

// Defaults for Config fields left empty.
const (
	DefaultDocument  = "pedigree.json"
	DefaultImage     = "pedigree.svg"
	DefaultSystemDir = ".pedigree"
)

// Config holds the configuration for the filesystem store.
type Config struct {
	Path         string
	Document     string // document file name relative to Path
	Image        string // snapshot file name relative to Path
	AutoInit     bool
	Gitless      bool
	MustExist    bool
	ReadOnly     bool
	SystemDir    string // e.g. ".pedigree"
	Logger       *slog.Logger
	ErrorHandler func(error)
}

// Store implements core.VersionedStore on a directory. Revisions are git
// commits, or snapshot files under the system directory in gitless mode.
type Store struct {
	Path   string
	git    *git.Client
	config Config

	mu            sync.RWMutex
	lastDigest    [32]byte
	lastPersist   *time.Time
	persists      int
	watcherActive bool
}

// NewStore creates a new filesystem-backed store.
func NewStore(config Config) *Store {
	if config.Document == "" {
		config.Document = DefaultDocument
	}
	if config.Image == "" {
		config.Image = DefaultImage
	}
	if config.SystemDir == "" {
		config.SystemDir = DefaultSystemDir
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Store{
		Path:   config.Path,
		git:    git.NewClient(config.Path, filepath.Join(config.SystemDir, "git.lock"), config.Logger),
		config: config,
	}
}

// Initialize performs the necessary setup for the store (mkdir, git init).
func (s *Store) Initialize(ctx context.Context) error {
	if s.config.MustExist {
		info, err := os.Stat(s.Path)
		if os.IsNotExist(err) {
			return fmt.Errorf("pedigree path does not exist: %s", s.Path)
		}
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return fmt.Errorf("pedigree path is not a directory: %s", s.Path)
		}
	} else if err := os.MkdirAll(s.Path, 0755); err != nil {
		return fmt.Errorf("failed to create pedigree directory: %w", err)
	}

	if err := os.MkdirAll(filepath.Join(s.Path, s.config.SystemDir), 0755); err != nil {
		return fmt.Errorf("failed to create system directory: %w", err)
	}

	if s.config.Gitless {
		return nil
	}

	if !git.IsInstalled() {
		return fmt.Errorf("git is not installed")
	}

	wasNewRepo := false
	if !s.git.IsRepo() {
		if !s.config.AutoInit {
			return fmt.Errorf("path is not a git repository: %s", s.Path)
		}
		if err := s.git.Init(); err != nil {
			return fmt.Errorf("failed to git init: %w", err)
		}
		wasNewRepo = true
	}

	mod, err := s.ensureIgnore()
	if err != nil {
		return fmt.Errorf("failed to ensure .gitignore: %w", err)
	}

	if mod && wasNewRepo {
		if err := s.git.Add(".gitignore"); err != nil {
			return fmt.Errorf("failed to add .gitignore: %w", err)
		}
		if err := s.git.Commit(fmt.Sprintf("chore: configure %s ignore", s.config.SystemDir)); err != nil {
			return fmt.Errorf("failed to commit .gitignore: %w", err)
		}
	}
	return nil
}

func (s *Store) ensureIgnore() (bool, error) {
	ignorePath := filepath.Join(s.Path, ".gitignore")
	ignoreEntry := s.config.SystemDir + "/"

	content, err := os.ReadFile(ignorePath)
	if err != nil && !os.IsNotExist(err) {
		return false, err
	}

	for _, line := range strings.Split(string(content), "\n") {
		if strings.TrimSpace(line) == ignoreEntry {
			return false, nil
		}
	}

	f, err := os.OpenFile(ignorePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return false, err
	}
	defer f.Close()

	if len(content) > 0 && !strings.HasSuffix(string(content), "\n") {
		if _, err := f.WriteString("\n"); err != nil {
			return false, err
		}
	}
	if _, err := f.WriteString(ignoreEntry + "\n"); err != nil {
		return false, err
	}
	return true, nil
}

// FetchDocument reads the document file. A missing file yields "".
func (s *Store) FetchDocument(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := os.ReadFile(s.documentPath())
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", s.config.Document, err)
	}
	return string(data), nil
}

// PersistDocument writes the document (and the snapshot, when given) and
// records a revision.
//
// Workflow:
//  1. Stage image and document, then rename both into place.
//  2. (Gitless) copy the text into the snapshot history.
//  3. (Git) 'git add' both files and commit with the context change reason,
//     unless nothing changed.
func (s *Store) PersistDocument(ctx context.Context, text string, aux []byte) error {
	if s.config.ReadOnly {
		return core.ErrReadOnly
	}

	s.mu.Lock()
	s.lastDigest = sha256.Sum256([]byte(text))
	s.mu.Unlock()

	files := []string{s.config.Document}
	var writes []file
	if len(aux) > 0 {
		writes = append(writes, file{path: filepath.Join(s.Path, s.config.Image), data: aux})
		files = append(files, s.config.Image)
	}
	writes = append(writes, file{path: s.documentPath(), data: []byte(text)})
	if err := writeAtomic(writes...); err != nil {
		return fmt.Errorf("failed to write document: %w", err)
	}

	if s.config.Gitless {
		if err := s.writeSnapshot(text); err != nil {
			return err
		}
	} else if err := s.commit(ctx, files); err != nil {
		return err
	}

	s.mu.Lock()
	now := time.Now()
	s.lastPersist = &now
	s.persists++
	s.mu.Unlock()
	return nil
}

func (s *Store) commit(ctx context.Context, files []string) error {
	if err := os.MkdirAll(filepath.Join(s.Path, s.config.SystemDir), 0755); err != nil {
		return fmt.Errorf("failed to create system directory: %w", err)
	}
	unlock, err := s.git.Lock()
	if err != nil {
		return fmt.Errorf("failed to acquire git lock: %w", err)
	}
	defer unlock()

	if err := s.git.Add(files...); err != nil {
		return fmt.Errorf("failed to git add: %w", err)
	}

	status, err := s.git.Status(files...)
	if err != nil {
		return fmt.Errorf("failed to git status: %w", err)
	}
	if status == "" {
		s.config.Logger.Debug("document unchanged, skipping commit")
		return nil
	}

	if err := s.git.Commit(core.ChangeReason(ctx, "save pedigree")); err != nil {
		return fmt.Errorf("failed to git commit: %w", err)
	}
	return nil
}

func (s *Store) documentPath() string {
	return filepath.Join(s.Path, s.config.Document)
}

// isOwnWrite reports whether data matches the last text this store persisted.
func (s *Store) isOwnWrite(data []byte) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastDigest == sha256.Sum256(data)
}

var _ core.VersionedStore = (*Store)(nil)
