package fs

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/aretw0/pedigree/pkg/core"
)

const historyDir = "history"

// Versions lists stored revisions of the document, newest first.
func (s *Store) Versions(ctx context.Context) ([]core.Version, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.config.Gitless {
		return s.snapshots()
	}

	commits, err := s.git.Log(s.config.Document)
	if err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}
	versions := make([]core.Version, 0, len(commits))
	for _, c := range commits {
		versions = append(versions, core.Version{ID: c.Hash, Created: c.Time, Message: c.Subject})
	}
	return versions, nil
}

// FetchVersion returns the document text of one revision.
func (s *Store) FetchVersion(ctx context.Context, id string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if id == "" || strings.ContainsAny(id, `/\:`) || strings.HasPrefix(id, "-") {
		return "", fmt.Errorf("%w: %q", core.ErrVersionNotFound, id)
	}

	if s.config.Gitless {
		data, err := os.ReadFile(filepath.Join(s.historyPath(), id+".json"))
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", core.ErrVersionNotFound, id)
		}
		if err != nil {
			return "", fmt.Errorf("failed to read snapshot %s: %w", id, err)
		}
		return string(data), nil
	}

	text, err := s.git.Show(id, s.config.Document)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", core.ErrVersionNotFound, id, err)
	}
	return text, nil
}

func (s *Store) historyPath() string {
	return filepath.Join(s.Path, s.config.SystemDir, historyDir)
}

// writeSnapshot keeps a copy of text keyed by its write time.
func (s *Store) writeSnapshot(text string) error {
	id := fmt.Sprintf("%020d", time.Now().UnixNano())
	if err := writeAtomic(file{path: filepath.Join(s.historyPath(), id+".json"), data: []byte(text)}); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return nil
}

func (s *Store) snapshots() ([]core.Version, error) {
	root := filepath.Join(s.Path, s.config.SystemDir)
	if _, err := os.Stat(root); os.IsNotExist(err) {
		return nil, nil
	}
	matches, err := doublestar.Glob(os.DirFS(root), path.Join(historyDir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}

	versions := make([]core.Version, 0, len(matches))
	for _, m := range matches {
		id := strings.TrimSuffix(path.Base(m), ".json")
		nanos, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			s.config.Logger.Debug("skipping foreign snapshot file", "file", m)
			continue
		}
		versions = append(versions, core.Version{ID: id, Created: time.Unix(0, nanos)})
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i].ID > versions[j].ID })
	return versions, nil
}
