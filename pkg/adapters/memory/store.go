// Package memory is a versioned store that lives in process memory. It
// backs tests, demos and `pedigree serve --adapter memory`.
package memory

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/aretw0/pedigree/pkg/core"
)

type revision struct {
	version core.Version
	text    string
	image   []byte
}

// Store implements core.VersionedStore.
type Store struct {
	mu        sync.RWMutex
	revisions []revision
	readOnly  bool
}

// NewStore returns an empty store. Seed texts become the first revisions.
func NewStore(seed ...string) *Store {
	s := &Store{}
	for _, text := range seed {
		s.append(context.Background(), text, nil)
	}
	return s
}

// SetReadOnly toggles read-only mode.
func (s *Store) SetReadOnly(ro bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readOnly = ro
}

// FetchDocument implements core.Store.
func (s *Store) FetchDocument(ctx context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.revisions) == 0 {
		return "", nil
	}
	return s.revisions[len(s.revisions)-1].text, nil
}

// PersistDocument implements core.Store.
func (s *Store) PersistDocument(ctx context.Context, text string, aux []byte) error {
	s.mu.RLock()
	ro := s.readOnly
	s.mu.RUnlock()
	if ro {
		return core.ErrReadOnly
	}
	s.append(ctx, text, aux)
	return nil
}

func (s *Store) append(ctx context.Context, text string, aux []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revisions = append(s.revisions, revision{
		version: core.Version{
			ID:      strconv.Itoa(len(s.revisions) + 1),
			Created: time.Now(),
			Message: core.ChangeReason(ctx, "save pedigree"),
		},
		text:  text,
		image: append([]byte(nil), aux...),
	})
}

// Versions implements core.VersionedStore.
func (s *Store) Versions(ctx context.Context) ([]core.Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Version, 0, len(s.revisions))
	for i := len(s.revisions) - 1; i >= 0; i-- {
		out = append(out, s.revisions[i].version)
	}
	return out, nil
}

// FetchVersion implements core.VersionedStore.
func (s *Store) FetchVersion(ctx context.Context, id string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, err := strconv.Atoi(id)
	if err != nil || n < 1 || n > len(s.revisions) {
		return "", fmt.Errorf("%w: %s", core.ErrVersionNotFound, id)
	}
	return s.revisions[n-1].text, nil
}

// Image returns the snapshot saved with the newest revision.
func (s *Store) Image() []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.revisions) == 0 {
		return nil
	}
	return s.revisions[len(s.revisions)-1].image
}

var _ core.VersionedStore = (*Store)(nil)
