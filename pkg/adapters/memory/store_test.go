package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/aretw0/pedigree/pkg/core"
)

func TestStore(t *testing.T) {
	ctx := context.Background()
	s := NewStore(`{"n":1}`)

	if err := s.PersistDocument(context.WithValue(ctx, core.ChangeReasonKey, "second"), `{"n":2}`, []byte("<svg/>")); err != nil {
		t.Fatalf("PersistDocument failed: %v", err)
	}

	text, _ := s.FetchDocument(ctx)
	if text != `{"n":2}` {
		t.Errorf("unexpected latest %q", text)
	}
	if string(s.Image()) != "<svg/>" {
		t.Errorf("unexpected image %q", s.Image())
	}

	versions, _ := s.Versions(ctx)
	if len(versions) != 2 || versions[0].ID != "2" || versions[0].Message != "second" {
		t.Fatalf("unexpected versions %+v", versions)
	}

	first, err := s.FetchVersion(ctx, "1")
	if err != nil || first != `{"n":1}` {
		t.Errorf("FetchVersion(1) = %q, %v", first, err)
	}
	if _, err := s.FetchVersion(ctx, "3"); !errors.Is(err, core.ErrVersionNotFound) {
		t.Errorf("expected ErrVersionNotFound, got %v", err)
	}

	s.SetReadOnly(true)
	if err := s.PersistDocument(ctx, "{}", nil); !errors.Is(err, core.ErrReadOnly) {
		t.Errorf("expected ErrReadOnly, got %v", err)
	}
}

func TestStore_Empty(t *testing.T) {
	text, err := NewStore().FetchDocument(context.Background())
	if err != nil || text != "" {
		t.Errorf("expected blank document, got %q, %v", text, err)
	}
}
