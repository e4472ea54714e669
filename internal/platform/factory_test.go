package platform

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/pedigree/pkg/adapters/fs"
	"github.com/aretw0/pedigree/pkg/adapters/memory"
	"github.com/aretw0/pedigree/pkg/core"
	"github.com/aretw0/pedigree/pkg/engine"
	"github.com/aretw0/pedigree/pkg/proband"
)

const sampleDoc = `{"schemaVersion":3,"graph":{"persons":[{"id":0,"firstName":"Ada","gender":"F"},{"id":1,"firstName":"George","gender":"M"},{"id":2,"gender":"F"}],"relationships":[{"id":3,"partners":[1,2],"children":[0]}]},"settings":{"zoom":1.5}}`

func TestOpenStore_FS(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "P0001")

	store, err := OpenStore(context.Background(), dir, WithAutoInit(true), WithVersioning(false))
	if err != nil {
		t.Fatalf("OpenStore failed: %v", err)
	}
	fsStore, ok := store.(*fs.Store)
	if !ok {
		t.Fatalf("expected *fs.Store, got %T", store)
	}
	if fsStore.Path != dir {
		t.Errorf("expected path %s, got %s", dir, fsStore.Path)
	}
	if _, err := os.Stat(filepath.Join(dir, fs.DefaultSystemDir)); err != nil {
		t.Errorf("system dir not created: %v", err)
	}
}

func TestOpenStore_MustExist(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "missing")

	_, err := OpenStore(context.Background(), dir, WithMustExist(true))
	if err == nil {
		t.Fatal("expected error for missing directory")
	}
}

func TestOpenStore_Adapters(t *testing.T) {
	ctx := context.Background()

	store, err := OpenStore(ctx, "", WithAdapter(AdapterMemory))
	if err != nil {
		t.Fatalf("memory: %v", err)
	}
	if _, ok := store.(*memory.Store); !ok {
		t.Errorf("expected *memory.Store, got %T", store)
	}

	if _, err := OpenStore(ctx, "x", WithAdapter("floppy")); err == nil {
		t.Error("expected error for unknown adapter")
	}

	if _, err := OpenStore(ctx, "", WithAdapter(AdapterREST)); err == nil {
		t.Error("expected error for rest adapter without base url")
	}

	injected := memory.NewStore()
	store, err = OpenStore(ctx, "ignored", WithAdapter("floppy"), WithStore(injected))
	if err != nil {
		t.Fatalf("injected store: %v", err)
	}
	if store != injected {
		t.Error("expected injected store to be returned as-is")
	}
}

func TestNew_LoadSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	patient := "first_name: Ada\nlast_name: Lovelace\ngender: F\n"
	if err := os.WriteFile(filepath.Join(dir, "patient.yaml"), []byte(patient), 0644); err != nil {
		t.Fatal(err)
	}

	var events []core.EventType
	s, err := New(dir,
		WithAutoInit(true),
		WithVersioning(false),
		WithSnapshots(false),
		WithObserver(core.ObserverFunc(func(e core.Event) { events = append(events, e.Type) })),
	)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer s.Close()

	if _, ok := s.Source.(proband.FileSource); !ok {
		t.Fatalf("expected patient file source, got %T", s.Source)
	}

	if err := s.Engine.LoadText(ctx, sampleDoc, engine.LoadOptions{}); err != nil {
		t.Fatalf("LoadText failed: %v", err)
	}
	p, ok := s.Graph.Graph().Person(core.ProbandID)
	if !ok {
		t.Fatal("proband missing after load")
	}
	if p.LastName != "Lovelace" {
		t.Errorf("expected proband last name from patient file, got %q", p.LastName)
	}

	if err := s.Engine.SaveAndWait(ctx); err != nil {
		t.Fatalf("SaveAndWait failed: %v", err)
	}
	if s.History.HasUnsavedChanges() {
		t.Error("expected clean history after save")
	}

	data, err := os.ReadFile(filepath.Join(dir, fs.DefaultDocument))
	if err != nil {
		t.Fatalf("document not written: %v", err)
	}
	if len(data) == 0 {
		t.Error("document is empty")
	}

	vs, ok := s.Versioned()
	if !ok {
		t.Fatal("fs store should be versioned")
	}
	versions, err := vs.Versions(ctx)
	if err != nil {
		t.Fatalf("Versions failed: %v", err)
	}
	if len(versions) != 1 {
		t.Errorf("expected 1 snapshot, got %d", len(versions))
	}
	if len(events) == 0 {
		t.Error("observer received no events")
	}
}

func TestNew_ReadOnly(t *testing.T) {
	s, err := New("", WithAdapter(AdapterMemory), WithReadOnly(true), WithSnapshots(false))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer s.Close()

	if err := s.Engine.LoadText(context.Background(), sampleDoc, engine.LoadOptions{NoUndo: true}); err != nil {
		t.Fatalf("LoadText failed: %v", err)
	}
	err = s.Engine.SaveAndWait(context.Background())
	if !errors.Is(err, core.ErrReadOnly) && !errors.Is(err, core.ErrPersist) {
		t.Errorf("expected read-only persist error, got %v", err)
	}
}

func TestNew_ExplicitSource(t *testing.T) {
	src := proband.StaticSource{FirstName: "Grace", Gender: core.GenderFemale}

	s, err := New("", WithAdapter(AdapterMemory), WithSubjectSource(src), WithSnapshots(false), WithEventBuffer(4))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer s.Close()

	if s.Source != src {
		t.Errorf("expected explicit source, got %T", s.Source)
	}

	events, cancel := s.Subscribe()
	defer cancel()

	if err := s.Engine.LoadText(context.Background(), sampleDoc, engine.LoadOptions{}); err != nil {
		t.Fatalf("LoadText failed: %v", err)
	}
	select {
	case e := <-events:
		if e.Type != core.EventLoadStart {
			t.Errorf("expected first event %s, got %s", core.EventLoadStart, e.Type)
		}
	default:
		t.Error("expected buffered event")
	}
}
