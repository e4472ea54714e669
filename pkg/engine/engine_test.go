package engine

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/pedigree/pkg/core"
	"github.com/aretw0/pedigree/pkg/graph"
	"github.com/aretw0/pedigree/pkg/history"
	"github.com/aretw0/pedigree/pkg/proband"
	"github.com/aretw0/pedigree/pkg/view"
)

const (
	storedV3 = `{"schemaVersion":3,"graph":{"persons":[{"id":0,"firstName":"Ada","gender":"F"},{"id":1,"firstName":"George","gender":"M"},{"id":2,"gender":"F"}],"relationships":[{"id":3,"partners":[1,2],"children":[0]}]},"settings":{"zoom":1.5}}`
	storedV1 = `{"persons":[{"id":0,"firstName":"Ada","sex":"female"},{"id":1,"firstName":"George","sex":"male"},{"id":2,"sex":"f"}],"relationships":[{"id":3,"partners":[1,2],"children":[0]}],"settings":{"zoom":1.5}}`
)

type memStore struct {
	mu       sync.Mutex
	text     string
	aux      []byte
	persists int
	err      error
	gate     chan struct{}
	fetch    func(ctx context.Context) (string, error)
}

func (s *memStore) FetchDocument(ctx context.Context) (string, error) {
	if s.fetch != nil {
		return s.fetch(ctx)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.text, nil
}

func (s *memStore) PersistDocument(ctx context.Context, text string, aux []byte) error {
	if s.gate != nil {
		<-s.gate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.persists++
	if s.err != nil {
		return s.err
	}
	s.text = text
	s.aux = aux
	return nil
}

func (s *memStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persists
}

type versionedStore struct {
	memStore
	versions map[string]string
}

func (s *versionedStore) Versions(ctx context.Context) ([]core.Version, error) {
	var out []core.Version
	for id := range s.versions {
		out = append(out, core.Version{ID: id})
	}
	return out, nil
}

func (s *versionedStore) FetchVersion(ctx context.Context, id string) (string, error) {
	text, ok := s.versions[id]
	if !ok {
		return "", core.ErrVersionNotFound
	}
	return text, nil
}

type recorder struct {
	mu     sync.Mutex
	events []core.Event
}

func (r *recorder) Notify(e core.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) types() []core.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]core.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

func (r *recorder) find(t core.EventType) (core.Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e.Type == t {
			return e, true
		}
	}
	return core.Event{}, false
}

type fixture struct {
	engine  *Engine
	model   *graph.Model
	view    *view.Workspace
	history *history.Stack
	events  *recorder
}

func newFixture(t *testing.T, store core.Store, mutate ...func(*Config)) *fixture {
	t.Helper()
	f := &fixture{
		model:   graph.NewModel(graph.Graph{}),
		view:    view.NewWorkspace(),
		history: history.NewStack(0),
		events:  &recorder{},
	}
	cfg := Config{
		Graph:   f.model,
		View:    f.view,
		History: f.history,
		Store:   store,
	}
	for _, m := range mutate {
		m(&cfg)
	}
	e, err := New(cfg, WithObserver(f.events))
	require.NoError(t, err)
	f.engine = e
	return f
}

func withProband(p core.ProbandData) func(*Config) {
	return func(c *Config) {
		c.Proband = proband.NewBridge(proband.StaticSource(p), nil)
	}
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)
}

func TestLoad_FromStore(t *testing.T) {
	store := &memStore{text: storedV3}
	f := newFixture(t, store, withProband(core.ProbandData{FirstName: "Augusta", LastName: "King", Gender: core.GenderFemale}))

	require.NoError(t, f.engine.Load(context.Background()))

	assert.Equal(t, []core.EventType{core.EventLoadStart, core.EventLoadFinish}, f.events.types())
	assert.Equal(t, 1, f.history.Len())
	assert.False(t, f.history.HasUnsavedChanges(), "store loads mark the saved checkpoint")
	assert.Equal(t, core.Settings{"zoom": json.Number("1.5")}, f.view.GetSettings())
	assert.Equal(t, 4, f.view.NodeCount())
	assert.NotZero(t, f.view.Viewport().Width, "structural change adjusts the size")

	p, _ := f.model.Graph().Person(0)
	assert.Equal(t, "Augusta King", p.DisplayName())

	cur, _ := f.history.Current()
	text, err := f.engine.Serialize()
	require.NoError(t, err)
	assert.Equal(t, text, cur.State, "history baseline includes the proband data")
	assert.Equal(t, PhaseIdle, f.engine.Phase())
}

func TestLoad_BlankRoutesToTemplates(t *testing.T) {
	for _, blank := range []string{"", "   \n\t"} {
		called := false
		f := newFixture(t, &memStore{text: blank}, func(c *Config) {
			c.Templates = core.TemplateHandlerFunc(func(context.Context) error {
				called = true
				return nil
			})
		})

		err := f.engine.Load(context.Background())
		require.ErrorIs(t, err, core.ErrNoDocument)
		assert.NotErrorIs(t, err, core.ErrMalformedDocument)
		assert.True(t, called)
		assert.Equal(t, 0, f.history.Len())
		assert.Equal(t, []core.EventType{core.EventLoadStart, core.EventLoadFinish}, f.events.types())
	}
}

func TestLoad_MalformedClearsGraph(t *testing.T) {
	f := newFixture(t, &memStore{text: `{"schemaVersion":3,"graph":{"persons":[{"id":9}]}}`})
	_, err := f.model.Replace(graph.Graph{Persons: []graph.Person{{ID: 0, FirstName: "Old"}}})
	require.NoError(t, err)

	err = f.engine.Load(context.Background())
	require.ErrorIs(t, err, core.ErrMalformedDocument)

	assert.Empty(t, f.model.Graph().Persons)
	assert.Equal(t, []core.EventType{core.EventLoadStart, core.EventLoadError, core.EventGraphClear, core.EventLoadFinish}, f.events.types())
	assert.Equal(t, 0, f.history.Len())
	assert.Equal(t, 1, f.engine.Stats().LoadFailures)
}

func TestLoad_FailedLoadResetsView(t *testing.T) {
	store := &memStore{text: storedV3}
	f := newFixture(t, store)
	ctx := context.Background()

	require.NoError(t, f.engine.Load(ctx))
	require.Equal(t, 4, f.view.NodeCount())

	store.text = `{"schemaVersion":3,"graph":{"persons":[{"id":9}]}}`
	require.ErrorIs(t, f.engine.Load(ctx), core.ErrMalformedDocument)
	assert.Empty(t, f.model.Graph().Persons)
	assert.Equal(t, 0, f.view.NodeCount())

	store.text = `{"schemaVersion":3,"graph":{"persons":[{"id":0,"gender":"F"}]}}`
	require.NoError(t, f.engine.Load(ctx))
	assert.Len(t, f.model.Graph().Persons, 1)
	assert.Equal(t, 1, f.view.NodeCount())
	assert.Equal(t, view.Cell, f.view.Viewport().Width)
}

func TestLoad_UnknownVersion(t *testing.T) {
	f := newFixture(t, &memStore{text: `{"schemaVersion":42,"graph":{}}`})

	err := f.engine.Load(context.Background())
	require.ErrorIs(t, err, core.ErrMigration)
	_, ok := f.events.find(core.EventGraphClear)
	assert.True(t, ok)
}

func TestLoad_FetchFailure(t *testing.T) {
	store := &memStore{fetch: func(context.Context) (string, error) { return "", errors.New("offline") }}
	f := newFixture(t, store)

	err := f.engine.Load(context.Background())
	require.Error(t, err)
	assert.Equal(t, []core.EventType{core.EventLoadStart, core.EventLoadError, core.EventLoadFinish}, f.events.types())
}

func TestLoad_PreviousVersionMatchesCurrent(t *testing.T) {
	legacy := newFixture(t, &memStore{text: storedV1})
	current := newFixture(t, &memStore{text: storedV3})

	require.NoError(t, legacy.engine.Load(context.Background()))
	require.NoError(t, current.engine.Load(context.Background()))

	a, err := legacy.engine.Serialize()
	require.NoError(t, err)
	b, err := current.engine.Serialize()
	require.NoError(t, err)
	assert.Equal(t, b, a)
}

func TestLoad_ProbandFetchFailureDoesNotAbort(t *testing.T) {
	f := newFixture(t, &memStore{text: storedV3}, func(c *Config) {
		c.Proband = proband.NewBridge(failingSource{}, nil)
	})

	require.NoError(t, f.engine.Load(context.Background()))

	e, ok := f.events.find(core.EventProbandWarning)
	require.True(t, ok)
	assert.ErrorIs(t, e.Err, core.ErrProbandFetch)
	assert.Equal(t, 1, f.history.Len())
}

func TestLoad_GenderConflictWarns(t *testing.T) {
	text := `{"schemaVersion":3,"graph":{"persons":[{"id":0,"gender":"U"},{"id":1,"gender":"M"}],"relationships":[{"id":2,"partners":[0,1]}]}}`
	f := newFixture(t, &memStore{text: text}, withProband(core.ProbandData{FirstName: "Sam", Gender: core.GenderMale}))

	require.NoError(t, f.engine.Load(context.Background()))

	_, ok := f.events.find(core.EventProbandWarning)
	assert.True(t, ok)
	p, _ := f.model.Graph().Person(0)
	assert.Equal(t, core.GenderUnknown, p.Gender)
	assert.Equal(t, "Sam", p.FirstName)
}

func TestLoad_SupersededResponseIsDiscarded(t *testing.T) {
	release := make(chan struct{})
	var calls int
	var mu sync.Mutex
	store := &memStore{fetch: func(ctx context.Context) (string, error) {
		mu.Lock()
		calls++
		first := calls == 1
		mu.Unlock()
		if first {
			<-release
			return `{"schemaVersion":3,"graph":{"persons":[{"id":0,"firstName":"Stale"}]}}`, nil
		}
		return storedV3, nil
	}}
	f := newFixture(t, store)

	errs := make(chan error, 1)
	go func() { errs <- f.engine.Load(context.Background()) }()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return calls == 1
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, f.engine.Load(context.Background()))
	close(release)

	require.ErrorIs(t, <-errs, ErrSuperseded)
	p, _ := f.model.Graph().Person(0)
	assert.Equal(t, "Ada", p.FirstName)
}

func TestLoadText_NoUndo(t *testing.T) {
	f := newFixture(t, &memStore{}, withProband(core.ProbandData{FirstName: "Ignored"}))

	require.NoError(t, f.engine.LoadText(context.Background(), storedV1, LoadOptions{NoUndo: true, CenterOnRoot: true}))

	assert.Equal(t, 0, f.history.Len())
	p, _ := f.model.Graph().Person(0)
	assert.Equal(t, "Ada", p.FirstName, "no proband reconciliation in NoUndo mode")
	assert.True(t, f.view.Viewport().Centered)
}

func TestImport(t *testing.T) {
	f := newFixture(t, &memStore{})
	ped := "F dad 0 0 1\nF mom 0 0 2\nF kid dad mom 2 2\n"

	err := f.engine.Import(context.Background(), ped, graph.FormatPED, core.ImportOptions{"proband": "kid"}, LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, f.history.Len())
	assert.True(t, f.history.HasUnsavedChanges(), "imports are never marked saved")

	err = f.engine.Import(context.Background(), "garbage", graph.FormatPED, nil, LoadOptions{})
	require.ErrorIs(t, err, core.ErrImport)
	assert.Empty(t, f.model.Graph().Persons)
}

func TestRestoreVersion(t *testing.T) {
	f := newFixture(t, &memStore{})
	require.Error(t, f.engine.RestoreVersion(context.Background(), "v1"))

	vs := &versionedStore{versions: map[string]string{"v1": storedV1}}
	vs.text = storedV3
	g := newFixture(t, vs)

	require.ErrorIs(t, g.engine.RestoreVersion(context.Background(), "missing"), core.ErrVersionNotFound)
	require.NoError(t, g.engine.RestoreVersion(context.Background(), "v1"))
	assert.True(t, g.history.HasUnsavedChanges())

	versions, err := g.engine.Versions(context.Background())
	require.NoError(t, err)
	assert.Len(t, versions, 1)
}
