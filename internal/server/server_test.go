package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/pedigree/pkg/adapters/memory"
	"github.com/aretw0/pedigree/pkg/adapters/rest"
	"github.com/aretw0/pedigree/pkg/core"
	"github.com/aretw0/pedigree/pkg/engine"
	"github.com/aretw0/pedigree/pkg/metrics"
	"github.com/aretw0/pedigree/pkg/proband"
)

const doc = `{"schemaVersion":3,"graph":{"persons":[{"id":0,"firstName":"Ada & <Co>","gender":"F"}],"relationships":[]},"settings":{}}`

type fixture struct {
	store  *memory.Store
	broker *engine.Broker
	http   *httptest.Server
}

func newFixture(t *testing.T, config Config) *fixture {
	t.Helper()
	f := &fixture{store: memory.NewStore(), broker: engine.NewBroker()}
	if config.Store == nil {
		config.Store = f.store
	}
	config.Broker = f.broker
	srv, err := New(config)
	require.NoError(t, err)
	f.http = httptest.NewServer(srv.Handler())
	t.Cleanup(f.http.Close)
	return f
}

func (f *fixture) client(t *testing.T, token string) *rest.Client {
	t.Helper()
	c, err := rest.NewClient(rest.Config{BaseURL: f.http.URL, Token: token})
	require.NoError(t, err)
	return c
}

// waitFor polls a condition until it returns true or timeout expires.
func waitFor(t *testing.T, timeout time.Duration, condition func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Errorf("timeout waiting for: %s", msg)
}

func TestNew_RequiresStore(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestRoundTripThroughRestClient(t *testing.T) {
	f := newFixture(t, Config{})
	c := f.client(t, "")
	ctx := context.Background()

	text, err := c.FetchDocument(ctx)
	require.NoError(t, err)
	assert.Empty(t, text, "empty store serves an empty data property")

	require.NoError(t, c.PersistDocument(core.WithChangeReason(ctx, "first"), doc, []byte("<svg/>")))
	require.NoError(t, c.PersistDocument(ctx, doc+" ", nil))

	text, err = c.FetchDocument(ctx)
	require.NoError(t, err)
	assert.Equal(t, doc+" ", text)

	versions, err := c.Versions(ctx)
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, "2", versions[0].ID)
	assert.Equal(t, "first", versions[1].Message)

	old, err := c.FetchVersion(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, doc, old)

	_, err = c.FetchVersion(ctx, "99")
	assert.ErrorIs(t, err, core.ErrVersionNotFound)
}

func TestPatientObject(t *testing.T) {
	birth := "1815-12-10"
	src := proband.StaticSource{FirstName: "Ada", LastName: "Lovelace", Gender: core.GenderFemale, BirthDate: &birth}
	f := newFixture(t, Config{Source: src})

	p, err := f.client(t, "").FetchSubjectMetadata(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Ada", p.FirstName)
	assert.Equal(t, "Lovelace", p.LastName)
	assert.Equal(t, core.GenderFemale, p.Gender)
	require.NotNil(t, p.BirthDate)
	assert.Equal(t, birth, *p.BirthDate)
	assert.Nil(t, p.DeathDate)
}

func TestPatientObject_NoSource(t *testing.T) {
	f := newFixture(t, Config{})
	_, err := f.client(t, "").FetchSubjectMetadata(context.Background())
	assert.Error(t, err)
}

func TestReadOnly(t *testing.T) {
	f := newFixture(t, Config{ReadOnly: true})
	err := f.client(t, "").PersistDocument(context.Background(), doc, nil)
	assert.ErrorIs(t, err, core.ErrReadOnly)

	store := memory.NewStore()
	store.SetReadOnly(true)
	f = newFixture(t, Config{Store: store})
	err = f.client(t, "").PersistDocument(context.Background(), doc, nil)
	assert.ErrorIs(t, err, core.ErrReadOnly)
}

func TestTokens(t *testing.T) {
	f := newFixture(t, Config{ViewToken: "v", EditToken: "e"})
	ctx := context.Background()

	_, err := f.client(t, "").FetchDocument(ctx)
	var se *rest.StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusUnauthorized, se.Code)

	_, err = f.client(t, "v").FetchDocument(ctx)
	assert.NoError(t, err)

	err = f.client(t, "v").PersistDocument(ctx, doc, nil)
	assert.ErrorIs(t, err, core.ErrReadOnly, "view token cannot save")

	err = f.client(t, "e").PersistDocument(ctx, doc, nil)
	assert.NoError(t, err)

	resp, err := http.Get(f.http.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestPost_RejectsBadRequests(t *testing.T) {
	f := newFixture(t, Config{})
	target := f.http.URL + "/" + rest.ObjectPath(rest.PedigreeClass)

	resp, err := http.PostForm(target+"?method=PUT", url.Values{"other": {"x"}})
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.PostForm(target+"?method=DELETE", url.Values{"property#data": {doc}})
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	obs := metrics.New()
	f := newFixture(t, Config{Metrics: obs.Handler()})
	obs.Notify(core.NewEvent(core.EventSaveStart, 0, "", nil))

	resp, err := http.Get(f.http.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestEventsWebSocket(t *testing.T) {
	f := newFixture(t, Config{EditToken: "e"})
	wsURL := "ws" + strings.TrimPrefix(f.http.URL, "http") + "/events"

	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	if resp != nil {
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, http.Header{"Authorization": {"Bearer e"}})
	require.NoError(t, err)
	defer conn.Close()

	waitFor(t, 2*time.Second, func() bool { return f.broker.Subscribers() == 1 }, "subscription")

	// A remote save is announced to listeners.
	require.NoError(t, f.client(t, "e").PersistDocument(context.Background(), doc, nil))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var m Message
	require.NoError(t, json.Unmarshal(data, &m))
	assert.Equal(t, string(core.EventStoreChanged), m.Type)

	f.broker.Publish(core.NewEvent(core.EventSaveFailure, 0, "", errors.New("disk full")))
	_, data, err = conn.ReadMessage()
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &m))
	assert.Equal(t, "disk full", m.Error)

	conn.Close()
	waitFor(t, 2*time.Second, func() bool { return f.broker.Subscribers() == 0 }, "unsubscribe")
}
