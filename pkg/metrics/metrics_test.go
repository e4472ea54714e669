package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/pedigree/pkg/core"
)

func TestObserver_CountsEvents(t *testing.T) {
	o := New()

	o.Notify(core.NewEvent(core.EventSaveStart, 0, "", nil))
	assert.Equal(t, 1.0, testutil.ToFloat64(o.saving))

	o.Notify(core.NewEvent(core.EventSaveFinish, 0, "", nil))
	o.Notify(core.NewEvent(core.EventSaveFailure, 0, "", errors.New("boom")))

	assert.Equal(t, 0.0, testutil.ToFloat64(o.saving))
	assert.Equal(t, 1.0, testutil.ToFloat64(o.events.WithLabelValues("save.start")))
	assert.Equal(t, 1.0, testutil.ToFloat64(o.events.WithLabelValues("save.failure")))
	assert.Equal(t, 1, testutil.CollectAndCount(o.saveDuration))
}

func TestObserver_LoadDurationPerSequence(t *testing.T) {
	o := New()
	o.Notify(core.NewEvent(core.EventLoadStart, 1, "", nil))
	o.Notify(core.NewEvent(core.EventLoadStart, 2, "", nil))
	o.Notify(core.NewEvent(core.EventLoadFinish, 2, "", nil))

	o.mu.Lock()
	_, pending := o.loadStart[1]
	_, done := o.loadStart[2]
	o.mu.Unlock()
	assert.True(t, pending)
	assert.False(t, done)
}

func TestObserver_Handler(t *testing.T) {
	o := New()
	o.Notify(core.NewEvent(core.EventGraphClear, 1, "", nil))

	srv := httptest.NewServer(o.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.True(t, strings.Contains(string(body), `pedigree_events_total{type="graph.clear"} 1`))
}
