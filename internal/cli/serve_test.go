package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tessera/internal/datastore"
	"github.com/roach88/tessera/internal/metrics"
	"github.com/roach88/tessera/internal/model"
	"github.com/roach88/tessera/internal/store"
	"github.com/roach88/tessera/internal/testutil"
)

type serveFixture struct {
	ds    *datastore.DataStore
	ctors map[string]*model.Constructor
	srv   *httptest.Server
}

func newServeFixture(t *testing.T) *serveFixture {
	t.Helper()
	reg, ctors := testutil.Registry(t)
	promReg := prometheus.NewRegistry()
	ds := datastore.New(reg, store.MemoryFactory(), datastore.WithMetrics(metrics.New(promReg)))
	t.Cleanup(func() { ds.Close() })

	srv := httptest.NewServer(NewServer(ds, ctors, promReg, zerolog.Nop()).Router())
	t.Cleanup(srv.Close)
	return &serveFixture{ds: ds, ctors: ctors, srv: srv}
}

func (f *serveFixture) save(t *testing.T, modelName string, fields map[string]any) *model.Record {
	t.Helper()
	rec, err := f.ds.Save(context.Background(), testutil.MustNew(t, f.ctors[modelName], fields))
	require.NoError(t, err)
	return rec
}

func getJSON(t *testing.T, url string, v any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	return resp.StatusCode
}

func TestServe_Health(t *testing.T) {
	f := newServeFixture(t)

	var body map[string]string
	assert.Equal(t, http.StatusOK, getJSON(t, f.srv.URL+"/health", &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestServe_ListModels(t *testing.T) {
	f := newServeFixture(t)

	var body struct {
		Models []string `json:"models"`
	}
	assert.Equal(t, http.StatusOK, getJSON(t, f.srv.URL+"/api/models", &body))
	assert.Equal(t, []string{"Comment", "LocalModel", "Model", "Post"}, body.Models)
}

func TestServe_QueryAndGet(t *testing.T) {
	f := newServeFixture(t)
	hi := f.save(t, "Post", map[string]any{"title": "hi", "rating": 5})
	f.save(t, "Post", map[string]any{"title": "lo", "rating": 1})

	var all QueryResult
	assert.Equal(t, http.StatusOK, getJSON(t, f.srv.URL+"/api/models/Post", &all))
	assert.Equal(t, 2, all.Count)

	var high QueryResult
	assert.Equal(t, http.StatusOK, getJSON(t, f.srv.URL+"/api/models/Post?where=rating+ge+4", &high))
	require.Equal(t, 1, high.Count)
	assert.Equal(t, hi.ID(), high.Records[0].ID)

	var paged QueryResult
	assert.Equal(t, http.StatusOK, getJSON(t, f.srv.URL+"/api/models/Post?page=1&limit=1", &paged))
	require.Equal(t, 1, paged.Count)
	assert.Equal(t, "lo", paged.Records[0].Fields["title"])

	var one recordView
	assert.Equal(t, http.StatusOK, getJSON(t, f.srv.URL+"/api/models/Post/"+hi.ID(), &one))
	assert.Equal(t, "hi", one.Fields["title"])
}

func TestServe_Errors(t *testing.T) {
	f := newServeFixture(t)

	tests := []struct {
		path   string
		status int
	}{
		{"/api/models/Nope", http.StatusNotFound},
		{"/api/models/Address", http.StatusNotFound},
		{"/api/models/Post/missing", http.StatusNotFound},
		{"/api/models/Post?where=nope+eq+1", http.StatusBadRequest},
		{"/api/models/Post?where=justonefield", http.StatusBadRequest},
		{"/api/models/Post?page=x", http.StatusBadRequest},
		{"/api/events?model=Nope", http.StatusNotFound},
	}
	for _, tt := range tests {
		var body map[string]string
		assert.Equal(t, tt.status, getJSON(t, f.srv.URL+tt.path, &body), tt.path)
		assert.NotEmpty(t, body["error"], tt.path)
	}
}

func TestServe_Metrics(t *testing.T) {
	f := newServeFixture(t)
	f.save(t, "Post", map[string]any{"title": "x"})

	resp, err := http.Get(f.srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	found := false
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "#") && strings.Contains(line, "tessera_saves_total") {
			found = true
		}
	}
	assert.True(t, found, "saves counter exported")
}

func TestServe_EventStream(t *testing.T) {
	f := newServeFixture(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.srv.URL+"/api/events?model=Post&where=rating+ge+3", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/x-ndjson", resp.Header.Get("Content-Type"))

	// Headers are flushed after the subscription exists, so these saves
	// are observed.
	f.save(t, "Comment", map[string]any{"postID": "p"})
	f.save(t, "Post", map[string]any{"title": "low", "rating": 1})
	high := f.save(t, "Post", map[string]any{"title": "high", "rating": 4})

	var ev eventView
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&ev))
	assert.Equal(t, "INSERT", ev.Op)
	assert.Equal(t, high.ID(), ev.Record.ID)
	assert.Equal(t, int64(3), ev.Seq)
	assert.NotEmpty(t, ev.ID)
}
