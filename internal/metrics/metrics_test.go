package metrics

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.RecordSave("Post", "INSERT")
	m.RecordSave("Post", "INSERT")
	m.RecordSave("Post", "UPDATE")
	m.RecordDelete(3)
	m.RecordEvent("Post", "DELETE")
	m.SetSubscriptions(2)
	m.RecordError("not_found")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.SavesTotal.WithLabelValues("Post", "INSERT")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SavesTotal.WithLabelValues("Post", "UPDATE")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.DeletesTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EventsPublishedTotal.WithLabelValues("Post", "DELETE")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ActiveSubscriptions))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ErrorsTotal.WithLabelValues("not_found")))

	expected := `
# HELP tessera_deletes_total Total number of deleted records
# TYPE tessera_deletes_total counter
tessera_deletes_total 3
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "tessera_deletes_total"))
}

func TestRecordQueryAndInit(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.RecordQuery("Post", "where", 5*time.Millisecond)
	m.RecordStorageInit(nil, time.Millisecond)
	m.RecordStorageInit(errors.New("boom"), time.Millisecond)
	m.RecordExclusiveWait(time.Microsecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.QueriesTotal.WithLabelValues("Post", "where")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StorageInitsTotal.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StorageInitsTotal.WithLabelValues("error")))

	count, err := testutil.GatherAndCount(reg, "tessera_query_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordSave("Post", "INSERT")
		m.RecordDelete(1)
		m.RecordQuery("Post", "all", time.Millisecond)
		m.RecordEvent("Post", "INSERT")
		m.SetSubscriptions(1)
		m.RecordStorageInit(nil, time.Millisecond)
		m.RecordExclusiveWait(time.Millisecond)
		m.RecordError("x")
	})
}

func TestNew_NilRegisterer(t *testing.T) {
	assert.NotPanics(t, func() {
		New(nil).RecordSave("Post", "INSERT")
		New(nil).RecordSave("Post", "INSERT")
	})
}
