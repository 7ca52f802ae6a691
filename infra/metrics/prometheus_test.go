package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cake"
)

func TestObserverExportsLifecycle(t *testing.T) {
	reg := prometheus.NewRegistry()
	obs := New(reg)
	cake.SetObserver(obs)
	t.Cleanup(func() { cake.SetObserver(nil) })

	o := cake.MakeOwner("x")
	assert.Equal(t, 1.0, testutil.ToFloat64(obs.live))

	o.Delete()
	o.Release()

	assert.Equal(t, 0.0, testutil.ToFloat64(obs.live))
	assert.Equal(t, 1.0, testutil.ToFloat64(obs.events.WithLabelValues("object_deleted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(obs.events.WithLabelValues("object_destroyed")))

	err := testutil.GatherAndCompare(reg, strings.NewReader(`
# HELP cake_live_records Owner and proxy records currently allocated.
# TYPE cake_live_records gauge
cake_live_records 0
`), "cake_live_records")
	require.NoError(t, err)
}

func TestObserverDeclaresEveryEvent(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)

	n, err := testutil.GatherAndCount(reg, "cake_lifecycle_events_total")
	require.NoError(t, err)
	assert.Equal(t, cake.NumEvents, n)
}

func TestObserverIgnoresUnknownEvent(t *testing.T) {
	obs := New(prometheus.NewRegistry())
	assert.NotPanics(t, func() { obs.Observe(cake.Event(250), 1) })
}
