package observation

import (
	"bytes"
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/datahub/config"
	"github.com/c360/datahub/pkg/timestamp"
	"github.com/c360/datahub/restree"
	"github.com/c360/datahub/sample"
)

func newTestTree(t *testing.T) *restree.Tree {
	t.Helper()
	cfg := config.Default()
	cfg.Pools.EntryCapacity = 64
	return restree.New(cfg, nil)
}

func TestFacade_GuardRejectsNonObservation(t *testing.T) {
	tree := newTestTree(t)
	in, err := tree.CreateInput(nil, "x", sample.Numeric, "")
	require.NoError(t, err)

	f := New(in, nil)

	assert.True(t, math.IsNaN(f.MinPeriod()))
	assert.True(t, math.IsNaN(f.HighLimit()))
	assert.True(t, math.IsNaN(f.LowLimit()))
	assert.True(t, math.IsNaN(f.ChangeBy()))
	assert.True(t, math.IsNaN(f.BackupPeriod()))
	assert.True(t, math.IsNaN(f.QueryMin()))
	assert.Equal(t, "", f.Transform())
	assert.Equal(t, "", f.Destination())
	assert.Equal(t, "", f.JSONExtractionPath())
	assert.Equal(t, 0, f.BufferMaxCount())

	// Setters are no-ops, not panics, and SetBufferMaxCount reports no error.
	assert.NotPanics(t, func() { f.SetMinPeriod(5) })
	assert.NoError(t, f.SetBufferMaxCount(10))
}

func TestFacade_PassesThroughOnObservation(t *testing.T) {
	tree := newTestTree(t)
	obs, err := tree.GetObservation(nil, "obs/temp")
	require.NoError(t, err)

	f := New(obs, nil)

	f.SetMinPeriod(2.5)
	assert.Equal(t, 2.5, f.MinPeriod())

	f.SetHighLimit(100)
	f.SetLowLimit(-10)
	assert.Equal(t, 100.0, f.HighLimit())
	assert.Equal(t, -10.0, f.LowLimit())

	f.SetChangeBy(1.5)
	assert.Equal(t, 1.5, f.ChangeBy())

	f.SetTransform("scale")
	assert.Equal(t, "scale", f.Transform())

	f.SetDestination("mqtt/out")
	assert.Equal(t, "mqtt/out", f.Destination())

	f.SetJSONExtractionPath("$.value")
	assert.Equal(t, "$.value", f.JSONExtractionPath())

	require.NoError(t, f.SetBufferMaxCount(16))
	assert.Equal(t, 16, f.BufferMaxCount())

	f.SetBackupPeriod(30)
	assert.Equal(t, 30.0, f.BackupPeriod())
}

func TestFacade_QueriesReflectPushedSamples(t *testing.T) {
	tree := newTestTree(t)
	obs, err := tree.GetObservation(nil, "obs/pressure")
	require.NoError(t, err)

	f := New(obs, nil)
	require.NoError(t, f.SetBufferMaxCount(8))

	p := sample.NewPool(8)
	for i, v := range []float64{2, 4, 6} {
		s, err := p.CreateNumeric(float64(i+1), v)
		require.NoError(t, err)
		require.NoError(t, obs.Resource().Push(s))
	}

	assert.Equal(t, 2.0, f.QueryMin())
	assert.Equal(t, 6.0, f.QueryMax())
	assert.Equal(t, 4.0, f.QueryMean())
}

func TestFacade_ReadBufferJson_NonObservationWritesEmptyArray(t *testing.T) {
	tree := newTestTree(t)
	in, err := tree.CreateInput(nil, "x", sample.Numeric, "")
	require.NoError(t, err)

	f := New(in, nil)
	var buf bytes.Buffer
	require.NoError(t, f.ReadBufferJson(&buf, math.NaN()))
	assert.Equal(t, "[]", buf.String())
}

func TestFacade_ReadBufferJson_FromOldest(t *testing.T) {
	tree := newTestTree(t)
	obs, err := tree.GetObservation(nil, "obs/flow")
	require.NoError(t, err)
	require.NoError(t, New(obs, nil).SetBufferMaxCount(8))

	p := sample.NewPool(8)
	for i, v := range []float64{1, 2, 3} {
		s, err := p.CreateNumeric(float64(i+1), v)
		require.NoError(t, err)
		require.NoError(t, obs.Resource().Push(s))
	}

	f := New(obs, nil)
	var buf bytes.Buffer
	require.NoError(t, f.ReadBufferJson(&buf, math.NaN()))

	var records []struct {
		T float64         `json:"t"`
		V json.RawMessage `json:"v"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &records))
	require.Len(t, records, 3)
	assert.Equal(t, 1.0, records[0].T)
	assert.Equal(t, 3.0, records[2].T)
}

func TestFacade_ReadBufferJson_AbsoluteCutoffExcludesOlderSamples(t *testing.T) {
	tree := newTestTree(t)
	obs, err := tree.GetObservation(nil, "obs/level")
	require.NoError(t, err)
	require.NoError(t, New(obs, nil).SetBufferMaxCount(8))

	now := float64(1_700_000_000) // well past the 30-year relative/absolute boundary
	p := sample.NewPool(8)
	old, err := p.CreateNumeric(now-100, 11)
	require.NoError(t, err)
	require.NoError(t, obs.Resource().Push(old))
	recent, err := p.CreateNumeric(now-1, 22)
	require.NoError(t, err)
	require.NoError(t, obs.Resource().Push(recent))

	// startAfter as an absolute epoch timestamp between the two samples.
	f := New(obs, nil)
	var buf bytes.Buffer
	require.NoError(t, f.ReadBufferJson(&buf, now-50))

	var records []struct {
		T float64 `json:"t"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &records))
	require.Len(t, records, 1)
	assert.Equal(t, now-1, records[0].T)
}

func TestFacade_ReadBufferJson_RelativeCutoffMeasuresFromNow(t *testing.T) {
	tree := newTestTree(t)
	obs, err := tree.GetObservation(nil, "obs/relative")
	require.NoError(t, err)
	require.NoError(t, New(obs, nil).SetBufferMaxCount(8))

	nowSeconds := float64(timestamp.Now()) / 1000.0
	p := sample.NewPool(8)
	stale, err := p.CreateNumeric(nowSeconds-3600, 1)
	require.NoError(t, err)
	require.NoError(t, obs.Resource().Push(stale))
	fresh, err := p.CreateNumeric(nowSeconds-1, 2)
	require.NoError(t, err)
	require.NoError(t, obs.Resource().Push(fresh))

	f := New(obs, nil)
	var buf bytes.Buffer
	// 60, well under the 30-year boundary, is interpreted as "60 seconds ago".
	require.NoError(t, f.ReadBufferJson(&buf, 60))

	var records []struct {
		T float64 `json:"t"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &records))
	require.Len(t, records, 1, "only the sample within the last 60 seconds should survive")
	assert.Equal(t, fresh.Timestamp(), records[0].T)
}
