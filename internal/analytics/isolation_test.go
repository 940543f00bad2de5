package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clusterWithSpike returns n values near 10 followed by a single spike.
func clusterWithSpike(n int, spike float64) []float64 {
	values := make([]float64, 0, n+1)
	for i := 0; i < n; i++ {
		values = append(values, 10+float64(i%5)*0.1)
	}
	return append(values, spike)
}

func TestOutlierModel_FlagsSpike(t *testing.T) {
	values := clusterWithSpike(50, 100)

	m := NewOutlierModel(DefaultOutlierConfig())
	require.NoError(t, m.Fit(values))

	assert.Greater(t, m.Score(100), m.Score(10.2))
	assert.Greater(t, m.Score(100), 0.5)

	flags, err := m.Predict(values)
	require.NoError(t, err)
	require.Len(t, flags, len(values))
	assert.True(t, flags[len(flags)-1], "spike should be flagged")

	flagged := 0
	for _, f := range flags {
		if f {
			flagged++
		}
	}
	// contamination 0.1 bounds the share of flagged training samples
	assert.LessOrEqual(t, flagged, len(values)/10+1)
}

func TestOutlierModel_ConstantValues(t *testing.T) {
	values := []float64{3, 3, 3, 3, 3, 3, 3, 3}

	m := NewOutlierModel(DefaultOutlierConfig())
	require.NoError(t, m.Fit(values))

	flags, err := m.Predict(values)
	require.NoError(t, err)
	for i, f := range flags {
		assert.False(t, f, "index %d", i)
	}
}

func TestOutlierModel_Deterministic(t *testing.T) {
	values := clusterWithSpike(30, -40)

	a := NewOutlierModel(DefaultOutlierConfig())
	b := NewOutlierModel(DefaultOutlierConfig())
	require.NoError(t, a.Fit(values))
	require.NoError(t, b.Fit(values))

	for _, v := range []float64{-40, 10, 10.3, 55} {
		assert.Equal(t, a.Score(v), b.Score(v))
	}
	assert.Equal(t, a.Threshold(), b.Threshold())

	// refitting the same data reproduces the same forest
	before := a.Score(10.1)
	require.NoError(t, a.Fit(values))
	assert.Equal(t, before, a.Score(10.1))
}

func TestOutlierModel_Errors(t *testing.T) {
	m := NewOutlierModel(OutlierConfig{})

	_, err := m.Predict([]float64{1})
	assert.ErrorIs(t, err, ErrModelNotFitted)
	assert.Equal(t, 0.0, m.Score(1))

	assert.ErrorIs(t, m.Fit([]float64{1}), ErrModelFit)
	assert.False(t, m.Fitted())
}

func TestAveragePathLength(t *testing.T) {
	assert.Equal(t, 0.0, averagePathLength(0))
	assert.Equal(t, 0.0, averagePathLength(1))
	assert.Equal(t, 1.0, averagePathLength(2))
	assert.InDelta(t, 10.2448, averagePathLength(256), 1e-3)
}
