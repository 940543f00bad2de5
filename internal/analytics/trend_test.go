package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrendModel_Fit(t *testing.T) {
	tests := []struct {
		name      string
		values    []float64
		intercept float64
		slope     float64
		forecast  float64
	}{
		{"perfect line", []float64{2, 4, 6}, 2, 2, 8},
		{"flat series", []float64{5, 5, 5, 5}, 5, 0, 5},
		{"decreasing", []float64{10, 8, 6, 4, 2}, 10, -2, 0},
		{"two points", []float64{1, 3}, 1, 2, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewTrendModel()
			require.NoError(t, m.Fit(tt.values))
			assert.True(t, m.Fitted())

			intercept, slope := m.Coefficients()
			assert.InDelta(t, tt.intercept, intercept, 1e-9)
			assert.InDelta(t, tt.slope, slope, 1e-9)

			got, err := m.Forecast(float64(len(tt.values)))
			require.NoError(t, err)
			assert.InDelta(t, tt.forecast, got, 1e-9)
		})
	}
}

func TestTrendModel_Errors(t *testing.T) {
	t.Run("forecast before fit", func(t *testing.T) {
		_, err := NewTrendModel().Forecast(1)
		assert.ErrorIs(t, err, ErrModelNotFitted)
	})

	t.Run("too few points", func(t *testing.T) {
		err := NewTrendModel().Fit([]float64{1})
		assert.ErrorIs(t, err, ErrModelFit)
	})

	t.Run("failed refit keeps previous coefficients", func(t *testing.T) {
		m := NewTrendModel()
		require.NoError(t, m.Fit([]float64{1, 2}))
		require.Error(t, m.Fit(nil))

		got, err := m.Forecast(2)
		require.NoError(t, err)
		assert.InDelta(t, 3, got, 1e-9)
	})
}
