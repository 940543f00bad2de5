package analytics

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// TrendModel is an ordinary least squares fit of value against position.
// Positions are 0-based within the slice passed to Fit and are derived
// fresh on every fit.
type TrendModel struct {
	alpha  float64
	beta   float64
	points int
	fitted bool
}

// NewTrendModel returns an unfitted model.
func NewTrendModel() *TrendModel {
	return &TrendModel{}
}

// Fit regresses values on their indices. At least two points are required.
func (m *TrendModel) Fit(values []float64) error {
	if len(values) < 2 {
		return fmt.Errorf("%w: trend needs at least 2 points, got %d", ErrModelFit, len(values))
	}
	if err := checkFinite(values); err != nil {
		return fmt.Errorf("%w: %w", ErrModelFit, err)
	}

	xs := make([]float64, len(values))
	for i := range xs {
		xs[i] = float64(i)
	}

	alpha, beta := stat.LinearRegression(xs, values, nil, false)
	if math.IsNaN(alpha) || math.IsNaN(beta) || math.IsInf(alpha, 0) || math.IsInf(beta, 0) {
		return fmt.Errorf("%w: non-finite coefficients (alpha=%v, beta=%v)", ErrModelFit, alpha, beta)
	}

	m.alpha, m.beta = alpha, beta
	m.points = len(values)
	m.fitted = true
	return nil
}

// Forecast returns the fitted value at index.
func (m *TrendModel) Forecast(index float64) (float64, error) {
	if !m.fitted {
		return 0, ErrModelNotFitted
	}
	return m.alpha + m.beta*index, nil
}

// Coefficients returns the intercept and slope of the last fit.
func (m *TrendModel) Coefficients() (intercept, slope float64) {
	return m.alpha, m.beta
}

// Fitted reports whether Fit has succeeded at least once.
func (m *TrendModel) Fitted() bool {
	return m.fitted
}
