package testutil

// LinearSeries returns n points start, start+step, ...
func LinearSeries(n int, start, step float64) []float64 {
	series := make([]float64, n)
	for i := range series {
		series[i] = start + float64(i)*step
	}
	return series
}

// ConstantSeries returns n copies of v
func ConstantSeries(n int, v float64) []float64 {
	series := make([]float64, n)
	for i := range series {
		series[i] = v
	}
	return series
}

// WithSpike returns a copy of series with series[i] replaced by v
func WithSpike(series []float64, i int, v float64) []float64 {
	out := append([]float64(nil), series...)
	out[i] = v
	return out
}

// Oscillating returns n points alternating between base and base+amplitude
func Oscillating(n int, base, amplitude float64) []float64 {
	series := make([]float64, n)
	for i := range series {
		series[i] = base
		if i%2 == 1 {
			series[i] += amplitude
		}
	}
	return series
}
