package analytics

import (
	"fmt"
	"math"
	"slices"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// StatsResult holds the descriptive statistics of a single batch.
type StatsResult struct {
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	StdDev float64 `json:"std_dev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Q1     float64 `json:"q1"`
	Q3     float64 `json:"q3"`
	Count  int     `json:"count"`
	Sum    float64 `json:"sum"`
}

// ExtendedStats adds distribution shape measures on top of StatsResult.
type ExtendedStats struct {
	StatsResult
	Mode                   []float64 `json:"mode"`
	Range                  float64   `json:"range"`
	Variance               float64   `json:"variance"`
	CoefficientOfVariation float64   `json:"coefficient_of_variation"`
	Skewness               float64   `json:"skewness"`
	P10                    float64   `json:"p10"`
	P90                    float64   `json:"p90"`
}

// StatisticsCalculator computes descriptive statistics over a batch.
// It holds no state and is safe for concurrent use.
type StatisticsCalculator struct{}

// NewStatisticsCalculator returns a calculator.
func NewStatisticsCalculator() StatisticsCalculator {
	return StatisticsCalculator{}
}

// Compute returns mean, median, population standard deviation, extremes,
// quartiles, count and sum of batch. Quantiles interpolate linearly
// between order statistics at rank p*(n-1).
func (StatisticsCalculator) Compute(batch []float64) (StatsResult, error) {
	if err := checkBatch(batch); err != nil {
		return StatsResult{}, err
	}

	sorted := slices.Clone(batch)
	slices.Sort(sorted)

	mean, std := stat.PopMeanStdDev(batch, nil)

	return StatsResult{
		Mean:   mean,
		Median: Percentile(sorted, 0.5),
		StdDev: std,
		Min:    sorted[0],
		Max:    sorted[len(sorted)-1],
		Q1:     Percentile(sorted, 0.25),
		Q3:     Percentile(sorted, 0.75),
		Count:  len(batch),
		Sum:    floats.Sum(batch),
	}, nil
}

// ComputeExtended returns Compute's result plus mode, range, variance,
// coefficient of variation, population skewness and the 10th/90th
// percentiles.
func (c StatisticsCalculator) ComputeExtended(batch []float64) (ExtendedStats, error) {
	base, err := c.Compute(batch)
	if err != nil {
		return ExtendedStats{}, err
	}

	data := stats.Float64Data(batch)
	mode, err := stats.Mode(data)
	if err != nil {
		return ExtendedStats{}, fmt.Errorf("%w: mode: %v", ErrInvalidInput, err)
	}
	variance, err := stats.PopulationVariance(data)
	if err != nil {
		return ExtendedStats{}, fmt.Errorf("%w: variance: %v", ErrInvalidInput, err)
	}
	if mode == nil {
		mode = []float64{}
	}

	sorted := slices.Clone(batch)
	slices.Sort(sorted)

	ext := ExtendedStats{
		StatsResult: base,
		Mode:        mode,
		Range:       base.Max - base.Min,
		Variance:    variance,
		P10:         Percentile(sorted, 0.10),
		P90:         Percentile(sorted, 0.90),
	}
	if base.Mean != 0 {
		ext.CoefficientOfVariation = base.StdDev / math.Abs(base.Mean)
	}
	if base.StdDev > 0 {
		ext.Skewness = stat.Moment(3, batch, nil) / math.Pow(base.StdDev, 3)
	}
	return ext, nil
}

// Percentile returns the p-quantile (0..1) of an ascending slice using
// linear interpolation at index p*(n-1). It returns 0 for an empty slice.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[n-1]
	}

	index := p * float64(n-1)
	lower := int(math.Floor(index))
	upper := int(math.Ceil(index))
	if lower == upper {
		return sorted[lower]
	}

	weight := index - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}

// checkBatch rejects empty batches and non-finite samples.
func checkBatch(batch []float64) error {
	if len(batch) == 0 {
		return fmt.Errorf("%w: %w", ErrInvalidInput, ErrEmptyBatch)
	}
	return checkFinite(batch)
}

func checkFinite(batch []float64) error {
	for i, v := range batch {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %w at index %d", ErrInvalidInput, ErrNonFinite, i)
		}
	}
	return nil
}
