package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"slices"
	"sync"

	"gonum.org/v1/gonum/stat"
)

// Engine owns the rolling history and both models. Every public call
// runs append, retrain and inference as one critical section, so
// concurrent callers observe linearizable appends and never train on a
// partially appended buffer.
type Engine struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	buffer  *RollingBuffer
	trend   *TrendModel
	outlier *OutlierModel
	ready   bool
	rng     *rand.Rand
	last    *PredictionResult
}

// NewEngine validates cfg and returns an empty engine.
func NewEngine(cfg Config, logger *slog.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Engine{
		cfg:     cfg,
		logger:  logger.With("component", "analytics_engine"),
		buffer:  NewRollingBuffer(cfg.Capacity),
		trend:   NewTrendModel(),
		outlier: NewOutlierModel(cfg.Outlier),
		rng:     rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779e97f4c7c15)),
	}, nil
}

// Config returns the engine configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Predict forecasts the next value. Empty batches do not touch the
// history; other batches are appended before any inference. Predict
// never fails: problems surface as a ModelErrorFallback result.
func (e *Engine) Predict(ctx context.Context, batch []float64) (result PredictionResult) {
	e.mu.Lock()
	defer e.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			result = e.predictionFailure(ctx, &Failure{Kind: FailureInternal, Err: fmt.Errorf("panic: %v", r)})
		}
		e.remember(result)
	}()

	if err := checkFinite(batch); err != nil {
		return e.predictionFailure(ctx, classifyFailure(err, FailureInvalidInput))
	}

	if len(batch) > 0 {
		e.appendLocked(ctx, batch)
	}

	switch {
	case e.ready:
		return e.forecastLocked(ctx)
	case len(batch) == 0:
		return e.noDataFallback()
	default:
		return e.averageFallback(batch)
	}
}

// DetectAnomalies flags abnormal positions of batch. The batch's own
// z-scores are always used; once the engine is ready the isolation forest
// is refit on the history and its verdicts on the newly appended samples
// are merged in. Batches shorter than MinAnomalyBatch are not appended.
func (e *Engine) DetectAnomalies(ctx context.Context, batch []float64) (result AnomalyResult) {
	if len(batch) < e.cfg.MinAnomalyBatch {
		return AnomalyResult{
			Indices:     []int{},
			Values:      []float64{},
			Method:      MethodInsufficientData,
			TotalPoints: len(batch),
			Outcome:     OutcomeInsufficientData,
			Message:     fmt.Sprintf("Need at least %d data points for anomaly detection", e.cfg.MinAnomalyBatch),
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			result = e.detectionFailure(ctx, batch, &Failure{Kind: FailureInternal, Err: fmt.Errorf("panic: %v", r)})
		}
	}()

	if err := checkFinite(batch); err != nil {
		return e.detectionFailure(ctx, batch, classifyFailure(err, FailureInvalidInput))
	}

	threshold := e.cfg.ZThreshold
	zHits := zScoreOutliers(batch, threshold)
	iqr := iqrBounds(batch)

	e.appendLocked(ctx, batch)

	if !e.ready {
		return e.anomalyResult(batch, zHits, nil, MethodZScore, &threshold, iqr)
	}

	modelHits, failure := e.isolateLocked(len(batch))
	if failure != nil {
		return e.detectionFailure(ctx, batch, failure)
	}
	return e.anomalyResult(batch, zHits, modelHits, MethodCombined, &threshold, iqr)
}

// Snapshot returns the current buffer size, capacity, readiness latch
// and last prediction.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap := Snapshot{
		Buffered:  e.buffer.Len(),
		Capacity:  e.buffer.Capacity(),
		TotalSeen: e.buffer.TotalSeen(),
		Ready:     e.ready,
	}
	if e.last != nil {
		last := *e.last
		snap.Last = &last
	}
	return snap
}

// Ready reports whether the readiness latch has tripped.
func (e *Engine) Ready() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ready
}

// History returns a copy of the buffered samples, oldest first.
func (e *Engine) History() []float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.buffer.Values()
}

// appendLocked appends batch and trips the readiness latch. The latch is
// only ever set, never cleared.
func (e *Engine) appendLocked(ctx context.Context, batch []float64) {
	e.buffer.Append(batch...)
	if !e.ready && e.buffer.Len() >= e.cfg.ReadyThreshold {
		e.ready = true
		e.logger.InfoContext(ctx, "analytics models ready",
			slog.Int("buffered", e.buffer.Len()),
			slog.Int("ready_threshold", e.cfg.ReadyThreshold))
	}
}

func (e *Engine) forecastLocked(ctx context.Context) PredictionResult {
	history := e.buffer.Values()
	if err := e.trend.Fit(history); err != nil {
		return e.predictionFailure(ctx, classifyFailure(err, FailureModelFit))
	}

	next := float64(len(history))
	prediction, err := e.trend.Forecast(next)
	if err == nil && (math.IsNaN(prediction) || math.IsInf(prediction, 0)) {
		err = fmt.Errorf("forecast at index %v is not finite", next)
	}
	if err != nil {
		return e.predictionFailure(ctx, classifyFailure(err, FailureModelEval))
	}

	mean, std := stat.PopMeanStdDev(history, nil)
	cv := std / (math.Abs(mean) + cvEpsilon)
	confidence := clamp(1-cv*e.cfg.ConfidenceDamping, MinConfidence, 1)

	return PredictionResult{
		Prediction: prediction,
		Confidence: confidence,
		ModelUsed:  ModelLinearRegression,
		Message:    fmt.Sprintf("Linear regression over %d buffered points", len(history)),
		Outcome:    OutcomeReady,
		DataPoints: len(history),
	}
}

func (e *Engine) noDataFallback() PredictionResult {
	lo, hi := e.cfg.FallbackMin, e.cfg.FallbackMax
	return PredictionResult{
		Prediction: lo + e.rng.Float64()*(hi-lo),
		Confidence: e.cfg.FallbackConfidence,
		ModelUsed:  ModelFallbackNoData,
		Message:    "No data provided, returning default estimate",
		Outcome:    OutcomeFallback,
		DataPoints: e.buffer.Len(),
	}
}

func (e *Engine) averageFallback(batch []float64) PredictionResult {
	prediction := stat.Mean(batch, nil)
	if j := e.cfg.AverageJitter; j > 0 {
		prediction += (e.rng.Float64()*2 - 1) * j
	}

	return PredictionResult{
		Prediction: prediction,
		Confidence: e.cfg.AverageConfidence,
		ModelUsed:  ModelAverage,
		Message: fmt.Sprintf("Collecting history: %d of %d points before model training",
			e.buffer.Len(), e.cfg.ReadyThreshold),
		Outcome:    OutcomeFallback,
		DataPoints: e.buffer.Len(),
	}
}

func (e *Engine) predictionFailure(ctx context.Context, failure *Failure) PredictionResult {
	e.logger.WarnContext(ctx, "prediction fell back after failure",
		slog.String("failure_kind", string(failure.Kind)),
		slog.String("error", failure.Err.Error()))

	var prediction float64
	if e.buffer.Len() > 0 {
		prediction = stat.Mean(e.buffer.Values(), nil)
	}
	if math.IsNaN(prediction) || math.IsInf(prediction, 0) {
		prediction = 0
	}
	return PredictionResult{
		Prediction: prediction,
		Confidence: MinConfidence,
		ModelUsed:  ModelErrorFallback,
		Message:    failure.Error(),
		Outcome:    OutcomeFailed,
		DataPoints: e.buffer.Len(),
		Failure:    failure,
	}
}

func (e *Engine) remember(result PredictionResult) {
	e.last = &result
}

// isolateLocked refits the forest on the history and returns the batch
// positions it flags among the last n appended samples.
func (e *Engine) isolateLocked(n int) ([]int, *Failure) {
	if err := e.outlier.Fit(e.buffer.Values()); err != nil {
		return nil, classifyFailure(err, FailureModelFit)
	}

	recent := e.buffer.Tail(n)
	flags, err := e.outlier.Predict(recent)
	if err != nil {
		return nil, classifyFailure(err, FailureModelEval)
	}

	// A batch longer than the buffer only has its tail retained
	offset := n - len(recent)
	var hits []int
	for i, flagged := range flags {
		if flagged {
			hits = append(hits, offset+i)
		}
	}
	return hits, nil
}

func (e *Engine) anomalyResult(batch []float64, zHits, modelHits []int, method Method, threshold *float64, iqr *IQRBounds) AnomalyResult {
	indices := unionSorted(zHits, modelHits)
	values := make([]float64, len(indices))
	for i, idx := range indices {
		values[i] = batch[idx]
	}

	return AnomalyResult{
		Indices:     indices,
		Values:      values,
		Method:      method,
		Threshold:   threshold,
		ZScoreHits:  len(zHits),
		ModelHits:   len(modelHits),
		TotalPoints: len(batch),
		IQR:         iqr,
		Message:     fmt.Sprintf("Found %d anomalies in %d data points", len(indices), len(batch)),
		Outcome:     OutcomeReady,
	}
}

func (e *Engine) detectionFailure(ctx context.Context, batch []float64, failure *Failure) AnomalyResult {
	e.logger.WarnContext(ctx, "anomaly detection fell back after failure",
		slog.String("failure_kind", string(failure.Kind)),
		slog.String("error", failure.Err.Error()))

	return AnomalyResult{
		Indices:     []int{},
		Values:      []float64{},
		Method:      MethodErrorFallback,
		TotalPoints: len(batch),
		Message:     failure.Error(),
		Outcome:     OutcomeFailed,
		Failure:     failure,
	}
}

// zScoreOutliers returns the positions whose absolute z-score against the
// batch's own population mean and deviation exceeds threshold. A constant
// batch has no outliers.
func zScoreOutliers(batch []float64, threshold float64) []int {
	mean, std := stat.PopMeanStdDev(batch, nil)
	if std == 0 || math.IsNaN(std) {
		return nil
	}

	var hits []int
	for i, v := range batch {
		if math.Abs(v-mean)/std > threshold {
			hits = append(hits, i)
		}
	}
	return hits
}

func iqrBounds(batch []float64) *IQRBounds {
	sorted := slices.Clone(batch)
	slices.Sort(sorted)

	q1, q3 := Percentile(sorted, 0.25), Percentile(sorted, 0.75)
	iqr := q3 - q1
	return &IQRBounds{Lower: q1 - 1.5*iqr, Upper: q3 + 1.5*iqr}
}

// unionSorted merges two ascending index lists without duplicates.
func unionSorted(a, b []int) []int {
	out := make([]int, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) || j < len(b) {
		switch {
		case j >= len(b) || (i < len(a) && a[i] < b[j]):
			out = append(out, a[i])
			i++
		case i >= len(a) || b[j] < a[i]:
			out = append(out, b[j])
			j++
		default:
			out = append(out, a[i])
			i++
			j++
		}
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
