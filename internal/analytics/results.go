package analytics

import (
	"errors"
	"fmt"
)

// Outcome classifies which rung of the fallback ladder produced a result.
type Outcome string

const (
	OutcomeReady            Outcome = "ready"
	OutcomeFallback         Outcome = "fallback"
	OutcomeInsufficientData Outcome = "insufficient_data"
	OutcomeFailed           Outcome = "failed"
)

// ModelUsed labels the source of a prediction.
type ModelUsed string

const (
	ModelFallbackNoData   ModelUsed = "fallback_no_data"
	ModelAverage          ModelUsed = "average"
	ModelLinearRegression ModelUsed = "linear_regression"
	ModelErrorFallback    ModelUsed = "error_fallback"
)

// Method labels how an anomaly set was produced.
type Method string

const (
	MethodInsufficientData Method = "insufficient_data"
	MethodZScore           Method = "z_score"
	MethodCombined         Method = "combined_zscore_isolationforest"
	MethodErrorFallback    Method = "error_fallback"
)

// FailureKind names the stage at which an engine call failed.
type FailureKind string

const (
	FailureInvalidInput FailureKind = "invalid_input"
	FailureModelFit     FailureKind = "model_fit"
	FailureModelEval    FailureKind = "model_eval"
	FailureInternal     FailureKind = "internal"
)

// Failure is the reason an engine call took the error fallback.
type Failure struct {
	Kind FailureKind
	Err  error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %v", f.Kind, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// classifyFailure maps an error returned by a model to a failure kind.
func classifyFailure(err error, fallback FailureKind) *Failure {
	kind := fallback
	switch {
	case errors.Is(err, ErrInvalidInput):
		kind = FailureInvalidInput
	case errors.Is(err, ErrModelFit):
		kind = FailureModelFit
	case errors.Is(err, ErrModelNotFitted):
		kind = FailureModelEval
	}
	return &Failure{Kind: kind, Err: err}
}

// PredictionResult is the outcome of Engine.Predict.
type PredictionResult struct {
	Prediction float64
	Confidence float64
	ModelUsed  ModelUsed
	Message    string
	Outcome    Outcome
	// DataPoints is the buffer length after the call.
	DataPoints int
	Failure    *Failure
}

// IQRBounds are the Tukey fences q1-1.5*IQR and q3+1.5*IQR of a batch.
type IQRBounds struct {
	Lower float64
	Upper float64
}

// AnomalyResult is the outcome of Engine.DetectAnomalies. Indices are
// positions within the input batch, ascending and unique.
type AnomalyResult struct {
	Indices []int
	Values  []float64
	Method  Method
	// Threshold is the z-score cut-off, nil when no z-scores were computed.
	Threshold *float64
	// ZScoreHits and ModelHits count the candidates each detector produced
	// before the union.
	ZScoreHits  int
	ModelHits   int
	TotalPoints int
	IQR         *IQRBounds
	Message     string
	Outcome     Outcome
	Failure     *Failure
}

// Snapshot is a point-in-time view of the engine state.
type Snapshot struct {
	Buffered  int
	Capacity  int
	TotalSeen int
	Ready     bool
	// Last is the most recent prediction, nil before the first one.
	Last *PredictionResult
}
