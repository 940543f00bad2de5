// Package analytics implements the online analytics engine behind the
// pulse analytics service.
//
// # Core Components
//
//   - buffer.go: RollingBuffer, the bounded sample history with FIFO eviction
//   - statistics.go: StatisticsCalculator, stateless descriptive statistics
//   - trend.go: TrendModel, least squares of value against buffer position
//   - isolation.go: OutlierModel, a seeded one-dimensional isolation forest
//   - engine.go: Engine, the lock-guarded owner of history and models
//
// # Fallback Ladder
//
// Prediction degrades in a fixed order. An empty batch on a cold engine
// yields a default estimate (ModelFallbackNoData). Until the buffer first
// reaches Config.ReadyThreshold the batch average is returned
// (ModelAverage). After that the trend model is refit on every call
// (ModelLinearRegression). Any failure along the way produces
// ModelErrorFallback with a typed Failure.
//
// Anomaly detection always scores the batch's own z-scores. Once the
// engine is ready the isolation forest is refit on the full buffer and
// its verdicts on the freshly appended samples are merged in
// (MethodCombined).
//
// # Usage Example
//
//	engine, err := analytics.NewEngine(analytics.DefaultConfig(), logger)
//	if err != nil {
//	    return err
//	}
//	result := engine.Predict(ctx, []float64{12.5, 13.1, 12.9})
//	fmt.Println(result.ModelUsed, result.Prediction)
//
// # Concurrency
//
// Engine methods are safe for concurrent use. StatisticsCalculator holds
// no state at all.
package analytics
