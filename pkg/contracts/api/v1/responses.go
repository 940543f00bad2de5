package api

import "time"

// PredictResponse is returned by POST /predict.
type PredictResponse struct {
	Prediction float64   `json:"prediction"`
	Confidence float64   `json:"confidence"`
	ModelUsed  string    `json:"model_used"`
	Message    string    `json:"message,omitempty"`
	DataPoints int       `json:"data_points"`
	Timestamp  time.Time `json:"timestamp"`
	// Error and FailureKind are set only on the error_fallback path.
	Error       string `json:"error,omitempty"`
	FailureKind string `json:"failure_kind,omitempty"`
}

// DetectedBy counts the candidates each detector produced before the union.
type DetectedBy struct {
	ZScore          int `json:"z_score"`
	IsolationForest int `json:"isolation_forest"`
}

// IQRBounds are the Tukey fences of the submitted batch.
type IQRBounds struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// DetectAnomaliesResponse is returned by POST /detect-anomalies.
type DetectAnomaliesResponse struct {
	Anomalies     []int      `json:"anomalies"`
	AnomalyValues []float64  `json:"anomaly_values"`
	Method        string     `json:"method"`
	Threshold     *float64   `json:"threshold,omitempty"`
	TotalPoints   int        `json:"total_points"`
	AnomalyCount  int        `json:"anomaly_count"`
	DetectedBy    DetectedBy `json:"detected_by"`
	IQRBounds     *IQRBounds `json:"iqr_bounds,omitempty"`
	Message       string     `json:"message,omitempty"`
	Timestamp     time.Time  `json:"timestamp"`
	Error         string     `json:"error,omitempty"`
	FailureKind   string     `json:"failure_kind,omitempty"`
}

// StatisticsResponse is returned by POST /statistics. Values are rounded
// to two decimal places.
type StatisticsResponse struct {
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	StdDev float64 `json:"std_dev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Q1     float64 `json:"q1"`
	Q3     float64 `json:"q3"`
	Count  int     `json:"count"`
	Sum    float64 `json:"sum"`

	// Populated only for ?extended=true
	Extended *ExtendedStatistics `json:"extended,omitempty"`
}

// ExtendedStatistics are the additional measures of ?extended=true.
type ExtendedStatistics struct {
	Mode                   []float64 `json:"mode"`
	Range                  float64   `json:"range"`
	Variance               float64   `json:"variance"`
	CoefficientOfVariation float64   `json:"coefficient_of_variation"`
	Skewness               float64   `json:"skewness"`
	P10                    float64   `json:"p10"`
	P90                    float64   `json:"p90"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status       string    `json:"status"`
	Timestamp    time.Time `json:"timestamp"`
	DataPoints   int       `json:"data_points"`
	Capacity     int       `json:"capacity"`
	ModelTrained bool      `json:"model_trained"`
	Service      string    `json:"service"`
	Version      string    `json:"version"`
	Runtime      string    `json:"runtime"`
	Uptime       string    `json:"uptime"`
}

// ProbeResponse is returned by the readiness and liveness probes.
type ProbeResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// IndexResponse is returned by GET /.
type IndexResponse struct {
	Service   string    `json:"service"`
	Version   string    `json:"version"`
	Status    string    `json:"status"`
	Endpoints []string  `json:"endpoints"`
	Timestamp time.Time `json:"timestamp"`
}
