// Package api contains the HTTP request and response contracts of the
// analytics service. Version v1 is the current API.
package api

// MaxDataPoints bounds the samples accepted in a single request.
const MaxDataPoints = 10000

// AnalyticsRequest is the body of /predict, /detect-anomalies and
// /statistics. A missing data field decodes to a nil slice.
type AnalyticsRequest struct {
	Data []float64 `json:"data" validate:"max=10000"`
}

