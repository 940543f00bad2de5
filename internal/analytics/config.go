package analytics

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Config holds the engine policy constants. Every value that differed
// between historical deployments of the service is a field here.
type Config struct {
	// Capacity bounds the rolling buffer.
	Capacity int `yaml:"capacity" validate:"min=2,max=100000"`
	// ReadyThreshold is the buffer length at which model-based inference
	// switches on for the lifetime of the engine.
	ReadyThreshold int `yaml:"ready_threshold" validate:"min=2,ltefield=Capacity"`
	// MinAnomalyBatch is the smallest batch scored for anomalies.
	MinAnomalyBatch int     `yaml:"min_anomaly_batch" validate:"min=1"`
	ZThreshold      float64 `yaml:"z_threshold" validate:"gt=0"`

	AverageConfidence  float64 `yaml:"average_confidence" validate:"gte=0,lte=1"`
	FallbackConfidence float64 `yaml:"fallback_confidence" validate:"gte=0,lte=1"`
	FallbackMin        float64 `yaml:"fallback_min"`
	FallbackMax        float64 `yaml:"fallback_max" validate:"gtefield=FallbackMin"`
	// AverageJitter bounds the uniform noise added to the average fallback.
	AverageJitter float64 `yaml:"average_jitter" validate:"gte=0"`
	// ConfidenceDamping scales the coefficient of variation when deriving
	// regression confidence.
	ConfidenceDamping float64 `yaml:"confidence_damping" validate:"gte=0"`
	Seed              uint64  `yaml:"seed"`

	Outlier OutlierConfig `yaml:"outlier"`
}

const (
	// MinConfidence is the floor for regression and error confidence.
	MinConfidence = 0.1
	// cvEpsilon keeps the coefficient of variation finite for zero means.
	cvEpsilon = 1e-8
)

// DefaultConfig returns the documented engine defaults.
func DefaultConfig() Config {
	return Config{
		Capacity:           100,
		ReadyThreshold:     10,
		MinAnomalyBatch:    5,
		ZThreshold:         2.0,
		AverageConfidence:  0.6,
		FallbackConfidence: 0.7,
		FallbackMin:        50,
		FallbackMax:        100,
		AverageJitter:      0,
		ConfidenceDamping:  0.5,
		Seed:               42,
		Outlier:            DefaultOutlierConfig(),
	}
}

var configValidator = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the field constraints.
func (c Config) Validate() error {
	if err := configValidator.Struct(c); err != nil {
		return fmt.Errorf("invalid engine config: %w", err)
	}
	return nil
}
