// Package config loads the pulse analytics service configuration.
//
// # Configuration Sources
//
// Configuration is layered in the following order, later sources winning:
//
//	1. Default values (Default)
//	2. A YAML file named by PULSE_CONFIG_FILE, or config.yaml / configs/config.yaml
//	3. Environment variables
//
// # Environment Variables
//
// Variables follow the pattern PULSE_<SECTION>_<FIELD>:
//
//	PULSE_SERVER_PORT=8000
//	PULSE_LOGGING_LEVEL=debug
//	PULSE_ENGINE_CAPACITY=50
//	PULSE_ENGINE_Z_THRESHOLD=2.5
//	PULSE_SECURITY_RATE_LIMIT_REQUESTS=100
//
// The listening port also honours a bare PORT variable, as expected by
// most container platforms.
//
// # Validation
//
// Load rejects out-of-range ports, non-positive timeouts, unknown log
// outputs, and engine settings that fail analytics.Config.Validate.
package config
