// Package shared holds helpers used across the pulseanalytics packages.
//
// The testutil subpackage provides a capturing slog handler with assertion
// helpers and small series generators for engine and handler tests. Nothing
// here carries domain logic.
package shared
