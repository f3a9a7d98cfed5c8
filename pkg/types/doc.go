// Package types defines the configuration, error taxonomy and shared vocabulary
// (rows, join kinds, clause parts) of the simpledb data access layer.
package types
