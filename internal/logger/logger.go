// Package logger builds the process-wide zap logger. Structured JSON on
// stdout so log aggregation tooling can ingest it directly.
package logger

import "go.uber.org/zap"

// New builds the production logger. Set LOG_DEVELOPMENT=true upstream and
// pass development to get colored console output instead.
func New(development bool) (*zap.Logger, error) {
	if development {
		return zap.NewDevelopment()
	}
	config := zap.NewProductionConfig()
	config.OutputPaths = []string{"stdout"}
	return config.Build()
}
