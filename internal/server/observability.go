package server

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/dinefind/dinefind/internal/app/observability/metrics"
	"github.com/dinefind/dinefind/internal/app/observability/tracer"
)

// InitObservability sets up OpenTelemetry providers and the application
// metric instruments.
func InitObservability(serviceName, metricsAddr string, logger *zap.Logger) (tracer.ShutdownFunc, error) {
	shutdown, err := tracer.InitOtelProviders(serviceName, metricsAddr, logger)
	if err != nil {
		return nil, fmt.Errorf("init otel providers: %w", err)
	}
	metrics.Init()
	logger.Info("Observability initialized", zap.String("metrics_endpoint", metricsAddr+"/metrics"))
	return shutdown, nil
}
