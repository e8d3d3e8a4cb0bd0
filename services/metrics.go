package services

import (
	"context"

	awspkg "supply-service/pkg/aws"

	"go.uber.org/zap"
)

// recordCount bumps a business counter. Metric failures never reach callers.
func recordCount(ctx context.Context, metrics awspkg.MetricsRecorder, log *zap.Logger, metric string) {
	if metrics == nil || !metrics.IsEnabled() {
		return
	}
	if err := metrics.RecordCount(ctx, metric, nil); err != nil {
		log.Debug("Metric not recorded", zap.String("metric", metric), zap.Error(err))
	}
}
