package validate

import (
	"context"
	"time"

	"template-validator/internal/common/metrics"

	kitmetrics "github.com/go-kit/kit/metrics"
)

var _ Service = (*metricsMiddleware)(nil)

type metricsMiddleware struct {
	counter kitmetrics.Counter
	latency kitmetrics.Histogram
	svc     Service
}

// MetricsMiddleware instruments core service by tracking request count and
// latency.
func MetricsMiddleware(svc Service, counter kitmetrics.Counter, latency kitmetrics.Histogram) Service {
	return &metricsMiddleware{
		counter: counter,
		latency: latency,
		svc:     svc,
	}
}

func (ms *metricsMiddleware) Validate(ctx context.Context, req ValidateRequest) (ValidateResponse, error) {
	defer func(begin time.Time) {
		ms.counter.With("method", "validate").Add(1)
		ms.latency.With("method", "validate").Observe(time.Since(begin).Seconds())
	}(time.Now())

	resp, err := ms.svc.Validate(ctx, req)
	if err == nil {
		metrics.ClassificationResults.WithLabelValues(resultLabel(resp.Result())).Inc()
	}
	return resp, err
}

// resultLabel bounds the label cardinality to the verdicts the classifier is known to return.
func resultLabel(result string) string {
	switch result {
	case "approve", "reject":
		return result
	case "":
		return "unknown"
	default:
		return "other"
	}
}
