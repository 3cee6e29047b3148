package validate

import (
	"context"
	"time"

	"template-validator/internal/common/errors"
	"template-validator/internal/common/logger"
)

var _ Service = (*loggingMiddleware)(nil)

type loggingMiddleware struct {
	logger logger.Logger
	svc    Service
}

// LoggingMiddleware adds logging facilities to the core service.
func LoggingMiddleware(svc Service, logger logger.Logger) Service {
	return &loggingMiddleware{logger: logger, svc: svc}
}

func (lm *loggingMiddleware) Validate(ctx context.Context, req ValidateRequest) (resp ValidateResponse, err error) {
	defer func(begin time.Time) {
		fields := map[string]interface{}{
			"method":     "validate",
			"templateId": req.TemplateID,
			"requestId":  req.RequestID,
			"durationMs": time.Since(begin).Milliseconds(),
		}
		if err != nil {
			fields["errorCode"] = string(errors.AsStandardError(err).Code)
			fields["error"] = err.Error()
			lm.logger.Warn("Template validation failed", fields)
			return
		}
		fields["result"] = resp.Result()
		lm.logger.Info("Template validation completed", fields)
	}(time.Now())

	return lm.svc.Validate(ctx, req)
}
