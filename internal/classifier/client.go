// Package classifier calls the external classification service that decides whether a
// template is approved or rejected.
package classifier

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"time"

	"template-validator/internal/common/errors"
	commonhttp "template-validator/internal/common/http"
	"template-validator/internal/common/logger"
	"template-validator/internal/common/metrics"
	"template-validator/internal/common/observability"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const maxLoggedBody = 256

// Client sends exactly one request per Classify call: no retries, no caching.
type Client struct {
	config *Config
	http   *commonhttp.Client
	logger logger.Logger
	obs    *observability.Observability
}

type ClientOptions struct {
	Config        *Config
	HTTPClient    *commonhttp.Client
	Logger        logger.Logger
	Observability *observability.Observability
}

func NewClient(opts ClientOptions) (*Client, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid classifier configuration: %w", err)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = commonhttp.NewClient(cfg.Timeout)
	}

	log := opts.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}

	obs := opts.Observability
	if obs == nil {
		obs = &observability.Observability{}
	}

	return &Client{
		config: cfg,
		http:   httpClient,
		logger: log.With(map[string]interface{}{"component": "classifier"}),
		obs:    obs,
	}, nil
}

// Classify forwards req.Body to the classification service and returns its reply verbatim.
// Failures are *errors.StandardError with code CLASSIFICATION_FAILED or
// CLASSIFICATION_TIMEOUT.
func (c *Client) Classify(ctx context.Context, req Request) (*Response, error) {
	ctx, span := c.obs.StartSpan(ctx, "classifier.classify",
		attribute.String("template.id", req.TemplateID),
		attribute.String("request.id", req.RequestID),
	)
	defer span.End()

	start := time.Now()
	headers := map[string]string{"X-Request-ID": req.RequestID}
	if c.config.APIKey != "" {
		headers["Authorization"] = "Bearer " + c.config.APIKey
	}

	resp, err := c.http.PostJSON(ctx, c.config.classifyURL(), req.Body, headers, c.config.MaxResponseBytes)
	elapsed := time.Since(start)

	if err != nil {
		stdErr := c.mapTransportError(ctx, err)
		c.record(ctx, span, stdErr, elapsed)
		c.logger.Error("classification call failed", map[string]interface{}{
			"templateId": req.TemplateID,
			"requestId":  req.RequestID,
			"errorCode":  string(stdErr.Code),
			"error":      err.Error(),
			"durationMs": elapsed.Milliseconds(),
		})
		return nil, stdErr
	}

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if !resp.IsSuccess() {
		stdErr := errors.NewClassificationFailedError(
			fmt.Errorf("status %d: %s", resp.StatusCode, truncate(resp.Body, maxLoggedBody)),
		).WithMetadata("upstreamStatus", resp.StatusCode)
		stdErr.Retryable = retryableStatus(resp.StatusCode)
		c.record(ctx, span, stdErr, elapsed)
		c.logger.Error("classification service returned an error status", map[string]interface{}{
			"templateId":     req.TemplateID,
			"requestId":      req.RequestID,
			"upstreamStatus": resp.StatusCode,
			"durationMs":     elapsed.Milliseconds(),
		})
		return nil, stdErr
	}

	if !json.Valid(resp.Body) {
		stdErr := errors.NewClassificationFailedError(
			fmt.Errorf("response is not valid JSON: %s", truncate(resp.Body, maxLoggedBody)),
		).WithMetadata("upstreamStatus", resp.StatusCode)
		c.record(ctx, span, stdErr, elapsed)
		c.logger.Error("classification service returned invalid JSON", map[string]interface{}{
			"templateId": req.TemplateID,
			"requestId":  req.RequestID,
		})
		return nil, stdErr
	}

	c.record(ctx, span, nil, elapsed)
	c.logger.Debug("classification completed", map[string]interface{}{
		"templateId": req.TemplateID,
		"requestId":  req.RequestID,
		"durationMs": elapsed.Milliseconds(),
	})

	return &Response{
		StatusCode: resp.StatusCode,
		Body:       json.RawMessage(resp.Body),
	}, nil
}

// Ping checks that the classification service answers its health endpoint with 2xx.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.http.Get(ctx, c.config.healthURL(), 4096)
	if err != nil {
		return fmt.Errorf("classifier health check failed: %w", err)
	}
	if !resp.IsSuccess() {
		return fmt.Errorf("classifier health check failed: status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) mapTransportError(ctx context.Context, err error) *errors.StandardError {
	if stderrors.Is(err, context.DeadlineExceeded) || stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
		return errors.NewClassificationTimeoutError(c.config.Timeout)
	}
	return errors.NewClassificationFailedError(err)
}

func (c *Client) record(ctx context.Context, span trace.Span, stdErr *errors.StandardError, elapsed time.Duration) {
	outcome := "success"
	if stdErr != nil {
		outcome = string(stdErr.Code)
		span.RecordError(stdErr)
		span.SetStatus(codes.Error, stdErr.Message)
	}
	metrics.ClassifierCallsTotal.WithLabelValues(outcome).Inc()
	c.obs.RecordClassifierDuration(ctx, elapsed, outcome)
}

func truncate(body []byte, n int) string {
	if len(body) <= n {
		return string(body)
	}
	return string(body[:n]) + "..."
}

// retryableStatus reports whether an upstream status may succeed on a later attempt. Other 4xx
// replies reject the request itself and are not retried.
func retryableStatus(status int) bool {
	if status == http.StatusRequestTimeout || status == http.StatusTooManyRequests {
		return true
	}
	return status < 400 || status >= 500
}
