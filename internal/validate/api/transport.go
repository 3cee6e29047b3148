// Package api contains the HTTP transport of the template validation service.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"template-validator/internal/common/errors"
	"template-validator/internal/common/logger"
	"template-validator/internal/common/metrics"
	"template-validator/internal/common/observability"
	"template-validator/internal/common/validation"
	"template-validator/internal/ratelimit"
	"template-validator/internal/validate"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	kithttp "github.com/go-kit/kit/transport/http"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tidwall/gjson"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	contentType = "application/json"

	defaultMaxBodyBytes = 1 << 20
)

// Options configures the router. Validator is required; a nil Limiter disables rate limiting.
type Options struct {
	ServiceName   string
	Version       string
	Validator     *validation.SchemaValidator
	Limiter       ratelimit.Limiter
	Checks        map[string]Checker
	Logger        logger.Logger
	Observability *observability.Observability
	MaxBodyBytes  int64
}

// MakeHandler returns a HTTP handler for API endpoints.
func MakeHandler(svc validate.Service, opts Options) http.Handler {
	if opts.Logger == nil {
		opts.Logger = logger.NewNoOpLogger()
	}
	if opts.Observability == nil {
		opts.Observability = &observability.Observability{}
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultMaxBodyBytes
	}

	serverOpts := []kithttp.ServerOption{
		kithttp.ServerErrorEncoder(encodeError),
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestIDHeader)
	r.Use(instrument(opts.Observability))

	r.Get("/health", healthHandler(opts.ServiceName, opts.Version))
	r.Get("/ready", readyHandler(opts.Checks))
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		if opts.Limiter != nil {
			r.Use(rateLimit(opts.Limiter, opts.Logger))
		}

		r.Method(http.MethodPost, "/validate", otelhttp.NewHandler(kithttp.NewServer(
			validateEndpoint(svc),
			decodeValidate(opts.Validator, opts.MaxBodyBytes),
			encodeResponse,
			serverOpts...,
		), "validate"))
	})

	return r
}

func decodeValidate(validator *validation.SchemaValidator, maxBytes int64) kithttp.DecodeRequestFunc {
	return func(ctx context.Context, r *http.Request) (interface{}, error) {
		if ct := r.Header.Get("Content-Type"); !isJSON(ct) {
			return nil, errors.NewUnsupportedContentTypeError(ct)
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, maxBytes+1))
		if err != nil {
			return nil, errors.NewMalformedRequestError(err)
		}
		if int64(len(body)) > maxBytes {
			return nil, errors.NewMalformedRequestError(fmt.Errorf("body exceeds %d bytes", maxBytes))
		}
		if len(body) == 0 {
			return nil, errors.NewMalformedRequestError(fmt.Errorf("empty body"))
		}

		result := validator.ValidateBytes(body)
		if !result.Valid {
			if result.HasErrors("(root)") && result.Errors[0].Code == "INVALID_JSON" {
				return nil, errors.NewMalformedRequestError(fmt.Errorf("%s", result.Errors[0].Message))
			}
			return nil, errors.NewTemplateValidationFailedError(strings.Join(result.GetErrorMessages(), "; "))
		}

		return validateReq{
			requestID:  requestID(ctx),
			templateID: gjson.GetBytes(body, "template_id").String(),
			body:       body,
		}, nil
	}
}

func isJSON(header string) bool {
	mediaType, _, err := mime.ParseMediaType(header)
	return err == nil && mediaType == contentType
}

func requestID(ctx context.Context) string {
	if id := middleware.GetReqID(ctx); id != "" {
		return id
	}
	return uuid.NewString()
}

func encodeResponse(_ context.Context, w http.ResponseWriter, response interface{}) error {
	w.Header().Set("Content-Type", contentType)

	if ar, ok := response.(apiRes); ok {
		for k, v := range ar.Headers() {
			w.Header().Set(k, v)
		}

		w.WriteHeader(ar.Code())

		if ar.Empty() {
			return nil
		}
	}

	if raw, ok := response.(interface{ raw() []byte }); ok {
		_, err := w.Write(raw.raw())
		return err
	}

	return json.NewEncoder(w).Encode(response)
}

func encodeError(_ context.Context, err error, w http.ResponseWriter) {
	stdErr := errors.AsStandardError(err)

	w.Header().Set("Content-Type", contentType)
	if stdErr.Code == errors.ErrCodeRateLimitExceeded {
		if seconds, ok := stdErr.Metadata["retryAfterSeconds"].(int64); ok {
			w.Header().Set("Retry-After", strconv.FormatInt(seconds, 10))
		}
	}

	w.WriteHeader(errors.HTTPStatus(stdErr))

	_ = json.NewEncoder(w).Encode(errorRes{
		Code:    string(stdErr.Code),
		Message: stdErr.Message,
		Details: stdErr.Details,
	})
}

// requestIDHeader copies the request ID to the response header.
func requestIDHeader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if reqID := middleware.GetReqID(r.Context()); reqID != "" {
			w.Header().Set("X-Request-ID", reqID)
		}
		next.ServeHTTP(w, r)
	})
}

// instrument records request counts and latency per matched route.
func instrument(obs *observability.Observability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			begin := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(begin).Seconds())
			if route == "/validate" {
				obs.RecordRequest(r.Context(), "http", strconv.Itoa(status))
			}
		})
	}
}
