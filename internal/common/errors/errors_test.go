package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"unsupported content type", NewUnsupportedContentTypeError("text/plain"), http.StatusUnsupportedMediaType},
		{"malformed request", NewMalformedRequestError(fmt.Errorf("unexpected EOF")), http.StatusBadRequest},
		{"schema violation", NewTemplateValidationFailedError("template_id: is required"), http.StatusUnprocessableEntity},
		{"rate limited", NewRateLimitExceededError(10 * time.Second), http.StatusTooManyRequests},
		{"classifier failed", NewClassificationFailedError(fmt.Errorf("status 500")), http.StatusBadGateway},
		{"classifier timeout", NewClassificationTimeoutError(time.Second), http.StatusGatewayTimeout},
		{"wrapped standard error", fmt.Errorf("endpoint: %w", NewClassificationFailedError(fmt.Errorf("boom"))), http.StatusBadGateway},
		{"plain error", fmt.Errorf("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}

func TestAsStandardError(t *testing.T) {
	assert.Nil(t, AsStandardError(nil))

	original := NewClassificationFailedError(fmt.Errorf("status 503"))
	assert.Same(t, original, AsStandardError(fmt.Errorf("wrap: %w", original)))

	plain := fmt.Errorf("disk on fire")
	converted := AsStandardError(plain)
	require.NotNil(t, converted)
	assert.Equal(t, ErrCodeInternal, converted.Code)
	assert.Equal(t, "disk on fire", converted.Details)
	assert.True(t, stderrors.Is(converted, plain))
}

func TestClassificationTimeoutUnwrapsToDeadline(t *testing.T) {
	err := NewClassificationTimeoutError(2 * time.Second)
	assert.True(t, stderrors.Is(err, context.DeadlineExceeded))
	assert.Contains(t, err.Details, "2s")
}

func TestNewRateLimitExceededError_RoundsUp(t *testing.T) {
	err := NewRateLimitExceededError(200 * time.Millisecond)
	assert.Equal(t, int64(1), err.Metadata["retryAfterSeconds"])

	err = NewRateLimitExceededError(42 * time.Second)
	assert.Equal(t, int64(42), err.Metadata["retryAfterSeconds"])
}

func TestConvertToBPMNError(t *testing.T) {
	tests := []struct {
		name        string
		err         *StandardError
		wantRetries int
	}{
		{"classifier failure is retried", NewClassificationFailedError(fmt.Errorf("status 502")), 3},
		{"classifier timeout is retried twice", NewClassificationTimeoutError(time.Second), 2},
		{"schema failure is not retried", NewTemplateValidationFailedError("bad"), 0},
		{"non retryable overrides table", &StandardError{Code: ErrCodeClassificationFailed, Retryable: false}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bpmnErr := ConvertToBPMNError(tt.err)
			assert.Equal(t, string(tt.err.Code), bpmnErr.Code)
			assert.Equal(t, tt.wantRetries, bpmnErr.Retries)
			assert.Equal(t, string(tt.err.Code), bpmnErr.ErrorVariables["originalErrorCode"])
		})
	}
}

func TestConvertToBPMNError_CarriesUpstreamStatus(t *testing.T) {
	stdErr := NewClassificationFailedError(fmt.Errorf("status 503")).WithMetadata("upstreamStatus", 503)
	vars := ConvertToBPMNError(stdErr).ToErrorVariables()

	assert.Equal(t, 503, vars["upstreamStatus"])
	assert.Equal(t, "CLASSIFICATION_FAILED", vars["errorCode"])
	assert.Equal(t, true, vars["retryable"])
}

func TestGetErrorCategory(t *testing.T) {
	assert.Equal(t, "CLASSIFIER", GetErrorCategory(ErrCodeClassificationTimeout))
	assert.Equal(t, "RATE_LIMIT", GetErrorCategory(ErrCodeRateLimitExceeded))
	assert.Equal(t, "VALIDATION", GetErrorCategory(ErrCodeTemplateValidationFailed))
	assert.Equal(t, "INPUT", GetErrorCategory(ErrCodeMalformedRequest))
	assert.Equal(t, "OTHER", GetErrorCategory(ErrCodeInternal))
	assert.True(t, IsRetryableErrorCode(ErrCodeClassificationFailed))
	assert.False(t, IsRetryableErrorCode(ErrCodeMalformedRequest))
}

func TestRetriesFor(t *testing.T) {
	job := func(retries int32) entities.Job {
		return entities.Job{ActivatedJob: &pb.ActivatedJob{Key: 1, Retries: retries}}
	}
	bpmnErr := &BPMNError{Retries: 3}

	assert.Equal(t, int32(3), RetriesFor(job(5), bpmnErr))
	assert.Equal(t, int32(1), RetriesFor(job(2), bpmnErr))
	assert.Equal(t, int32(0), RetriesFor(job(1), bpmnErr))
}
