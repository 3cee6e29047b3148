package camunda

import (
	"context"
	"errors"
	"testing"
	"time"

	"template-validator/internal/common/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRetryClient(maxRetries int) *Client {
	return &Client{config: &ClientConfig{
		RequestTimeout: time.Second,
		RetryConfig: &RetryConfig{
			MaxRetries: maxRetries,
			BaseDelay:  time.Millisecond,
			MaxDelay:   2 * time.Millisecond,
		},
	}}
}

func TestExecuteWithRetry(t *testing.T) {
	tests := []struct {
		name         string
		errs         []error
		maxRetries   int
		wantErr      bool
		wantAttempts int
	}{
		{
			name:         "first attempt succeeds",
			errs:         []error{nil},
			maxRetries:   3,
			wantAttempts: 1,
		},
		{
			name:         "transient error then success",
			errs:         []error{errors.New("rpc error: code = Unavailable"), nil},
			maxRetries:   3,
			wantAttempts: 2,
		},
		{
			name:         "permanent error is not retried",
			errs:         []error{errors.New("NOT_FOUND: job 1 not found")},
			maxRetries:   3,
			wantErr:      true,
			wantAttempts: 1,
		},
		{
			name: "gives up after max retries",
			errs: []error{
				errors.New("connection refused"),
				errors.New("connection refused"),
				errors.New("connection refused"),
			},
			maxRetries:   2,
			wantErr:      true,
			wantAttempts: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newRetryClient(tt.maxRetries)
			attempts := 0

			result, err := client.ExecuteWithRetry(context.Background(), func(ctx context.Context) (interface{}, error) {
				_, hasDeadline := ctx.Deadline()
				assert.True(t, hasDeadline)
				err := tt.errs[attempts]
				attempts++
				if err != nil {
					return nil, err
				}
				return "ok", nil
			}, "complete job")

			assert.Equal(t, tt.wantAttempts, attempts)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "complete job")
				assert.ErrorIs(t, err, tt.errs[len(tt.errs)-1])
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "ok", result)
		})
	}
}

func TestExecuteWithRetry_StopsOnCancel(t *testing.T) {
	client := newRetryClient(5)
	client.config.RetryConfig.BaseDelay = time.Hour
	client.config.RetryConfig.MaxDelay = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	_, err := client.ExecuteWithRetry(ctx, func(context.Context) (interface{}, error) {
		attempts++
		cancel()
		return nil, errors.New("deadline exceeded")
	}, "fail job")

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, attempts)
}

func TestIsRetryableZeebeError(t *testing.T) {
	assert.True(t, isRetryableZeebeError(errors.New("Connection Reset by peer")))
	assert.True(t, isRetryableZeebeError(errors.New("context deadline exceeded")))
	assert.False(t, isRetryableZeebeError(errors.New("INVALID_ARGUMENT: bad variables")))
}

func TestClientConfigFromApp(t *testing.T) {
	cfg := ClientConfigFromApp(config.CamundaConfig{
		BrokerAddress:  "zeebe:26500",
		Timeout:        5000,
		RequestTimeout: 2000,
	})

	assert.Equal(t, "zeebe:26500", cfg.GatewayAddress)
	assert.True(t, cfg.UsePlaintextConnection)
	assert.Equal(t, 5*time.Second, cfg.ConnectionTimeout)
	assert.Equal(t, 2*time.Second, cfg.RequestTimeout)
	assert.Equal(t, DefaultRetryConfig, cfg.RetryConfig)
}

func TestNewClientWithConfig_RequiresAddress(t *testing.T) {
	_, err := NewClientWithConfig(&ClientConfig{})
	assert.Error(t, err)
}

func TestNewWorker_RequiresClient(t *testing.T) {
	_, err := NewWorker(nil, WorkerOptions{TaskType: "template.validate"}, nil)
	assert.Error(t, err)

	var w *Worker
	assert.NotPanics(t, w.Close)
}
