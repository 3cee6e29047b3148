package validate

import (
	"context"
	"errors"
	"testing"

	"template-validator/internal/classifier"
	commonerrors "template-validator/internal/common/errors"
	"template-validator/internal/common/logger"

	kitmetrics "github.com/go-kit/kit/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockClassifier struct {
	mock.Mock
}

func (m *MockClassifier) Classify(ctx context.Context, req classifier.Request) (*classifier.Response, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*classifier.Response), args.Error(1)
}

type fakeCounter struct {
	total  float64
	labels []string
}

func (c *fakeCounter) With(labelValues ...string) kitmetrics.Counter {
	c.labels = labelValues
	return c
}

func (c *fakeCounter) Add(delta float64) { c.total += delta }

type fakeHistogram struct {
	observations int
}

func (h *fakeHistogram) With(...string) kitmetrics.Histogram { return h }

func (h *fakeHistogram) Observe(float64) { h.observations++ }

func TestValidate_PassesThrough(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		response string
		result   string
	}{
		{
			name:     "approve",
			body:     `{"template_id":"t1"}`,
			response: `{"result":"approve"}`,
			result:   "approve",
		},
		{
			name:     "reject with reason",
			body:     `{"template_id":"t2"}`,
			response: `{"result":"reject","reason":"policy_violation"}`,
			result:   "reject",
		},
		{
			name:     "no result field",
			body:     `{"template_id":"t4","title":"Hi"}`,
			response: `{"verdict":"approve"}`,
			result:   "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockClassifier := new(MockClassifier)
			req := ValidateRequest{RequestID: "req-1", TemplateID: "t", Body: []byte(tt.body)}
			mockClassifier.On("Classify", mock.Anything, classifier.Request{
				RequestID:  "req-1",
				TemplateID: "t",
				Body:       []byte(tt.body),
			}).Return(&classifier.Response{StatusCode: 200, Body: []byte(tt.response)}, nil).Once()

			svc := NewService(mockClassifier)
			resp, err := svc.Validate(context.Background(), req)

			require.NoError(t, err)
			assert.Equal(t, tt.response, string(resp.Body))
			assert.Equal(t, tt.result, resp.Result())
			assert.Equal(t, tt.body, string(req.Body))
			mockClassifier.AssertNumberOfCalls(t, "Classify", 1)
		})
	}
}

func TestValidate_PropagatesClassifierError(t *testing.T) {
	upstream := commonerrors.NewClassificationFailedError(errors.New("status 500")).
		WithMetadata("upstreamStatus", 500)

	mockClassifier := new(MockClassifier)
	mockClassifier.On("Classify", mock.Anything, mock.Anything).Return(nil, upstream).Once()

	svc := NewService(mockClassifier)
	resp, err := svc.Validate(context.Background(), ValidateRequest{TemplateID: "t3", Body: []byte(`{"template_id":"t3"}`)})

	require.Error(t, err)
	assert.Same(t, upstream, err)
	assert.Nil(t, resp.Body)
	mockClassifier.AssertExpectations(t)
}

func TestValidate_IdenticalRequestsAreNotCached(t *testing.T) {
	mockClassifier := new(MockClassifier)
	mockClassifier.On("Classify", mock.Anything, mock.Anything).
		Return(&classifier.Response{StatusCode: 200, Body: []byte(`{"result":"approve"}`)}, nil)

	svc := NewService(mockClassifier)
	req := ValidateRequest{TemplateID: "t1", Body: []byte(`{"template_id":"t1"}`)}

	_, err := svc.Validate(context.Background(), req)
	require.NoError(t, err)
	_, err = svc.Validate(context.Background(), req)
	require.NoError(t, err)

	mockClassifier.AssertNumberOfCalls(t, "Classify", 2)
}

func TestMiddlewares(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "success"},
		{name: "failure", err: commonerrors.NewClassificationTimeoutError(0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockClassifier := new(MockClassifier)
			if tt.err != nil {
				mockClassifier.On("Classify", mock.Anything, mock.Anything).Return(nil, tt.err).Once()
			} else {
				mockClassifier.On("Classify", mock.Anything, mock.Anything).
					Return(&classifier.Response{StatusCode: 200, Body: []byte(`{"result":"approve"}`)}, nil).Once()
			}

			counter := &fakeCounter{}
			latency := &fakeHistogram{}
			svc := NewService(mockClassifier)
			svc = LoggingMiddleware(svc, logger.NewTestLogger(t))
			svc = MetricsMiddleware(svc, counter, latency)

			_, err := svc.Validate(context.Background(), ValidateRequest{TemplateID: "t1", Body: []byte(`{"template_id":"t1"}`)})

			if tt.err != nil {
				assert.Equal(t, tt.err, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, 1.0, counter.total)
			assert.Equal(t, []string{"method", "validate"}, counter.labels)
			assert.Equal(t, 1, latency.observations)
			mockClassifier.AssertNumberOfCalls(t, "Classify", 1)
		})
	}
}

func TestResultLabel(t *testing.T) {
	assert.Equal(t, "approve", resultLabel("approve"))
	assert.Equal(t, "reject", resultLabel("reject"))
	assert.Equal(t, "unknown", resultLabel(""))
	assert.Equal(t, "other", resultLabel("maybe"))
}
