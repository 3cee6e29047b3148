// Package validate exposes the template validation operation: one request in, one
// classification call out, the classifier's reply returned unchanged.
package validate

import (
	"context"
	"encoding/json"

	"template-validator/internal/classifier"

	"github.com/tidwall/gjson"
)

// Classifier is the classify-template operation of the classification service.
type Classifier interface {
	Classify(ctx context.Context, req classifier.Request) (*classifier.Response, error)
}

// ValidateRequest carries the request body exactly as received. TemplateID and RequestID
// are read out for logging and tracing only.
type ValidateRequest struct {
	RequestID  string
	TemplateID string
	Body       json.RawMessage
}

// ValidateResponse is the classification service's reply.
type ValidateResponse struct {
	Body json.RawMessage
}

// Result returns the top-level "result" field of the reply, or "" when absent.
func (r ValidateResponse) Result() string {
	return gjson.GetBytes(r.Body, "result").String()
}

// Service specifies the template validation API.
type Service interface {
	// Validate asks the classification service to judge a template and returns its verdict
	// verbatim. Classifier errors are returned unchanged.
	Validate(ctx context.Context, req ValidateRequest) (ValidateResponse, error)
}

var _ Service = (*service)(nil)

type service struct {
	classifier Classifier
}

func NewService(classifier Classifier) Service {
	return &service{classifier: classifier}
}

func (s *service) Validate(ctx context.Context, req ValidateRequest) (ValidateResponse, error) {
	resp, err := s.classifier.Classify(ctx, classifier.Request{
		RequestID:  req.RequestID,
		TemplateID: req.TemplateID,
		Body:       req.Body,
	})
	if err != nil {
		return ValidateResponse{}, err
	}
	return ValidateResponse{Body: resp.Body}, nil
}
