package api

import (
	"context"

	"template-validator/internal/validate"

	"github.com/go-kit/kit/endpoint"
)

func validateEndpoint(svc validate.Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req := request.(validateReq)

		if err := req.validate(); err != nil {
			return nil, err
		}

		resp, err := svc.Validate(ctx, validate.ValidateRequest{
			RequestID:  req.requestID,
			TemplateID: req.templateID,
			Body:       req.body,
		})
		if err != nil {
			return nil, err
		}

		return validateRes{body: resp.Body}, nil
	}
}
