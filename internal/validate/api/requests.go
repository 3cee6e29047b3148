package api

import (
	"encoding/json"
	"fmt"

	"template-validator/internal/common/errors"
)

var _ apiReq = (*validateReq)(nil)

type apiReq interface {
	validate() error
}

type validateReq struct {
	requestID  string
	templateID string
	body       json.RawMessage
}

func (req validateReq) validate() error {
	if len(req.body) == 0 {
		return errors.NewMalformedRequestError(fmt.Errorf("empty body"))
	}
	if req.templateID == "" {
		return errors.NewTemplateValidationFailedError("template_id: is required")
	}
	return nil
}
