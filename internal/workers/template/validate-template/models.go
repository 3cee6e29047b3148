package validatetemplate

import "encoding/json"

type Input struct {
	RequestID  string
	TemplateID string
	Body       json.RawMessage
}

type Output struct {
	Result     string      `json:"validationResult"`
	Validation interface{} `json:"validation"`
}
