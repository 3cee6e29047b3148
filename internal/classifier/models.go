package classifier

import "encoding/json"

// Request is one classify-template call. Body is forwarded byte for byte.
type Request struct {
	RequestID  string
	TemplateID string
	Body       json.RawMessage
}

// Response is the classification service's reply, exactly as received.
type Response struct {
	StatusCode int
	Body       json.RawMessage
}
