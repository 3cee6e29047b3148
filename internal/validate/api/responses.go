package api

import (
	"encoding/json"
	"net/http"
)

// apiRes lets a response choose its status and headers before encoding.
type apiRes interface {
	Code() int
	Headers() map[string]string
	Empty() bool
}

var (
	_ apiRes = (*validateRes)(nil)
	_ apiRes = (*healthRes)(nil)
	_ apiRes = (*readyRes)(nil)
)

// validateRes is written out as the raw classifier reply, never re-encoded.
type validateRes struct {
	body json.RawMessage
}

func (res validateRes) Code() int {
	return http.StatusOK
}

func (res validateRes) Headers() map[string]string {
	return map[string]string{}
}

func (res validateRes) Empty() bool {
	return len(res.body) == 0
}

func (res validateRes) raw() []byte {
	return res.body
}

type healthRes struct {
	Status  string `json:"status"`
	Service string `json:"service,omitempty"`
	Version string `json:"version,omitempty"`
	Time    string `json:"time"`
}

func (res healthRes) Code() int {
	return http.StatusOK
}

func (res healthRes) Headers() map[string]string {
	return map[string]string{}
}

func (res healthRes) Empty() bool {
	return false
}

type readyRes struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func (res readyRes) Code() int {
	if res.Status != statusReady {
		return http.StatusServiceUnavailable
	}
	return http.StatusOK
}

func (res readyRes) Headers() map[string]string {
	return map[string]string{}
}

func (res readyRes) Empty() bool {
	return false
}

type errorRes struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}
