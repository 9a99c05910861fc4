// SPDX-License-Identifier: MIT

// Package api exposes the HTTP control surface: session lifecycle routes,
// the frame analysis endpoint, telemetry and admin endpoints. Responses use
// a tagged envelope; serialization picks fields by variant.
package api

import (
	"encoding/json"
	"net/http"

	xlog "github.com/kinetiq/formcoach/internal/log"
)

// MessageType tags every envelope.
type MessageType string

const (
	MessageRequest  MessageType = "REQUEST"
	MessageResponse MessageType = "RESPONSE"
	MessageError    MessageType = "ERROR"
)

// ResponseType tags non-error responses.
type ResponseType string

const (
	ResponsePing        ResponseType = "PING"
	ResponseManagement  ResponseType = "MANAGEMENT"
	ResponseCalibration ResponseType = "CALIBRATION"
	ResponseFeedback    ResponseType = "FEEDBACK"
	ResponseSummary     ResponseType = "SUMMARY"
)

// envelope is the wire shape for every response variant. Error envelopes
// omit response_type; extra_info is merged only when present.
type envelope struct {
	MessageType  MessageType  `json:"message_type"`
	ResponseType ResponseType `json:"response_type,omitempty"`
	Code         string       `json:"code,omitempty"`
	Description  string       `json:"description,omitempty"`
	ExtraInfo    any          `json:"extra_info,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger := xlog.WithComponent("api")
		logger.Error().Err(err).Msg("failed to encode response")
	}
}

func writeResponse(w http.ResponseWriter, status int, rt ResponseType, code string, extra any) {
	writeJSON(w, status, envelope{
		MessageType:  MessageResponse,
		ResponseType: rt,
		Code:         code,
		Description:  Describe(code),
		ExtraInfo:    extra,
	})
}

func writeError(w http.ResponseWriter, status int, code string, extra any) {
	writeJSON(w, status, envelope{
		MessageType: MessageError,
		Code:        code,
		Description: Describe(code),
		ExtraInfo:   extra,
	})
}
