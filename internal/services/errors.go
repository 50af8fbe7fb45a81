package services

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/desertthunder/dronewatch/internal/shared"
)

// ProviderError is a non-2xx answer from the identity provider or the settings table.
//
// Error returns the provider's message verbatim; Unwrap exposes the classification from [shared].
type ProviderError struct {
	Status  int
	Code    string
	Message string
	Kind    error
}

func (e *ProviderError) Error() string { return e.Message }
func (e *ProviderError) Unwrap() error { return e.Kind }

// providerBody covers the error shapes GoTrue and PostgREST emit.
type providerBody struct {
	Msg              string `json:"msg"`
	Message          string `json:"message"`
	ErrorDescription string `json:"error_description"`
	Error            string `json:"error"`
	ErrorCode        string `json:"error_code"`
	Code             any    `json:"code"`
}

func decodeProviderError(status int, body []byte) *ProviderError {
	var pb providerBody
	_ = json.Unmarshal(body, &pb)

	pe := &ProviderError{Status: status, Code: pb.ErrorCode}
	if pe.Code == "" {
		if s, ok := pb.Code.(string); ok {
			pe.Code = s
		} else if pb.Error != "" && pb.ErrorDescription != "" {
			pe.Code = pb.Error
		}
	}

	for _, m := range []string{pb.Msg, pb.Message, pb.ErrorDescription, pb.Error} {
		if strings.TrimSpace(m) != "" {
			pe.Message = m
			break
		}
	}
	if pe.Message == "" {
		pe.Message = http.StatusText(status)
	}
	return pe
}

// authError classifies an identity provider failure.
func authError(status int, body []byte) error {
	pe := decodeProviderError(status, body)
	switch {
	case pe.Code == "invalid_credentials" || pe.Code == "invalid_grant":
		pe.Kind = shared.ErrInvalidCredentials
	case status >= 500:
		pe.Kind = shared.ErrServiceUnavailable
	default:
		pe.Kind = shared.ErrProviderRejected
	}
	return pe
}

// tableError classifies a settings table failure.
func tableError(status int, body []byte) error {
	pe := decodeProviderError(status, body)
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		pe.Kind = shared.ErrNotAuthenticated
	case status >= 500:
		pe.Kind = shared.ErrServiceUnavailable
	default:
		pe.Kind = shared.ErrRequestRejected
	}
	return pe
}

// transportError keeps provider errors that surface through a transport, such as a failed token refresh.
func transportError(err error) error {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe
	}
	return &ProviderError{Message: err.Error(), Kind: shared.ErrNetworkFailure}
}
