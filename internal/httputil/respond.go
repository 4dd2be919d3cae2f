// Package httputil provides shared HTTP request and response helpers.
package httputil

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/OpenCustody/wallet_layer/internal/errors"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// WriteJSON serializes data with the given status.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteError maps err through the service error taxonomy. Internal detail is
// never serialized to the client.
func WriteError(w http.ResponseWriter, err error) {
	status := errors.HTTPStatusFor(err)
	body := ErrorBody{Error: errors.PublicMessage(err)}

	var svcErr *errors.ServiceError
	if errors.As(err, &svcErr) {
		body.Code = svcErr.Code
	}
	WriteJSON(w, status, body)
}

// Unauthorized writes a 401 with an optional message.
func Unauthorized(w http.ResponseWriter, message string) {
	if message == "" {
		message = "unauthorized"
	}
	WriteJSON(w, http.StatusUnauthorized, ErrorBody{Error: message, Code: "unauthorized"})
}

// DecodeJSON decodes a request body, rejecting unknown fields.
func DecodeJSON(body io.ReadCloser, dst any) error {
	defer body.Close()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errors.Validation("invalid request body: %v", err)
	}
	return nil
}

// ClientIP extracts the originating client address, preferring proxy headers
// over the socket peer.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		parts := strings.Split(fwd, ",")
		return strings.TrimSpace(parts[0])
	}
	if real := r.Header.Get("X-Real-IP"); real != "" {
		return strings.TrimSpace(real)
	}
	host := r.RemoteAddr
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		host = host[:idx]
	}
	return host
}
