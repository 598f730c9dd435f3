// Package httpkit holds the small request/response helpers shared by the
// API handlers: strict JSON decoding, the error envelope, CORS and
// Postgres error classification.
package httpkit

import (
	"encoding/json"
	"net/http"
)

// maxBodyBytes caps request bodies. Template documents are the largest
// payload we accept and stay well under this.
const maxBodyBytes = 4 << 20

// ErrorEnvelope is the wire shape of every error response.
type ErrorEnvelope struct {
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details,omitempty"`
	} `json:"error"`
}

// DecodeJSON decodes the request body into v, rejecting unknown fields
// and oversized bodies.
func DecodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// WriteJSON writes body as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// WriteErr writes the standard error envelope.
func WriteErr(w http.ResponseWriter, status int, code, msg string, details map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	var env ErrorEnvelope
	env.Error.Code = code
	env.Error.Message = msg
	env.Error.Details = details

	_ = json.NewEncoder(w).Encode(env)
}
