package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/letsbefriends/platform/internal/logging"
)

// maxRequestBody bounds JSON request bodies.
const maxRequestBody = 1 << 20

// ErrorBody is the JSON envelope for failed requests.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries the error code, message and optional details.
type ErrorDetail struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	TraceID string                 `json:"trace_id,omitempty"`
}

// WriteJSON writes data as JSON with the given status.
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(data)
}

// WriteErrorResponse writes the standard error envelope.
func WriteErrorResponse(w http.ResponseWriter, r *http.Request, status int, code, message string, details map[string]interface{}) {
	body := ErrorBody{Error: ErrorDetail{Code: code, Message: message, Details: details}}
	if r != nil {
		body.Error.TraceID = logging.GetTraceID(r.Context())
	}
	WriteJSON(w, status, body)
}

// DecodeJSON decodes the request body into dst, rejecting unknown fields.
// On failure it writes a 400 and returns false.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := decodeBody(r.Body, dst); err != nil {
		BadRequest(w, fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	return true
}

func decodeBody(body io.ReadCloser, dst interface{}) error {
	if body == nil {
		return errors.New("empty body")
	}
	defer body.Close()
	dec := json.NewDecoder(io.LimitReader(body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("empty body")
		}
		return err
	}
	return nil
}

// BadRequest writes a 400.
func BadRequest(w http.ResponseWriter, message string) {
	WriteErrorResponse(w, nil, http.StatusBadRequest, "BAD_REQUEST", message, nil)
}

// Unauthorized writes a 401.
func Unauthorized(w http.ResponseWriter, message string) {
	if message == "" {
		message = "Authentication required"
	}
	WriteErrorResponse(w, nil, http.StatusUnauthorized, "UNAUTHORIZED", message, nil)
}

// NotFound writes a 404.
func NotFound(w http.ResponseWriter, message string) {
	WriteErrorResponse(w, nil, http.StatusNotFound, "NOT_FOUND", message, nil)
}

// InternalError writes a 500.
func InternalError(w http.ResponseWriter, message string) {
	WriteErrorResponse(w, nil, http.StatusInternalServerError, "INTERNAL_ERROR", message, nil)
}

// RequireUserID returns the authenticated user id or writes a 401.
func RequireUserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := logging.GetUserID(r.Context())
	if userID == "" {
		Unauthorized(w, "")
		return "", false
	}
	return userID, true
}
