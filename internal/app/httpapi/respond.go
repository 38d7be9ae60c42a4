package httpapi

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/letsbefriends/platform/internal/app/storage"
	apperrors "github.com/letsbefriends/platform/internal/errors"
	"github.com/letsbefriends/platform/internal/httputil"
	"github.com/letsbefriends/platform/internal/logging"
)

// codeProfileRequired is returned to authenticated subjects that have not
// stored their profile yet.
const codeProfileRequired = "PROFILE_REQUIRED"

// writeError maps service and storage errors onto the JSON error envelope.
func (h *handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if se := apperrors.GetServiceError(err); se != nil {
		if se.HTTPStatus >= http.StatusInternalServerError {
			h.log.WithContext(r.Context()).WithError(err).Error("request failed")
		}
		httputil.WriteErrorResponse(w, r, se.HTTPStatus, string(se.Code), se.Message, se.Details)
		return
	}
	switch {
	case errors.Is(err, storage.ErrNotFound):
		httputil.WriteErrorResponse(w, r, http.StatusNotFound, string(apperrors.CodeNotFound), err.Error(), nil)
	case errors.Is(err, storage.ErrConflict):
		httputil.WriteErrorResponse(w, r, http.StatusConflict, string(apperrors.CodeConflict), err.Error(), nil)
	case errors.Is(err, storage.ErrLimitReached):
		httputil.WriteErrorResponse(w, r, http.StatusPaymentRequired, string(apperrors.CodeLimitExceeded), err.Error(), nil)
	default:
		h.log.WithContext(r.Context()).WithError(err).Error("request failed")
		httputil.WriteErrorResponse(w, r, http.StatusInternalServerError, string(apperrors.CodeInternal), "internal error", nil)
	}
}

// currentUser returns the caller's user id. Authenticated subjects without a
// stored profile get 403 so clients know to call POST /me first.
func currentUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	ctx := r.Context()
	if id := logging.GetUserID(ctx); id != "" {
		return id, true
	}
	if logging.GetSubject(ctx) != "" {
		httputil.WriteErrorResponse(w, r, http.StatusForbidden, codeProfileRequired,
			"store your profile with POST /api/v1/me first", nil)
		return "", false
	}
	httputil.Unauthorized(w, "")
	return "", false
}

func pathVar(r *http.Request, name string) string {
	return mux.Vars(r)[name]
}

func queryLimit(r *http.Request) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("limit"))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, apperrors.Validation("limit must be a non-negative integer")
	}
	return n, nil
}

func queryTime(r *http.Request, name string) (time.Time, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, apperrors.Validation(fmt.Sprintf("%s must be an RFC 3339 timestamp", name))
	}
	return t, nil
}

func queryFloat(r *http.Request, name string) (float64, bool, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, false, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false, apperrors.Validation(fmt.Sprintf("%s must be a number", name))
	}
	return v, true, nil
}

func queryBool(r *http.Request, name string) bool {
	v, _ := strconv.ParseBool(r.URL.Query().Get(name))
	return v
}

// page reads the before/limit pair used by backwards paginated lists.
func page(r *http.Request) (time.Time, int, error) {
	before, err := queryTime(r, "before")
	if err != nil {
		return time.Time{}, 0, err
	}
	limit, err := queryLimit(r)
	return before, limit, err
}

// decodeOptional decodes a JSON body when one was sent.
func decodeOptional(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if r.Body == nil || r.ContentLength == 0 {
		return true
	}
	return httputil.DecodeJSON(w, r, dst)
}

func noContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// list wraps slices so empty results encode as [] rather than null.
func list[T any](items []T) map[string]interface{} {
	if items == nil {
		items = []T{}
	}
	return map[string]interface{}{"items": items}
}
