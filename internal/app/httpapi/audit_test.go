package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/letsbefriends/platform/internal/logging"
)

func TestAuditMiddlewareRecordsMutations(t *testing.T) {
	audit := newAuditLog(2, nil)
	r := mux.NewRouter()
	r.Use(audit.middleware)
	r.HandleFunc("/posts/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}).Methods(http.MethodDelete, http.MethodGet)

	req := httptest.NewRequest(http.MethodGet, "/posts/p1", nil)
	r.ServeHTTP(httptest.NewRecorder(), req)
	assert.Empty(t, audit.list(), "reads are not audited")

	for _, id := range []string{"p1", "p2", "p3"} {
		req := httptest.NewRequest(http.MethodDelete, "/posts/"+id, nil)
		req = req.WithContext(logging.WithUserID(req.Context(), "u1"))
		r.ServeHTTP(httptest.NewRecorder(), req)
	}

	entries := audit.list()
	require.Len(t, entries, 2, "log keeps the newest entries")
	assert.Equal(t, "/posts/{id}", entries[1].Path)
	assert.Equal(t, "u1", entries[1].User)
	assert.Equal(t, http.StatusNoContent, entries[1].Status)
}
