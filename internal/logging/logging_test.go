package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextRoundTrip(t *testing.T) {
	ctx := WithTraceID(context.Background(), "trace-1")
	ctx = WithUserID(ctx, "user-1")
	ctx = WithSubject(ctx, "auth|1")

	assert.Equal(t, "trace-1", GetTraceID(ctx))
	assert.Equal(t, "user-1", GetUserID(ctx))
	assert.Equal(t, "auth|1", GetSubject(ctx))
	assert.Empty(t, GetRole(ctx))
	assert.Empty(t, GetUserID(context.Background()))
}

func TestWithTraceIDIgnoresEmpty(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, ctx, WithTraceID(ctx, ""))
}

func TestNewTraceIDUnique(t *testing.T) {
	assert.NotEqual(t, NewTraceID(), NewTraceID())
}

func TestLogRequestIncludesIdentity(t *testing.T) {
	log := New("api", "info", "json")
	var buf bytes.Buffer
	log.Base().SetOutput(&buf)

	ctx := WithUserID(WithTraceID(context.Background(), "t-9"), "u-9")
	log.LogRequest(ctx, http.MethodGet, "/api/v1/feed", http.StatusNotFound, 15*time.Millisecond)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "t-9", entry["trace_id"])
	assert.Equal(t, "u-9", entry["user_id"])
	assert.Equal(t, "warning", entry["level"])
	assert.EqualValues(t, 404, entry["status"])
}
