package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/letsbefriends/platform/internal/app/realtime"
)

type frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func dialStream(t *testing.T, server *httptest.Server, query string, header http.Header) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + APIPrefix + "/ws" + query
	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	return dialer.Dial(url, header)
}

func readFrame(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var f frame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func TestStreamDeliversMessagesAndNotifications(t *testing.T) {
	env := newTestEnv(t)
	env.register("auth|ana")
	benID := env.register("auth|ben")
	server := httptest.NewServer(env.handler)
	defer server.Close()

	conn, resp, err := dialStream(t, server, "?access_token="+token(t, "auth|ben", "", "ben@example.com"), nil)
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)

	ready := readFrame(t, conn)
	require.Equal(t, "ready", ready.Type)
	assert.Contains(t, string(ready.Payload), benID)

	rec := env.do(http.MethodPost, "/api/v1/conversations", "auth|ana", map[string]string{"user_id": benID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	convID := decode(t, rec)["id"].(string)
	rec = env.do(http.MethodPost, "/api/v1/conversations/"+convID+"/messages", "auth|ana", map[string]string{"content": "kumusta?"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	msg := readFrame(t, conn)
	require.Equal(t, realtime.EventMessage, msg.Type)
	var body struct {
		ConversationID string `json:"conversation_id"`
		Content        string `json:"content"`
	}
	require.NoError(t, json.Unmarshal(msg.Payload, &body))
	assert.Equal(t, convID, body.ConversationID)
	assert.Equal(t, "kumusta?", body.Content)

	note := readFrame(t, conn)
	assert.Equal(t, realtime.EventNotification, note.Type)
	assert.Contains(t, string(note.Payload), `"type":"message"`)
}

func TestStreamRejections(t *testing.T) {
	env := newTestEnv(t)
	env.register("auth|ana")
	server := httptest.NewServer(env.handler)
	defer server.Close()

	_, resp, err := dialStream(t, server, "", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	header := http.Header{"Authorization": {"Bearer " + token(t, "auth|nobody", "", "nobody@example.com")}}
	_, resp, err = dialStream(t, server, "", header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	header = http.Header{
		"Authorization": {"Bearer " + token(t, "auth|ana", "", "ana@example.com")},
		"Origin":        {"https://evil.example.com"},
	}
	_, resp, err = dialStream(t, server, "", header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
