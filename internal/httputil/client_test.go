package httputil

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/letsbefriends/platform/internal/logging"
)

// =============================================================================
// ServiceClient Tests
// =============================================================================

func TestNewServiceClient(t *testing.T) {
	client := NewServiceClient(ServiceClientConfig{
		BaseURL: "http://localhost:8080/",
		Timeout: 10 * time.Second,
	})

	if client == nil {
		t.Fatal("NewServiceClient() returned nil")
	}
	if client.baseURL != "http://localhost:8080" {
		t.Errorf("baseURL = %s, want http://localhost:8080", client.baseURL)
	}
	if _, ok := client.doer.(*http.Client); !ok {
		t.Errorf("default doer = %T, want *http.Client", client.doer)
	}
}

func TestServiceClient_Headers(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer sk_test" {
			t.Errorf("Authorization = %q", got)
		}
		if got := r.Header.Get("X-Trace-ID"); got != "trace-42" {
			t.Errorf("X-Trace-ID = %q", got)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewServiceClient(ServiceClientConfig{BaseURL: server.URL, APIKey: "sk_test"})
	ctx := logging.WithTraceID(context.Background(), "trace-42")
	resp, err := client.Get(ctx, "/ping")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	resp.Body.Close()
}

func TestServiceClient_PostJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Method = %s, want POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %s", ct)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "chk_1", "reference": body["reference"].(string)})
	}))
	defer server.Close()

	client := NewServiceClient(ServiceClientConfig{BaseURL: server.URL})
	var out struct {
		ID        string `json:"id"`
		Reference string `json:"reference"`
	}
	if err := client.PostJSON(context.Background(), "/checkout", map[string]string{"reference": "bk_1"}, &out); err != nil {
		t.Fatalf("PostJSON() error = %v", err)
	}
	if out.ID != "chk_1" || out.Reference != "bk_1" {
		t.Fatalf("unexpected response %+v", out)
	}
}

type recordingDoer struct {
	calls int
}

func (d *recordingDoer) Do(req *http.Request) (*http.Response, error) {
	d.calls++
	rec := httptest.NewRecorder()
	rec.WriteHeader(http.StatusNoContent)
	return rec.Result(), nil
}

func TestServiceClient_CustomDoer(t *testing.T) {
	doer := &recordingDoer{}
	client := NewServiceClient(ServiceClientConfig{BaseURL: "http://provider.invalid", Doer: doer})
	resp, err := client.Post(context.Background(), "/x", nil)
	if err != nil {
		t.Fatalf("Post() error = %v", err)
	}
	resp.Body.Close()
	if doer.calls != 1 {
		t.Fatalf("doer calls = %d, want 1", doer.calls)
	}
}

func TestDecodeResponse_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"message": "hello"})
	}))
	defer server.Close()

	resp, err := http.Get(server.URL)
	if err != nil {
		t.Fatalf("http.Get() error = %v", err)
	}

	var result map[string]string
	if err := DecodeResponse(resp, &result); err != nil {
		t.Fatalf("DecodeResponse() error = %v", err)
	}
	if result["message"] != "hello" {
		t.Errorf("result[message] = %s, want hello", result["message"])
	}
}

func TestDecodeResponse_Error(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte("bad request"))
	}))
	defer server.Close()

	resp, err := http.Get(server.URL)
	if err != nil {
		t.Fatalf("http.Get() error = %v", err)
	}

	err = DecodeResponse(resp, nil)
	if err == nil || !strings.Contains(err.Error(), "bad request") {
		t.Errorf("DecodeResponse() error = %v, want 4xx error with body", err)
	}
}

func TestReadAllWithLimit(t *testing.T) {
	data, truncated, err := ReadAllWithLimit(strings.NewReader("abcdef"), 4)
	if err != nil || !truncated || string(data) != "abcd" {
		t.Fatalf("got %q truncated=%v err=%v", data, truncated, err)
	}
	if _, err := ReadAllStrict(strings.NewReader("abcdef"), 4); err == nil {
		t.Fatal("expected strict read to fail")
	}
}
