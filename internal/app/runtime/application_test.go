package runtime

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/letsbefriends/platform/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.FromEnv()
	require.NoError(t, err)
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = freePort(t)
	cfg.Server.ShutdownTimeout = 2 * time.Second
	cfg.Database.DSN = ""
	cfg.Redis.Addr = ""
	cfg.Auth = config.AuthConfig{HMACSecret: "runtime-secret"}
	cfg.Payments.ProviderURL = ""
	cfg.PlansFile = ""
	cfg.Logging.Level = "error"
	return cfg
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func TestAuthConfig(t *testing.T) {
	_, err := authConfig(config.AuthConfig{})
	assert.Error(t, err)

	out, err := authConfig(config.AuthConfig{HMACSecret: "s", Issuer: "iss"})
	require.NoError(t, err)
	assert.Equal(t, []byte("s"), out.HMACSecret)
	assert.Equal(t, "iss", out.Issuer)

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	pemKey := string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}))

	out, err = authConfig(config.AuthConfig{HMACSecret: "s", PublicKeyPEM: pemKey})
	require.NoError(t, err)
	assert.NotNil(t, out.PublicKey)
	assert.Nil(t, out.HMACSecret, "public key takes precedence")

	_, err = authConfig(config.AuthConfig{PublicKeyPEM: "not a key"})
	assert.Error(t, err)
}

func TestPaymentProviderSelection(t *testing.T) {
	assert.Nil(t, paymentProvider(config.PaymentsConfig{}))
	assert.NotNil(t, paymentProvider(config.PaymentsConfig{ProviderURL: "https://pay.example.com"}))
}

func TestNewApplicationInMemory(t *testing.T) {
	a, err := NewApplication(context.Background(), testConfig(t))
	require.NoError(t, err)

	assert.Contains(t, a.Services(), "rate-limiter")

	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestNewApplicationRequiresAuth(t *testing.T) {
	cfg := testConfig(t)
	cfg.Auth = config.AuthConfig{}
	_, err := NewApplication(context.Background(), cfg)
	assert.Error(t, err)
}

func TestRunStopsOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	cfg := testConfig(t)
	a, err := NewApplication(context.Background(), cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	url := "http://" + cfg.Server.Addr() + "/healthz"
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	http.DefaultClient.CloseIdleConnections()
}
