package httpapi

import (
	"context"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/require"

	app "github.com/letsbefriends/platform/internal/app"
	"github.com/letsbefriends/platform/internal/app/storage/postgres"
	"github.com/letsbefriends/platform/internal/logging"
	"github.com/letsbefriends/platform/internal/middleware"
	"github.com/letsbefriends/platform/internal/platform/database"
	"github.com/letsbefriends/platform/internal/platform/migrations"
)

// TestIntegrationPostgres drives the HTTP surface against a real database.
func TestIntegrationPostgres(t *testing.T) {
	_ = godotenv.Load()
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set; skipping postgres integration test")
	}

	ctx := context.Background()
	db, err := database.Open(ctx, database.Options{DSN: dsn, PingTimeout: 5 * time.Second})
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, migrations.Apply(ctx, db))

	application, err := app.New(app.StoresFrom(postgres.New(db)), app.Options{DisableSweeper: true}, nil)
	require.NoError(t, err)
	log := logging.New("integration", "error", "json")
	auth, err := middleware.NewAuthMiddleware(middleware.AuthConfig{HMACSecret: testSecret}, application.Users, log)
	require.NoError(t, err)
	handler, err := NewRouter(application, Config{Auth: auth, Logger: log})
	require.NoError(t, err)
	env := &testEnv{t: t, handler: handler}

	suffix := time.Now().Format("150405000000")
	provider := "auth|prov" + suffix
	client := "auth|client" + suffix
	env.register(provider)
	env.register(client)

	rec := env.do(http.MethodPost, "/api/v1/services", provider, map[string]any{
		"title":            "Massage",
		"category":         "wellness",
		"price":            80000,
		"currency":         "PHP",
		"duration_minutes": 90,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	serviceID := decode(t, rec)["id"].(string)

	rec = env.do(http.MethodPost, "/api/v1/bookings", client, map[string]any{
		"service_id":   serviceID,
		"scheduled_at": time.Now().Add(72 * time.Hour).UTC(),
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	bookingID := decode(t, rec)["id"].(string)

	rec = env.do(http.MethodPost, "/api/v1/bookings/"+bookingID+"/accept", provider, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(http.MethodPost, "/api/v1/bookings/"+bookingID+"/cancel", client, map[string]string{"reason": "travel"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, "cancelled", decode(t, rec)["status"])
}
