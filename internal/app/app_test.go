package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"edziennik-backend/internal/components/chrono"
	"edziennik-backend/internal/components/telemetry"
	"edziennik-backend/internal/push"
	"edziennik-backend/lib/configutil"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, contents string) {
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
}

func TestReadConfig(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "config.json5"), `{
		// shared defaults
		database: { path: ":memory:" },
		http: { secret: "from-default", addr: "127.0.0.1:9000" },
		cron: { fast: "" },
	}`)
	writeFile(t, filepath.Join(dir, "config.local.json5"), `{
		http: { secret: "from-local" },
	}`)

	cfg, err := configutil.ReadConfig[Config](filepath.Join(dir, "config.json5"))
	require.NoError(t, err)
	require.Equal(t, "from-local", cfg.Http.Secret)
	require.Equal(t, "127.0.0.1:9000", cfg.Http.ListenAddr())
	require.Equal(t, "", cfg.Cron.FastSchedule())
	require.Equal(t, DefaultDeepSchedule, cfg.Cron.DeepSchedule())
}

func TestReadConfigValidates(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "config.json5"), `{
		database: { path: ":memory:" },
		http: { secret: "x" },
		push: { transport: "fcm" },
	}`)
	_, err := configutil.ReadConfig[Config](filepath.Join(dir, "config.json5"))
	require.ErrorContains(t, err, "CredentialsFile")

	_, err = configutil.ReadConfig[Config](filepath.Join(dir, "missing.json5"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestNewServesRequests(t *testing.T) {
	cfg := Config{
		Database: DatabaseConfig{Path: ":memory:"},
		Http:     HttpConfig{Secret: "s3cret"},
	}
	a, err := New(context.Background(), cfg, chrono.NewStandardTime(), telemetry.NewRecorderAPI())
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, a.Close())
	})

	req := httptest.NewRequest(http.MethodPost, "/deepChangesCheck", strings.NewReader(`{"secret":"s3cret"}`))
	rec := httptest.NewRecorder()
	a.Service.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"statusCode":200,"data":{"deepChanges":false}}`, rec.Body.String())
}

func TestNewTransportRoutesEmail(t *testing.T) {
	transport, err := newTransport(context.Background(), PushConfig{
		Email: EmailConfig{Server: "smtp.example.com", Address: "a@example.com"},
	}, telemetry.NewRecorderAPI())
	require.NoError(t, err)
	require.IsType(t, push.Router{}, transport)

	transport, err = newTransport(context.Background(), PushConfig{}, telemetry.NewRecorderAPI())
	require.NoError(t, err)
	require.IsType(t, push.LogTransport{}, transport)
}
