package serviceutil

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

func TestSecretMatches(t *testing.T) {
	require.True(t, SecretMatches("s3cret", "s3cret"))
	require.False(t, SecretMatches("s3cret", "s3cre"))
	require.False(t, SecretMatches("", ""))
}

func TestBearerToken(t *testing.T) {
	cases := map[string]string{
		"Bearer abc":  "abc",
		"bearer  abc": "abc",
		"Basic abc":   "",
		"abc":         "",
		"":            "",
	}
	for header, expected := range cases {
		r := httptest.NewRequest(http.MethodPost, "/", nil)
		r.Header.Set("Authorization", header)
		require.Equal(t, expected, BearerToken(r), header)
	}
}

func TestTraced(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	handler := Traced(provider.Tracer("test"), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/broken" {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))

	for _, path := range []string{"/grades", "/broken"} {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, path, nil))
	}

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	require.Equal(t, "POST /grades", spans[0].Name())
	require.Contains(t, spans[0].Attributes(), semconv.HTTPResponseStatusCode(http.StatusOK))
	require.Equal(t, codes.Unset, spans[0].Status().Code)
	require.Contains(t, spans[1].Attributes(), semconv.HTTPResponseStatusCode(http.StatusBadGateway))
	require.Equal(t, codes.Error, spans[1].Status().Code)
}
