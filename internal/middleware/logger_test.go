package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
)

func TestLoggerWritesAccessLine(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := zerolog.New(buf)
	h := RequestID(Logger(logger)(I18N("en", nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("nope"))
	}))))

	req := httptest.NewRequest(http.MethodPost, "/v1/sessions/abc/generations", nil)
	req.Header.Set("X-Request-ID", "req-42")
	req.Header.Set("Accept-Language", "fr-FR")
	h.ServeHTTP(httptest.NewRecorder(), req)

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	want := map[string]any{
		"level":      "error",
		"method":     http.MethodPost,
		"path":       "/v1/sessions/abc/generations",
		"status":     float64(http.StatusBadGateway),
		"bytes":      float64(4),
		"request_id": "req-42",
		"locale":     "fr",
	}
	for k, v := range want {
		if line[k] != v {
			t.Errorf("%s = %v, want %v", k, line[k], v)
		}
	}
}
