package handlers_test

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"adgenius/internal/compositor"
	"adgenius/internal/domain"
	"adgenius/internal/http/handlers"
	"adgenius/internal/http/httpapi"
	"adgenius/internal/pipeline"
	"adgenius/internal/retry"
	"adgenius/internal/session"
	"adgenius/internal/storage"
)

type stubProvider struct {
	mu        sync.Mutex
	failImage bool
	locales   []string
}

func (p *stubProvider) setFailImage(v bool) {
	p.mu.Lock()
	p.failImage = v
	p.mu.Unlock()
}

func (p *stubProvider) GenerateText(ctx context.Context, req domain.TextRequest) (string, error) {
	switch {
	case strings.HasPrefix(req.Prompt, "Identify"):
		return "Ceramic Mug", nil
	case strings.HasPrefix(req.Prompt, "Summarize"):
		return "Keeps coffee hot.", nil
	case strings.HasPrefix(req.Prompt, "Create ad strategy"):
		return `{"imagePrompt":"mug on oak","copyAngle":"cozy"}`, nil
	case strings.HasPrefix(req.Prompt, "Write ad copy"):
		p.mu.Lock()
		p.locales = append(p.locales, req.Prompt)
		p.mu.Unlock()
		return `{"headline":"Warm Starts","subheadline":"Every sip stays hot.","cta":"Buy now"}`, nil
	}
	return "", errors.New("unexpected prompt")
}

func (p *stubProvider) GenerateImage(ctx context.Context, req domain.ImageRequest) (*domain.Image, error) {
	p.mu.Lock()
	fail := p.failImage
	p.mu.Unlock()
	if fail {
		return nil, errors.New("model overloaded")
	}
	img := pngBytes(64, 36)
	return &domain.Image{Data: img, MIMEType: "image/png"}, nil
}

func pngBytes(w, h int) []byte {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x * 4), G: 90, B: uint8(y * 7), A: 255})
		}
	}
	buf := &bytes.Buffer{}
	_ = png.Encode(buf, img)
	return buf.Bytes()
}

type testServer struct {
	*httptest.Server
	provider  *stubProvider
	exportDir string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	provider := &stubProvider{}
	comp, err := compositor.New()
	if err != nil {
		t.Fatalf("compositor.New: %v", err)
	}
	dir := t.TempDir()
	exports, err := storage.NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	noSleep := func(ctx context.Context, d time.Duration) error { return ctx.Err() }
	app := handlers.NewApp(handlers.Options{
		Pipeline:        pipeline.New(provider, pipeline.Options{Policy: retry.Policy{Sleep: noSleep}}),
		Sessions:        session.NewStore(session.PolicyCancel),
		Compositor:      comp,
		Exports:         exports,
		ProviderMode:    "stub",
		ComplexStrategy: true,
		MaxUploadBytes:  1 << 20,
		Now:             func() time.Time { return time.UnixMilli(1700000000000) },
	})
	router := httpapi.NewRouter(app, httpapi.RouterOptions{
		Logger:         zerolog.New(io.Discard),
		AllowedOrigins: []string{"*"},
		DefaultLocale:  "en",
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, provider: provider, exportDir: dir}
}

func (s *testServer) do(t *testing.T, method, path, contentType string, body io.Reader) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, s.URL+path, body)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := s.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func (s *testServer) createSession(t *testing.T) string {
	t.Helper()
	resp := s.do(t, http.MethodPost, "/v1/sessions", "", nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create session status = %d", resp.StatusCode)
	}
	return decode[map[string]string](t, resp)["session_id"]
}

func (s *testServer) upload(t *testing.T, id string) {
	t.Helper()
	resp := s.do(t, http.MethodPut, "/v1/sessions/"+id+"/image", "image/png", bytes.NewReader(pngBytes(32, 32)))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("upload status = %d", resp.StatusCode)
	}
}

type adBody struct {
	SessionID string `json:"session_id"`
	Ad        struct {
		Headline    string `json:"headline"`
		CTA         string `json:"cta"`
		AspectRatio string `json:"aspect_ratio"`
		Tier        string `json:"tier"`
		Product     struct {
			Name        string `json:"name"`
			Description string `json:"description"`
		} `json:"product"`
	} `json:"ad"`
	ExportURL string `json:"export_url"`
}

type errorBody struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

func TestHealthReportsSessions(t *testing.T) {
	srv := newTestServer(t)
	srv.createSession(t)
	srv.createSession(t)

	resp := srv.do(t, http.MethodGet, "/v1/healthz", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health status = %d", resp.StatusCode)
	}
	body := decode[map[string]any](t, resp)
	if body["status"] != "ok" || body["sessions"] != float64(2) || body["provider"] != "stub" {
		t.Fatalf("unexpected health body %v", body)
	}
}

func TestCatalogs(t *testing.T) {
	srv := newTestServer(t)

	styles := decode[map[string][]domain.StyleInfo](t, srv.do(t, http.MethodGet, "/v1/styles", "", nil))
	if len(styles["styles"]) != 7 {
		t.Fatalf("expected 7 styles, got %d", len(styles["styles"]))
	}
	ratios := decode[map[string][]domain.AspectInfo](t, srv.do(t, http.MethodGet, "/v1/aspect-ratios", "", nil))
	if len(ratios["aspect_ratios"]) != 3 || ratios["aspect_ratios"][1].Height != 1920 {
		t.Fatalf("unexpected aspect ratios %+v", ratios)
	}
}

func TestGenerateAndExport(t *testing.T) {
	srv := newTestServer(t)
	id := srv.createSession(t)
	srv.upload(t, id)

	payload := `{"style":"Studio Professional","aspect_ratio":"16:9","tier":"standard"}`
	resp := srv.do(t, http.MethodPost, "/v1/sessions/"+id+"/generations", "application/json", strings.NewReader(payload))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("generate status = %d", resp.StatusCode)
	}
	body := decode[adBody](t, resp)
	if body.Ad.Headline != "Warm Starts" || body.Ad.AspectRatio != "16:9" || body.Ad.Product.Name != "Ceramic Mug" {
		t.Fatalf("unexpected ad %+v", body.Ad)
	}
	if body.ExportURL != "/v1/sessions/"+id+"/export" {
		t.Fatalf("export url = %q", body.ExportURL)
	}

	export := srv.do(t, http.MethodGet, body.ExportURL, "", nil)
	if export.StatusCode != http.StatusOK {
		t.Fatalf("export status = %d", export.StatusCode)
	}
	if got := export.Header.Get("Content-Disposition"); got != "attachment; filename=adgenius-1700000000000.png" {
		t.Fatalf("Content-Disposition = %q", got)
	}
	data, _ := io.ReadAll(export.Body)
	cfg, err := png.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode export: %v", err)
	}
	if cfg.Width != 1080 || cfg.Height != 608 {
		t.Fatalf("export size = %dx%d, want 1080x608", cfg.Width, cfg.Height)
	}
	stored := filepath.Join(srv.exportDir, "exports", id, "adgenius-1700000000000.png")
	if _, err := os.Stat(stored); err != nil {
		t.Fatalf("export not persisted: %v", err)
	}

	bundle := srv.do(t, http.MethodGet, "/v1/sessions/"+id+"/export/bundle", "", nil)
	if bundle.StatusCode != http.StatusOK || bundle.Header.Get("Content-Type") != "application/zip" {
		t.Fatalf("bundle status = %d type %q", bundle.StatusCode, bundle.Header.Get("Content-Type"))
	}
	zipped, _ := io.ReadAll(bundle.Body)
	zr, err := zip.NewReader(bytes.NewReader(zipped), int64(len(zipped)))
	if err != nil {
		t.Fatalf("open bundle: %v", err)
	}
	names := []string{}
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	if len(names) != 2 || names[0] != "adgenius-1700000000000.png" || names[1] != "ad.json" {
		t.Fatalf("bundle entries = %v", names)
	}

	imgResp := srv.do(t, http.MethodGet, "/v1/sessions/"+id+"/ad/image", "", nil)
	if imgResp.StatusCode != http.StatusOK || imgResp.Header.Get("Content-Type") != "image/png" {
		t.Fatalf("ad image status = %d type %q", imgResp.StatusCode, imgResp.Header.Get("Content-Type"))
	}
}

func TestMultipartUploadAndLocalizedCopy(t *testing.T) {
	srv := newTestServer(t)
	id := srv.createSession(t)

	part := &bytes.Buffer{}
	mw := multipart.NewWriter(part)
	fw, _ := mw.CreateFormFile("image", "mug.png")
	_, _ = fw.Write(pngBytes(16, 16))
	_ = mw.Close()
	resp := srv.do(t, http.MethodPut, "/v1/sessions/"+id+"/image", mw.FormDataContentType(), part)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("multipart upload status = %d", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/v1/sessions/"+id+"/generations", strings.NewReader(`{"style":"vintage","aspect_ratio":"1:1"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept-Language", "de-DE,de;q=0.9")
	gen, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	defer gen.Body.Close()
	if gen.StatusCode != http.StatusOK {
		t.Fatalf("generate status = %d", gen.StatusCode)
	}

	srv.provider.mu.Lock()
	defer srv.provider.mu.Unlock()
	if len(srv.provider.locales) != 1 || !strings.Contains(srv.provider.locales[0], "Write the copy in German.") {
		t.Fatalf("copy prompt did not carry the locale: %v", srv.provider.locales)
	}
}

func TestGenerateFailureIsRetryable(t *testing.T) {
	srv := newTestServer(t)
	id := srv.createSession(t)
	srv.upload(t, id)
	srv.provider.setFailImage(true)

	payload := `{"style":"studio","aspect_ratio":"1:1","tier":"high-fidelity"}`
	resp := srv.do(t, http.MethodPost, "/v1/sessions/"+id+"/generations", "application/json", strings.NewReader(payload))
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", resp.StatusCode)
	}
	body := decode[errorBody](t, resp)
	if body.Message != pipeline.GenericFailureMessage || !body.Retryable {
		t.Fatalf("unexpected error body %+v", body)
	}

	missing := srv.do(t, http.MethodGet, "/v1/sessions/"+id+"/ad", "", nil)
	if missing.StatusCode != http.StatusNotFound {
		t.Fatalf("ad after failure status = %d", missing.StatusCode)
	}

	srv.provider.setFailImage(false)
	retried := srv.do(t, http.MethodPost, "/v1/sessions/"+id+"/generations/retry", "", nil)
	if retried.StatusCode != http.StatusOK {
		t.Fatalf("retry status = %d", retried.StatusCode)
	}
	ad := decode[adBody](t, retried)
	if ad.Ad.Headline != "Warm Starts" || ad.Ad.Tier != "high-fidelity" {
		t.Fatalf("unexpected retried ad %+v", ad.Ad)
	}

	again := srv.do(t, http.MethodPost, "/v1/sessions/"+id+"/generations/retry", "", nil)
	if again.StatusCode != http.StatusConflict {
		t.Fatalf("second retry status = %d, want 409", again.StatusCode)
	}
}

func TestErrorMapping(t *testing.T) {
	srv := newTestServer(t)
	id := srv.createSession(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"unknown session", http.MethodGet, "/v1/sessions/nope", "", http.StatusNotFound},
		{"generate without image", http.MethodPost, "/v1/sessions/" + id + "/generations", `{"style":"studio","aspect_ratio":"1:1"}`, http.StatusConflict},
		{"unknown style", http.MethodPost, "/v1/sessions/" + id + "/generations", `{"style":"baroque","aspect_ratio":"1:1"}`, http.StatusBadRequest},
		{"unknown ratio", http.MethodPost, "/v1/sessions/" + id + "/generations", `{"style":"studio","aspect_ratio":"4:3"}`, http.StatusBadRequest},
		{"export before generation", http.MethodGet, "/v1/sessions/" + id + "/export", "", http.StatusNotFound},
		{"upload non image", http.MethodPut, "/v1/sessions/" + id + "/image", "plain text body", http.StatusBadRequest},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var body io.Reader
			if tc.body != "" {
				body = strings.NewReader(tc.body)
			}
			resp := srv.do(t, tc.method, tc.path, "", body)
			if resp.StatusCode != tc.want {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tc.want)
			}
		})
	}
}

func TestProfileEditAndReset(t *testing.T) {
	srv := newTestServer(t)
	id := srv.createSession(t)
	srv.upload(t, id)

	resp := srv.do(t, http.MethodPatch, "/v1/sessions/"+id+"/profile", "application/json", strings.NewReader(`{"description":"Hand-thrown stoneware mug"}`))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("profile status = %d", resp.StatusCode)
	}

	gen := srv.do(t, http.MethodPost, "/v1/sessions/"+id+"/generations", "application/json", strings.NewReader(`{"style":"minimal","aspect_ratio":"9:16"}`))
	ad := decode[adBody](t, gen)
	if ad.Ad.Product.Description != "Hand-thrown stoneware mug" {
		t.Fatalf("edited description not used: %+v", ad.Ad.Product)
	}

	reset := srv.do(t, http.MethodPost, "/v1/sessions/"+id+"/reset", "", nil)
	if reset.StatusCode != http.StatusNoContent {
		t.Fatalf("reset status = %d", reset.StatusCode)
	}
	state := decode[map[string]any](t, srv.do(t, http.MethodGet, "/v1/sessions/"+id, "", nil))
	if state["has_ad"] != false || state["has_source"] != false || state["stage"] != "idle" {
		t.Fatalf("unexpected state after reset %v", state)
	}

	del := srv.do(t, http.MethodDelete, "/v1/sessions/"+id, "", nil)
	if del.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status = %d", del.StatusCode)
	}
	gone := srv.do(t, http.MethodGet, "/v1/sessions/"+id, "", nil)
	if gone.StatusCode != http.StatusNotFound {
		t.Fatalf("get after delete status = %d", gone.StatusCode)
	}
}
