package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	speechmodel "github.com/webhelpdesk/helpdesk/internal/model/speech"
	chatService "github.com/webhelpdesk/helpdesk/internal/service/chat"
	speechService "github.com/webhelpdesk/helpdesk/internal/service/speech"
)

type stubAsker struct{}

func (stubAsker) Ask(context.Context, string) (string, error) { return "ok", nil }

func newTestRouter(speech *speechService.Service, metrics bool) http.Handler {
	return NewRouter(Deps{
		Chat:           chatService.NewService(),
		Asker:          stubAsker{},
		Speech:         speech,
		Locale:         "en-US",
		MetricsEnabled: metrics,
		PublicURL:      "https://helpdesk.example.com",
	})
}

func TestRouterServesPage(t *testing.T) {
	r := newTestRouter(nil, false)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "chat-box") {
		t.Fatalf("expected chat page")
	}
}

func TestRouterHealth(t *testing.T) {
	r := newTestRouter(nil, false)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"speech":false`) {
		t.Fatalf("unexpected health body %s", rr.Body.String())
	}
}

func TestRouterMetricsToggle(t *testing.T) {
	for _, enabled := range []bool{true, false} {
		r := newTestRouter(nil, enabled)

		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

		if enabled && rr.Code != http.StatusOK {
			t.Fatalf("metrics enabled: expected 200, got %d", rr.Code)
		}
		if !enabled && rr.Code != http.StatusNotFound {
			t.Fatalf("metrics disabled: expected 404, got %d", rr.Code)
		}
	}
}

func TestRouterSpeechRoutesRequireCredentials(t *testing.T) {
	unconfigured := speechService.NewService(&speechmodel.SpeechConfig{})
	r := newTestRouter(unconfigured, false)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/speech/health", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 without credentials, got %d", rr.Code)
	}

	configured := speechService.NewService(&speechmodel.SpeechConfig{AppID: "app", AccessToken: "token"})
	r = newTestRouter(configured, false)

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/speech/health", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 with credentials, got %d", rr.Code)
	}
}

func TestRouterCORSPreflight(t *testing.T) {
	r := newTestRouter(nil, false)

	req := httptest.NewRequest(http.MethodOptions, "/api/sessions/x/messages", nil)
	req.Header.Set("Origin", "http://example.com")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}
}

func TestRouterServesQRCode(t *testing.T) {
	r := newTestRouter(nil, false)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/qr", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "image/png" {
		t.Fatalf("expected image/png, got %q", ct)
	}
	if rr.Body.Len() == 0 {
		t.Fatal("expected png body")
	}
}

func TestRouterPageShowsMicLabel(t *testing.T) {
	r := newTestRouter(nil, false)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	if !strings.Contains(rr.Body.String(), `id="mic-label"`) {
		t.Fatal("expected visible microphone label element")
	}
}
