package handler

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/sentriwatch/notification-engine/internal/config"
)

func newActionsFixture(t *testing.T, upstreamURL string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	doc := `
cameras:
  front_door:
    enabled: true
    notifications:
      enabled: true
    actions:
      - name: porch_light
        url: ` + upstreamURL + `
        method: POST
        body: '{"on": true}'
`
	path := filepath.Join(t.TempDir(), "cameras.yaml")
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	manager := config.NewManager(path)
	if _, err := manager.Load(); err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	h := NewCameraActionsHandler(manager)
	r := gin.New()
	r.GET("/api/v1/cameras/:camera/actions", h.HandleListActions)
	r.POST("/api/v1/cameras/:camera/actions/:name", h.HandleRunAction)
	return r
}

func TestListActions(t *testing.T) {
	r := newActionsFixture(t, "http://localhost:1")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/cameras/front_door/actions", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "porch_light") {
		t.Errorf("body = %s, missing action name", w.Body.String())
	}
}

func TestRunActionForwardsRequest(t *testing.T) {
	var gotBody string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	r := newActionsFixture(t, upstream.URL)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/cameras/front_door/actions/porch_light", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"success":true`) {
		t.Errorf("body = %s, want success true", w.Body.String())
	}
	if gotBody != `{"on": true}` {
		t.Errorf("upstream body = %q", gotBody)
	}
}

func TestRunActionUpstreamFailureIsSoft(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer upstream.Close()

	r := newActionsFixture(t, upstream.URL)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/cameras/front_door/actions/porch_light", nil)
	r.ServeHTTP(w, req)

	// Upstream failure is still a 200 from this service.
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"success":false`) {
		t.Errorf("body = %s, want success false", w.Body.String())
	}
}

func TestRunActionUnknownCameraOrAction(t *testing.T) {
	r := newActionsFixture(t, "http://localhost:1")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/cameras/ghost/actions/porch_light", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown camera status = %d, want 404", w.Code)
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/v1/cameras/front_door/actions/garage", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown action status = %d, want 404", w.Code)
	}
}
