package panel

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHandlerServesRoot(t *testing.T) {
	w := get(t, Handler(""), "/")

	if w.Code != http.StatusOK {
		t.Errorf("GET /: got status %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "<!DOCTYPE html>") {
		t.Error("GET /: response doesn't contain HTML doctype")
	}
	if got := w.Header().Get("Cache-Control"); got != "no-cache, must-revalidate" {
		t.Errorf("Cache-Control = %q", got)
	}
}

func TestHandlerServesAssets(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/app.js", "/api/v1/ws"},
		{"/app.js", "robot.pose"},
		{"/style.css", ".badge"},
	}

	h := Handler("")
	for _, tt := range tests {
		t.Run(tt.path+" "+tt.want, func(t *testing.T) {
			w := get(t, h, tt.path)
			if w.Code != http.StatusOK {
				t.Fatalf("GET %s: got status %d, want 200", tt.path, w.Code)
			}
			if !strings.Contains(w.Body.String(), tt.want) {
				t.Errorf("GET %s: body does not contain %q", tt.path, tt.want)
			}
		})
	}
}

func TestHandlerUnknownPath(t *testing.T) {
	w := get(t, Handler(""), "/nonexistent.js")
	if w.Code != http.StatusNotFound {
		t.Errorf("GET /nonexistent.js: got status %d, want 404", w.Code)
	}
}

func TestHandlerFilesystemMode(t *testing.T) {
	dir := t.TempDir()
	index := `<!DOCTYPE html><html><body>filesystem dashboard</body></html>`
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte(index), 0644); err != nil {
		t.Fatal(err)
	}

	w := get(t, Handler(dir), "/")
	if w.Code != http.StatusOK {
		t.Errorf("filesystem GET /: got status %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "filesystem dashboard") {
		t.Errorf("filesystem GET /: got %q", w.Body.String())
	}
}

func TestHandlerInvalidDirFallsBackToEmbed(t *testing.T) {
	w := get(t, Handler("/nonexistent/dir/that/does/not/exist"), "/")

	if w.Code != http.StatusOK {
		t.Errorf("invalid dir GET /: got status %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Shopfloor Simulation") {
		t.Error("invalid dir: didn't fall back to embedded dashboard")
	}
}
