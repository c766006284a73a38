package web

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestIndexServesPage(t *testing.T) {
	rec := httptest.NewRecorder()
	Index().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Fatalf("unexpected content type %q", ct)
	}
	for _, want := range []string{"/api/study/", "/api/documents/summary", "/api/videos/summary", "/api/jobs/"} {
		if !strings.Contains(rec.Body.String(), want) {
			t.Errorf("page does not call %s", want)
		}
	}
}

func TestRenderedMarkdownIsSanitized(t *testing.T) {
	page := string(indexHTML)
	if !strings.Contains(page, "purify.min.js") {
		t.Fatal("sanitizer script is not loaded")
	}
	if !strings.Contains(page, "DOMPurify.sanitize(marked.parse(") {
		t.Fatal("markdown output is not sanitized")
	}
	if strings.Count(page, "innerHTML =") != strings.Count(page, "innerHTML = DOMPurify.sanitize(") {
		t.Fatal("innerHTML is assigned without sanitizing")
	}
}
