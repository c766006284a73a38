package web

import (
	"bytes"
	_ "embed"
	"net/http"
	"time"
)

//go:embed index.html
var indexHTML []byte

var loadedAt = time.Now()

// Index serves the single-page study UI.
func Index() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		http.ServeContent(w, r, "index.html", loadedAt, bytes.NewReader(indexHTML))
	}
}
