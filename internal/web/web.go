// Package web serves the embedded upload page.
package web

import (
	_ "embed"
	"net/http"
)

//go:embed upload.html
var uploadPage []byte

// ServeUpload serves the upload form and live event panel
func ServeUpload(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
	_, _ = w.Write(uploadPage)
}
