// Package staticsite is the boundary-only static-directory pipeline: the
// file-serving internals (range requests, directory listing, etc.) are out
// of scope, but the dispatch pipeline needs a real handler behind
// StaticAppBinding to be exercisable end-to-end.
package staticsite

import "net/http"

// Handler serves an app's Target directory over HTTP, after the caller has
// already run the authorization check (which applies identically to
// static apps).
type Handler struct {
	fileServer http.Handler
}

// NewHandler builds a Handler rooted at dir.
func NewHandler(dir string) *Handler {
	return &Handler{fileServer: http.FileServer(http.Dir(dir))}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.fileServer.ServeHTTP(w, r)
}
