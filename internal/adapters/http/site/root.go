// Package site handles the service root.
package site

import (
	"context"
	"net/http"
)

// DocsPath is where the root redirects.
const DocsPath = "/api-docs"

// Register attaches the root redirect to mux. Only the exact root path is
// matched; unknown paths still 404.
func Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}
	mux.Handle("GET /{$}", NewRootHandler())
}

// RootHandler sends visitors of / to the API docs.
type RootHandler struct{}

// NewRootHandler creates a new root handler.
func NewRootHandler() *RootHandler {
	return &RootHandler{}
}

// ServeHTTP handles GET /.
func (h *RootHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, DocsPath, http.StatusFound)
}
