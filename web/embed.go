// Package web embeds the quest page (dist/) and serves it. Unknown paths
// fall back to index.html so /g/{group} deep links load the page.
package web

import (
	"embed"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"
)

//go:embed all:dist
var distFS embed.FS

// reservedPrefixes never fall back to index.html.
var reservedPrefixes = []string{"api/", "ws/"}

// Handler returns an http.Handler that serves the embedded page.
func Handler() http.Handler {
	subFS, err := fs.Sub(distFS, "dist")
	if err != nil {
		panic("web: failed to create sub filesystem: " + err.Error())
	}
	return handlerFor(subFS)
}

func handlerFor(subFS fs.FS) http.Handler {
	fileServer := http.FileServer(http.FS(subFS))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, "/")
		if path == "" {
			path = "index.html"
		}

		if f, err := subFS.Open(path); err == nil {
			if closeErr := f.Close(); closeErr != nil {
				slog.Debug("web: failed to close embedded file", "path", path, "error", closeErr)
			}
			if path != "index.html" {
				w.Header().Set("Cache-Control", "public, max-age=3600")
			}
			fileServer.ServeHTTP(w, r)
			return
		}

		for _, prefix := range reservedPrefixes {
			if strings.HasPrefix(path, prefix) {
				http.NotFound(w, r)
				return
			}
		}

		r.URL.Path = "/"
		fileServer.ServeHTTP(w, r)
	})
}
