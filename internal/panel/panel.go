package panel

import (
	"embed"
	"fmt"
	"io/fs"
	"net/http"
	"os"
)

//go:embed web/*
var content embed.FS

// Handler returns an http.Handler that serves the dashboard.
//
// When dir names an existing directory the assets are read from it, so the
// page can be edited without rebuilding. Otherwise the embedded copy is used.
// Panics if the embedded assets cannot be loaded.
func Handler(dir string) http.Handler {
	fileServer := http.FileServer(Assets(dir))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-cache, must-revalidate")
		fileServer.ServeHTTP(w, r)
	})
}

// Assets returns the dashboard file system, preferring dir when it exists.
func Assets(dir string) http.FileSystem {
	if dir != "" {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return http.Dir(dir)
		}
	}

	webFS, err := fs.Sub(content, "web")
	if err != nil {
		panic(fmt.Sprintf("panel: failed to load embedded assets: %v", err))
	}
	return http.FS(webFS)
}
