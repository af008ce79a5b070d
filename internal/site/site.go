// Package site serves the embedded marketing-site front end.
package site

import (
	"embed"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path"
)

//go:embed public/*
var content embed.FS

// Handler returns an http.Handler that serves the site's static assets.
//
// When dir is non-empty and the directory exists, assets are served from the
// filesystem (dev mode — edit and refresh, no rebuild). When dir is empty,
// assets come from the embedded go:embed FS (production).
//
// Both modes implement SPA fallback: a request for a path that has no file
// gets index.html with 200 so client-side navigation works.
// Panics if the embedded assets cannot be loaded (build error).
func Handler(dir string) http.Handler {
	var fileSystem http.FileSystem

	if dir != "" {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			fileSystem = http.Dir(dir)
		}
	}

	// Fall back to embedded assets if dir was empty or didn't exist
	if fileSystem == nil {
		publicFS, err := fs.Sub(content, "public")
		if err != nil {
			panic(fmt.Sprintf("site: failed to load embedded assets: %v", err))
		}
		fileSystem = http.FS(publicFS)
	}

	fileServer := http.FileServer(fileSystem)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// index.html is mutable; asset filenames are content-hashed
		w.Header().Set("Cache-Control", "no-cache, must-revalidate")

		upath := path.Clean(r.URL.Path)
		if upath == "." {
			upath = "/"
		}

		if upath == "/" {
			fileServer.ServeHTTP(w, r)
			return
		}

		filePath := upath[1:] // strip leading /
		f, err := fileSystem.Open(filePath)
		if err != nil {
			// File not found — SPA fallback: serve index.html with 200
			r.URL.Path = "/"
			fileServer.ServeHTTP(w, r)
			return
		}
		f.Close()

		fileServer.ServeHTTP(w, r)
	})
}
