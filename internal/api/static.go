package api

import (
	"bytes"
	"embed"
	"fmt"
	"net/http"
	"strings"
	"time"
)

//go:embed templates/index.html
var templates embed.FS

func newIndexHandler() (http.HandlerFunc, error) {
	page, err := templates.ReadFile("templates/index.html")
	if err != nil {
		return nil, fmt.Errorf("load index page: %w", err)
	}
	loaded := time.Now()
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		http.ServeContent(w, r, "index.html", loaded, bytes.NewReader(page))
	}, nil
}

// screenshotFiles serves saved images from dir without directory listings.
func screenshotFiles(dir string) http.Handler {
	files := http.FileServer(http.Dir(dir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "" || strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		files.ServeHTTP(w, r)
	})
}
