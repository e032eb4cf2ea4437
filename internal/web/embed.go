// Package web serves the browser frontend: a build directory from disk when
// configured, otherwise the page embedded in the binary.
package web

import (
	"embed"
	"io/fs"
	"net/http"
	"os"
	"path"
	"strings"

	"github.com/labstack/echo/v4"
)

//go:embed dist/*
var staticFiles embed.FS

// Embedded returns the embedded filesystem with the dist folder as root.
func Embedded() (fs.FS, error) {
	return fs.Sub(staticFiles, "dist")
}

// FileSystem picks dir when set, else the embedded files.
func FileSystem(dir string) (fs.FS, error) {
	if dir == "" {
		return Embedded()
	}
	if _, err := os.Stat(path.Join(dir, "index.html")); err != nil {
		return nil, err
	}
	return os.DirFS(dir), nil
}

// RegisterStaticRoutes serves fsys for every path the API does not claim.
// API routes must be registered first.
func RegisterStaticRoutes(e *echo.Echo, fsys fs.FS) {
	e.GET("/*", Handler(fsys))
}

// Handler serves files from fsys. Unknown paths get index.html so the
// frontend router can resolve them; /api paths get a 404.
func Handler(fsys fs.FS) echo.HandlerFunc {
	fileServer := http.FileServer(http.FS(fsys))
	return func(c echo.Context) error {
		requestPath := path.Clean(c.Request().URL.Path)
		if strings.HasPrefix(requestPath, "/api/") || requestPath == "/api" {
			return echo.ErrNotFound
		}

		name := strings.TrimPrefix(requestPath, "/")
		if name == "" {
			name = "."
		}
		stat, err := fs.Stat(fsys, name)
		if err != nil {
			return serveIndex(c, fsys)
		}
		if stat.IsDir() {
			if _, err := fs.Stat(fsys, path.Join(name, "index.html")); err != nil {
				return serveIndex(c, fsys)
			}
		}

		fileServer.ServeHTTP(c.Response(), c.Request())
		return nil
	}
}

func serveIndex(c echo.Context, fsys fs.FS) error {
	content, err := fs.ReadFile(fsys, "index.html")
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "index.html not found")
	}
	return c.HTMLBlob(http.StatusOK, content)
}
