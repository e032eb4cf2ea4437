package web

import (
	"io/fs"
	"net/http"
	"net/http/httptest"
	"testing"
	"testing/fstest"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandler(t *testing.T) {
	fsys := fstest.MapFS{
		"index.html":    {Data: []byte("<html>index</html>")},
		"assets/app.js": {Data: []byte("console.log(1)")},
	}
	e := echo.New()
	RegisterStaticRoutes(e, fsys)

	get := func(target string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		return rec
	}

	rec := get("/assets/app.js")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "console.log(1)", rec.Body.String())

	rec = get("/sessions/abc")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "index")

	rec = get("/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "index")

	rec = get("/api/unknown")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEmbedded(t *testing.T) {
	fsys, err := FileSystem("")
	require.NoError(t, err)

	data, err := fs.ReadFile(fsys, "index.html")
	require.NoError(t, err)
	assert.Contains(t, string(data), "LogVision")
}

func TestFileSystemDirectory(t *testing.T) {
	_, err := FileSystem(t.TempDir())
	assert.Error(t, err, "a directory without index.html is rejected")
}
