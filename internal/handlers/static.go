package handlers

import (
	"errors"
	"io/fs"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/gin-gonic/gin"
)

const spaIndex = "index.html"

// SPA serves the embedded frontend. Unknown paths fall back to index.html so
// client-side routes survive a reload; API paths and non-GET requests go to
// notFound instead.
func SPA(files fs.FS, notFound gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		method := c.Request.Method
		p := c.Request.URL.Path
		if files == nil || (method != http.MethodGet && method != http.MethodHead) ||
			p == "/api" || strings.HasPrefix(p, "/api/") {
			notFound(c)
			return
		}

		name := strings.TrimPrefix(path.Clean("/"+p), "/")
		if name == "" {
			name = spaIndex
		}

		data, err := fs.ReadFile(files, name)
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) && !isDirError(files, name) {
				respondError(c, err)
				return
			}
			name = spaIndex
			if data, err = fs.ReadFile(files, name); err != nil {
				notFound(c)
				return
			}
		}

		contentType := mime.TypeByExtension(path.Ext(name))
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		if name == spaIndex {
			c.Header("Cache-Control", "no-cache")
		}
		c.Data(http.StatusOK, contentType, data)
	}
}

func isDirError(files fs.FS, name string) bool {
	info, err := fs.Stat(files, name)
	return err == nil && info.IsDir()
}
