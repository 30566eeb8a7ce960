package web

import (
	"embed"
	"io/fs"
)

// The SPA build output is compiled into the binary.
//
//go:embed all:dist
var staticFS embed.FS

// FS returns the embedded frontend rooted at dist.
func FS() (fs.FS, error) {
	return fs.Sub(staticFS, "dist")
}
