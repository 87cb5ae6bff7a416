package primevista

import (
	"embed"
	"io/fs"
)

//go:embed web/templates
var templates embed.FS

//go:embed web/static
var assets embed.FS

// Templates returns the HTML templates rooted at web/templates.
func Templates() (fs.FS, error) {
	return fs.Sub(templates, "web/templates")
}

// Assets returns the built-in static files rooted at web/static.
func Assets() (fs.FS, error) {
	return fs.Sub(assets, "web/static")
}
