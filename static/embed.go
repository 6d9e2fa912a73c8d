// Package static embeds the browser-source overlay pages.
package static

import (
	"embed"
	"io/fs"
)

//go:embed assets
var assets embed.FS

// FS returns the overlay pages rooted so that glucose/ and chart/ are top-level
// directories.
func FS() fs.FS {
	sub, err := fs.Sub(assets, "assets")
	if err != nil {
		panic(err)
	}
	return sub
}
