package authcard

import (
	"embed"
	"io/fs"
)

//go:embed views
var viewsFS embed.FS

// GetViewsFS returns the card templates rooted at the views directory.
func GetViewsFS() fs.FS {
	sub, err := fs.Sub(viewsFS, "views")
	if err != nil {
		panic(err)
	}
	return sub
}
