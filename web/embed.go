package web

import "embed"

// Templates holds the pages and partials parsed by internal/view.
//
//go:embed templates
var Templates embed.FS

// Static holds the stylesheet served under /static/.
//
//go:embed static
var Static embed.FS
