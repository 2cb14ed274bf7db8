package data

import (
	"embed"
)

// Templates holds the built-in artifact templates used by the offline
// template generator.
//
//go:embed templates/*.md.tmpl
var Templates embed.FS
