// Package appfs embeds the static assets shipped with the binaries.
package appfs

import "embed"

//go:embed templates migrations seed
var FS embed.FS
