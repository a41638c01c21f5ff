// Package scaledash embeds the dashboard's single-page frontend.
package scaledash

import "embed"

// WebFS holds the static frontend served at /.
//
//go:embed web
var WebFS embed.FS
