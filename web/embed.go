// Package web bundles the page templates, report template and static assets
// into the binaries.
package web

import "embed"

// Templates embeds layouts, partials, pages and reports.
//
//go:embed templates/**/*.html
var Templates embed.FS

// Static embeds stylesheets served under /static/.
//
//go:embed static/**/*
var Static embed.FS
