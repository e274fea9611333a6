// Package web embeds the client's templates and static assets into the
// binary so the server needs no files at runtime.
package web

import "embed"

// TemplatesFS holds the screens and the htmx partials.
//
//go:embed templates/*.html
var TemplatesFS embed.FS

// StaticFS holds the stylesheet and the notification script.
//
//go:embed static/*
var StaticFS embed.FS
