// Package templates embeds the bundled report templates.
//
// Usage:
//
//	data, _ := templates.FS.ReadFile("report/summary.tmpl")
package templates

import "embed"

// SummaryTemplate is the path of the plain-text summary template.
const SummaryTemplate = "report/summary.tmpl"

// FS contains the bundled report templates.
//
//go:embed report/*.tmpl
var FS embed.FS
