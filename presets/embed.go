// Package presets embeds the bundled configuration presets.
//
// Usage:
//
//	data, _ := presets.FS.ReadFile("strict.yaml")
package presets

import "embed"

// FS contains the preset YAML files. Each is a complete configuration
// that a user file may name with `preset:` and then override.
//
//go:embed *.yaml
var FS embed.FS
