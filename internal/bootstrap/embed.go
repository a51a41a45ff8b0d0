// Package bootstrap seeds a new deployment: an embedded config template
// and the owner entity every other entity in the graph is eventually
// related to.
package bootstrap

import "embed"

//go:embed templates/.env.example
var templateFS embed.FS

// TemplateNames is the canonical list of files ScaffoldWorkspace writes.
var TemplateNames = []string{".env.example"}

// Template returns the embedded content of a template file.
func Template(name string) ([]byte, error) {
	return templateFS.ReadFile("templates/" + name)
}
