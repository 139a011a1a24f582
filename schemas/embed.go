// Package schemas embeds the JSON Schemas that describe the shapes expected from LLM stages.
package schemas

import "embed"

// FS holds every *.schema.json file in this directory.
//
//go:embed *.schema.json
var FS embed.FS

// Schema names, one per file (<name>.schema.json).
const (
	Roles       = "roles"
	Features    = "features"
	Sprints     = "sprints"
	Tasks       = "tasks"
	Evaluations = "evaluations"
)

// All lists every embedded schema name.
func All() []string {
	return []string{Roles, Features, Sprints, Tasks, Evaluations}
}
