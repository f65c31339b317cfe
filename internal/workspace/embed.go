package workspace

import (
	_ "embed"
	"strings"
)

//go:embed embeddefaults/CLAUDE.md
var defaultInstructions string

// Instructions renders the introductory instructions file for an agent.
func Instructions(name, description string) string {
	if description == "" {
		description = "No description configured."
	}
	r := strings.NewReplacer(
		"{{AGENT_NAME}}", name,
		"{{AGENT_DESCRIPTION}}", description,
	)
	return r.Replace(defaultInstructions)
}
