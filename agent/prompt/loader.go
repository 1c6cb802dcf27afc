package prompt

import (
	_ "embed"
	"strings"
)

//go:embed template/system.txt
var systemRaw string

// System returns the planner system prompt. Transcript and store name
// are injected per turn by the session; the template itself is static
// and compile-time embedded.
func System() string {
	return strings.TrimSpace(systemRaw)
}
