// Package envcheck verifies required command-line tools before execution.
package envcheck

import (
	"fmt"
	"os/exec"
	"sort"
	"strings"
)

// Check reports, for each tool, whether it is resolvable on PATH.
func Check(tools []string) map[string]bool {
	status := make(map[string]bool, len(tools))
	for _, tool := range tools {
		_, err := exec.LookPath(tool)
		status[tool] = err == nil
	}
	return status
}

// Missing returns the tools from the given list that are not installed,
// sorted for stable output.
func Missing(tools []string) []string {
	var missing []string
	for tool, ok := range Check(tools) {
		if !ok {
			missing = append(missing, tool)
		}
	}
	sort.Strings(missing)
	return missing
}

// RequiredFromCommand guesses the executable a shell command needs by taking
// its first token. Shell builtins and env assignments return empty.
func RequiredFromCommand(command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return ""
	}

	first := fields[0]
	if strings.Contains(first, "=") {
		// Leading VAR=value assignment; the real command follows.
		if len(fields) < 2 {
			return ""
		}
		first = fields[1]
	}

	switch first {
	case "cd", "echo", "export", "set", "source", ".", "true", "false":
		return ""
	}
	return first
}

// Report formats a check result for terminal display.
func Report(status map[string]bool) string {
	tools := make([]string, 0, len(status))
	for tool := range status {
		tools = append(tools, tool)
	}
	sort.Strings(tools)

	var b strings.Builder
	for _, tool := range tools {
		if status[tool] {
			fmt.Fprintf(&b, "  ok       %s\n", tool)
		} else {
			fmt.Fprintf(&b, "  missing  %s\n", tool)
		}
	}
	return b.String()
}
