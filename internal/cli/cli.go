// Package cli is the thin entry point invoked by main: it delegates to
// the command tree in internal/cli/commands.
package cli

import "github.com/subx-cli/subx/internal/cli/commands"

// Run executes the root command and exits the process with the code
// mandated by spec.md §6.
func Run() {
	commands.Run()
}
