//go:build !windows

package executil

import (
	"context"
	"os/exec"
)

// NewCommand creates a standard *exec.Cmd for non-Windows platforms.
func NewCommand(name string, arg ...string) *exec.Cmd {
	return exec.Command(name, arg...)
}

// NewCommandContext is the context-cancellable counterpart of NewCommand.
func NewCommandContext(ctx context.Context, name string, arg ...string) *exec.Cmd {
	return exec.CommandContext(ctx, name, arg...)
}
