package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/subx-cli/subx/internal/core"
)

var completionCmd = &cobra.Command{
	Use:   "generate-completion {bash|zsh|fish|powershell}",
	Short: "Generate a shell completion script",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		switch args[0] {
		case "bash":
			return RootCmd.GenBashCompletion(os.Stdout)
		case "zsh":
			return RootCmd.GenZshCompletion(os.Stdout)
		case "fish":
			return RootCmd.GenFishCompletion(os.Stdout, true)
		case "powershell":
			return RootCmd.GenPowerShellCompletionWithDesc(os.Stdout)
		default:
			return core.NewTaskError(core.ErrInvalidArgument, core.BehaviorAbortAll, fmt.Errorf("unsupported shell %q", args[0]))
		}
	},
}

func init() {
	RootCmd.AddCommand(completionCmd)
}
