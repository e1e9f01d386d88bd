package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/subx-cli/subx/internal/config"
	"github.com/subx-cli/subx/internal/core"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect or edit the configuration file",
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the resolved configuration file path",
	RunE: func(cmd *cobra.Command, args []string) error {
		snap, err := config.Load(nil)
		if err != nil {
			return err
		}
		fmt.Println(snap.ConfigFilePath)
		return nil
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print the value of a configuration key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		snap, err := config.Load(nil)
		if err != nil {
			return err
		}
		value, err := config.Get(snap.ConfigFilePath, args[0])
		if err != nil {
			return err
		}
		fmt.Println(value)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration key in the config file",
	Long: `set writes <key> = <value> to the configuration file, creating it if
necessary, then reloads and validates the configuration. A key that no
configuration field reads is written as given and is not reported.

Example:
  subx config set sync.max_offset_seconds 45`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		snap, err := config.Load(nil)
		if err != nil {
			return err
		}
		if err := config.Set(snap.ConfigFilePath, args[0], args[1]); err != nil {
			return err
		}
		if _, err := config.Load(nil); err != nil {
			return core.NewTaskError(core.ErrConfigError, core.BehaviorAbortAll, fmt.Errorf("value written but fails validation: %w", err))
		}
		fmt.Printf("%s = %s\n", args[0], args[1])
		return nil
	},
}

func init() {
	configCmd.AddCommand(configPathCmd, configGetCmd, configSetCmd)
	RootCmd.AddCommand(configCmd)
}
