package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/temirov/fusion/internal/config"
)

const (
	initUse              = "init"
	initShortDescription = "write a default configuration file"
	initLongDescription  = `Write the default configuration to ./.fusion.yaml, or to ~/.fusion/config.yaml with --global.
An existing file is kept unless --force is given.`
	initWrittenFormat = "configuration written to %s\n"
)

// createInitCommand returns the init subcommand.
func createInitCommand() *cobra.Command {
	var global bool
	var force bool

	initCommand := &cobra.Command{
		Use:   initUse,
		Short: initShortDescription,
		Long:  initLongDescription,
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			target := config.InitTargetLocal
			if global {
				target = config.InitTargetGlobal
			}
			path, initError := config.InitializeConfiguration(config.InitOptions{Target: target, Force: force})
			if initError != nil {
				return initError
			}
			fmt.Fprintf(command.OutOrStdout(), initWrittenFormat, path)
			return nil
		},
	}
	registerSwitchFlag(initCommand.Flags(), &global, globalFlagName, false, globalFlagDesc)
	registerSwitchFlag(initCommand.Flags(), &force, forceFlagName, false, forceFlagDesc)
	return initCommand
}
