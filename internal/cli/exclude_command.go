package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/temirov/fusion/internal/exclusion"
	"github.com/temirov/fusion/internal/types"
)

const (
	excludeUse              = "exclude"
	excludeShortDescription = "manage the persisted exclusion list"
	excludeLongDescription  = `List, add or remove the exclusion patterns applied to every tree.
A pattern matches a whole file or directory name; * matches any run of characters.
A pattern ending in / applies to directories only.`
	excludeUsageExample = `  fusion exclude add 'vendor/' '*.log'
  fusion exclude remove '*.log'
  fusion exclude suggest ./build/app.min.js`

	excludeListUse      = "list"
	excludeAddUse       = "add <pattern...>"
	excludeRemoveUse    = "remove <pattern...>"
	excludeSuggestUse   = "suggest <path>"
	excludeListShort    = "print the exclusion patterns in order"
	excludeAddShort     = "append exclusion patterns"
	excludeRemoveShort  = "remove exclusion patterns"
	excludeSuggestShort = "print the patterns offered for excluding a path"

	addedPatternFormat     = "added %s\n"
	presentPatternFormat   = "already present: %s\n"
	removedPatternFormat   = "removed %s\n"
	missingPatternFormat   = "not present: %s\n"
	errorSaveExclusions    = "save exclusions: %w"
	errorInspectPathFormat = "inspect %s: %w"
)

// createExcludeCommand returns the exclude subcommand and its children.
func createExcludeCommand(root *rootOptions, shared *dependencies) *cobra.Command {
	excludeCommand := &cobra.Command{
		Use:     excludeUse,
		Short:   excludeShortDescription,
		Long:    excludeLongDescription,
		Example: excludeUsageExample,
		RunE: func(command *cobra.Command, arguments []string) error {
			return command.Help()
		},
	}

	listCommand := &cobra.Command{
		Use:   excludeListUse,
		Short: excludeListShort,
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			env, environmentError := loadEnvironment(root, shared)
			if environmentError != nil {
				return environmentError
			}
			for _, pattern := range env.persisted.Exclusions {
				fmt.Fprintln(command.OutOrStdout(), pattern)
			}
			return nil
		},
	}

	addCommand := &cobra.Command{
		Use:   excludeAddUse,
		Short: excludeAddShort,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(command *cobra.Command, arguments []string) error {
			return editExclusions(command, root, shared, arguments, (*exclusion.List).Add, addedPatternFormat, presentPatternFormat)
		},
	}

	removeCommand := &cobra.Command{
		Use:   excludeRemoveUse,
		Short: excludeRemoveShort,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(command *cobra.Command, arguments []string) error {
			return editExclusions(command, root, shared, arguments, (*exclusion.List).Remove, removedPatternFormat, missingPatternFormat)
		},
	}

	suggestCommand := &cobra.Command{
		Use:   excludeSuggestUse,
		Short: excludeSuggestShort,
		Args:  cobra.ExactArgs(1),
		RunE: func(command *cobra.Command, arguments []string) error {
			info, statError := os.Stat(arguments[0])
			if statError != nil {
				return fmt.Errorf(errorInspectPathFormat, arguments[0], statError)
			}
			node := &types.Node{Path: filepath.Clean(arguments[0]), IsDirectory: info.IsDir()}
			for _, pattern := range exclusion.SuggestPatterns(node) {
				fmt.Fprintln(command.OutOrStdout(), pattern)
			}
			return nil
		},
	}

	excludeCommand.AddCommand(listCommand, addCommand, removeCommand, suggestCommand)
	return excludeCommand
}

// editExclusions applies edit to each pattern in turn and persists the result
// when anything changed.
func editExclusions(command *cobra.Command, root *rootOptions, shared *dependencies, patterns []string, edit func(*exclusion.List, string) bool, changedFormat string, unchangedFormat string) error {
	env, environmentError := loadEnvironment(root, shared)
	if environmentError != nil {
		return environmentError
	}
	list := exclusion.NewList(env.persisted.Exclusions)
	changed := false
	for _, pattern := range patterns {
		if edit(list, pattern) {
			changed = true
			fmt.Fprintf(command.OutOrStdout(), changedFormat, pattern)
			continue
		}
		fmt.Fprintf(command.OutOrStdout(), unchangedFormat, pattern)
	}
	if !changed {
		return nil
	}
	if saveError := env.settings.SaveExclusions(list.Patterns()); saveError != nil {
		return fmt.Errorf(errorSaveExclusions, saveError)
	}
	return nil
}
