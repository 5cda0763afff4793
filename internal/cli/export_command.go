package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/temirov/fusion/internal/filetree"
	"github.com/temirov/fusion/internal/output"
	"github.com/temirov/fusion/internal/session"
	"github.com/temirov/fusion/internal/types"
)

const (
	exportUse              = "export [dir] [files...]"
	exportAlias            = "x"
	exportShortDescription = "export selected files as one text block (" + exportAlias + ")"
	exportLongDescription  = `Select files under dir and print them as an export block:
a path line followed by the file content for every selected file, in path order.
Files are given relative to dir. --all selects every file that survives the filters.
Binary files export a placeholder; unreadable files are left out.`
	exportUsageExample = `  # Export two files with paths relative to the project
  fusion export --path relative . cmd/fusion/main.go go.mod

  # Copy every Go test file to the clipboard
  fusion export --all --name _test.go --copy .`
)

// exportOptions stores the export-only flags.
type exportOptions struct {
	selectAll   bool
	pathDisplay string
	copy        bool
	summary     bool
	model       string
}

// createExportCommand returns the export subcommand.
func createExportCommand(root *rootOptions, shared *dependencies) *cobra.Command {
	var filters filterOptions
	var options exportOptions

	exportCommand := &cobra.Command{
		Use:     exportUse,
		Aliases: []string{exportAlias},
		Short:   exportShortDescription,
		Long:    exportLongDescription,
		Example: exportUsageExample,
		Args:    cobra.ArbitraryArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			directory := firstOrDefault(arguments)
			var files []string
			if len(arguments) > 1 {
				files = arguments[1:]
			}
			if !options.selectAll && len(files) == 0 {
				return errors.New(errorNothingSelected)
			}
			var policy types.PathPolicy
			if command.Flags().Changed(pathFlagName) {
				parsed, policyError := parsePathPolicy(options.pathDisplay)
				if policyError != nil {
					return policyError
				}
				policy = parsed
			}
			env, environmentError := loadEnvironment(root, shared)
			if environmentError != nil {
				return environmentError
			}
			filters.resolveCaseDefaults(command, env.configuration)
			engineOptions, optionsError := env.engineOptions(engineOverrides{
				extraExclusions: filters.exclusions,
				pathPolicy:      policy,
				model:           options.model,
			})
			if optionsError != nil {
				return optionsError
			}
			return withEngine(command.Context(), engineOptions, func(ctx context.Context, engine *session.Engine) error {
				snapshot, settleError := openAndSettle(ctx, engine, directory, &filters)
				if settleError != nil {
					return settleError
				}
				if options.selectAll {
					if snapshot.Filtered == nil {
						return errors.New(noMatchesMessage)
					}
					files = append(filetree.Files(snapshot.Filtered), files...)
				}
				if selectError := selectPaths(engine, files); selectError != nil {
					return selectError
				}
				if waitError := engine.WaitIdle(ctx); waitError != nil {
					return waitError
				}
				if options.copy {
					if copyError := engine.CopyToClipboard(); copyError != nil {
						return copyError
					}
					fmt.Fprintln(command.ErrOrStderr(), copiedMessage)
				} else {
					text, exportError := engine.Export()
					if exportError != nil {
						return exportError
					}
					fmt.Fprint(command.OutOrStdout(), text)
				}
				if options.summary {
					final, snapshotError := engine.Snapshot()
					if snapshotError != nil {
						return snapshotError
					}
					fmt.Fprintln(command.ErrOrStderr(), output.FormatSummaryLine(len(final.Selected), final.TokenCount, final.TokenModel))
				}
				return nil
			})
		},
	}
	addFilterFlags(exportCommand, &filters)
	flags := exportCommand.Flags()
	registerSwitchFlag(flags, &options.selectAll, allFlagName, false, allFlagDesc)
	registerSwitchFlag(flags, &options.copy, copyFlagName, false, copyFlagDesc)
	registerSwitchFlag(flags, &options.summary, summaryFlagName, true, summaryFlagDesc)
	flags.StringVar(&options.pathDisplay, pathFlagName, string(types.PathPolicyFull), pathFlagDesc)
	flags.StringVar(&options.model, modelFlagName, "", modelFlagDesc)
	return exportCommand
}

// selectPaths marks every path as selected. Paths that are already fully
// selected are left alone so that repeating a path never deselects it.
func selectPaths(engine *session.Engine, paths []string) error {
	for _, path := range paths {
		state, stateError := engine.StateOf(path)
		if stateError != nil {
			return fmt.Errorf(errorSelectPathFormat, path, stateError)
		}
		if state == types.Selected {
			continue
		}
		if _, toggleError := engine.Toggle(path); toggleError != nil {
			return fmt.Errorf(errorSelectPathFormat, path, toggleError)
		}
	}
	return nil
}

func parsePathPolicy(value string) (types.PathPolicy, error) {
	switch types.PathPolicy(value) {
	case types.PathPolicyFull, types.PathPolicyRelative:
		return types.PathPolicy(value), nil
	default:
		return "", fmt.Errorf(errorInvalidPolicy, value)
	}
}
