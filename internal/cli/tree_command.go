package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/temirov/fusion/internal/filetree"
	"github.com/temirov/fusion/internal/output"
	"github.com/temirov/fusion/internal/session"
)

const (
	treeUse              = "tree [dir]"
	treeAlias            = "t"
	treeShortDescription = "display the filtered directory tree (" + treeAlias + ")"
	treeLongDescription  = `Build the tree of dir (default: the current directory) with the persisted
exclusions applied, filter it by --name and --content and print it.
Directories are listed before files; empty directories are pruned when a filter is active.`
	treeUsageExample = `  # Show Go files that mention context.Context
  fusion tree --name .go --content context.Context ./internal

  # Render as JSON without the vendor directory
  fusion tree -e vendor/ --format json .`
)

// createTreeCommand returns the tree subcommand.
func createTreeCommand(root *rootOptions, shared *dependencies) *cobra.Command {
	var filters filterOptions
	var summary bool
	outputFormat := output.FormatRaw

	treeCommand := &cobra.Command{
		Use:     treeUse,
		Aliases: []string{treeAlias},
		Short:   treeShortDescription,
		Long:    treeLongDescription,
		Example: treeUsageExample,
		Args:    cobra.MaximumNArgs(1),
		RunE: func(command *cobra.Command, arguments []string) error {
			outputFormat = strings.ToLower(strings.TrimSpace(outputFormat))
			if !isSupportedFormat(outputFormat) {
				return fmt.Errorf(errorInvalidFormat, outputFormat)
			}
			env, environmentError := loadEnvironment(root, shared)
			if environmentError != nil {
				return environmentError
			}
			filters.resolveCaseDefaults(command, env.configuration)
			engineOptions, optionsError := env.engineOptions(engineOverrides{extraExclusions: filters.exclusions})
			if optionsError != nil {
				return optionsError
			}
			directory := firstOrDefault(arguments)
			return withEngine(command.Context(), engineOptions, func(ctx context.Context, engine *session.Engine) error {
				snapshot, settleError := openAndSettle(ctx, engine, directory, &filters)
				if settleError != nil {
					return settleError
				}
				if snapshot.Filtered == nil {
					fmt.Fprintln(command.ErrOrStderr(), noMatchesMessage)
					return nil
				}
				rendered, renderError := output.RenderTree(snapshot.Filtered, outputFormat, nil)
				if renderError != nil {
					return renderError
				}
				fmt.Fprintln(command.OutOrStdout(), strings.TrimRight(rendered, "\n"))
				if summary {
					fmt.Fprintln(command.ErrOrStderr(), output.FormatTreeSummaryLine(filetree.CountFiles(snapshot.Filtered)))
				}
				return nil
			})
		},
	}
	addFilterFlags(treeCommand, &filters)
	treeCommand.Flags().StringVar(&outputFormat, formatFlagName, output.FormatRaw, formatFlagDesc)
	registerSwitchFlag(treeCommand.Flags(), &summary, summaryFlagName, true, treeSummaryFlagDesc)
	return treeCommand
}
