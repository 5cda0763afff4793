// Package cli provides the command line interface.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/fusion/internal/output"
	"github.com/temirov/fusion/internal/services/clipboard"
	"github.com/temirov/fusion/internal/utils"
)

const (
	versionFlagName      = "version"
	configFlagName       = "config"
	settingsFlagName     = "settings"
	debugFlagName        = "debug"
	versionTemplate      = "fusion version: %s\n"
	defaultPath          = "."
	rootUse              = "fusion"
	rootShortDescription = "fusion command line interface"
	rootLongDescription  = `fusion browses a directory tree, filters it by file name and content,
and exports the selected files as one text block for pasting into an LLM chat.
Exclusions and the path display policy are persisted between runs.`

	versionFlagDescription  = "display application version"
	configFlagDescription   = "path to a configuration file overriding ./.fusion.yaml"
	settingsFlagDescription = "path to the persisted settings file (default ~/.fusion/settings.yaml)"
	debugFlagDescription    = "enable debug logging"

	exclusionFlagName     = "e"
	nameFlagName          = "name"
	contentFlagName       = "content"
	nameCaseFlagName      = "name-case"
	contentCaseFlagName   = "content-case"
	formatFlagName        = "format"
	allFlagName           = "all"
	pathFlagName          = "path"
	copyFlagName          = "copy"
	summaryFlagName       = "summary"
	modelFlagName         = "model"
	eventsFlagName        = "events"
	globalFlagName        = "global"
	forceFlagName         = "force"
	exclusionFlagDesc     = "additional exclusion pattern for this run (repeatable)"
	nameFlagDesc          = "keep files whose name contains this text"
	contentFlagDesc       = "keep files whose content contains this text"
	nameCaseFlagDesc      = "match --name case-sensitively"
	contentCaseFlagDesc   = "match --content case-sensitively"
	formatFlagDesc        = "tree output format: raw or json"
	allFlagDesc           = "select every file visible after filtering"
	pathFlagDesc          = "exported path display: full or relative"
	copyFlagDesc          = "copy the export to the clipboard instead of printing it"
	summaryFlagDesc       = "print the file count and token estimate to stderr"
	treeSummaryFlagDesc   = "print the number of listed files to stderr"
	modelFlagDesc         = "token counter: approximate or an OpenAI model name"
	eventsFlagDesc        = "print engine events to stderr"
	globalFlagDesc        = "write ~/.fusion/config.yaml instead of ./.fusion.yaml"
	forceFlagDesc         = "overwrite an existing configuration file"
	noMatchesMessage      = "no files match the current filters"
	copiedMessage         = "export copied to clipboard"
	errorInvalidFormat    = "invalid format value %q"
	errorInvalidPolicy    = "invalid path display value %q (want full or relative)"
	errorLoggerFormat     = "initialize debug logger: %w"
	errorNothingSelected  = "no files to export: pass file paths or --all"
	errorSelectPathFormat = "select %s: %w"
)

// Execute runs the fusion application. logger receives diagnostics; --debug
// replaces it with a debug-level logger.
func Execute(ctx context.Context, logger *zap.Logger) error {
	rootCommand := createRootCommand(&dependencies{
		logger:    utils.LoggerOrNop(logger),
		clipboard: clipboard.NewService(),
	})
	rootCommand.SetArgs(normalizeSwitchArguments(rootCommand, os.Args[1:]))
	return rootCommand.ExecuteContext(ctx)
}

// dependencies are the collaborators shared by every command.
type dependencies struct {
	logger    *zap.Logger
	clipboard clipboard.Copier
}

// rootOptions stores the persistent flags.
type rootOptions struct {
	configPath   string
	settingsPath string
	debug        bool
	showVersion  bool
}

// createRootCommand builds the root Cobra command.
func createRootCommand(shared *dependencies) *cobra.Command {
	options := &rootOptions{}

	rootCommand := &cobra.Command{
		Use:          rootUse,
		Short:        rootShortDescription,
		Long:         rootLongDescription,
		SilenceUsage: true,
		RunE: func(command *cobra.Command, arguments []string) error {
			return command.Help()
		},
		PersistentPreRunE: func(command *cobra.Command, arguments []string) error {
			if options.showVersion {
				fmt.Fprintf(command.OutOrStdout(), versionTemplate, utils.GetApplicationVersion())
				os.Exit(0)
			}
			if options.debug {
				debugLogger, loggerError := utils.NewApplicationLogger(true)
				if loggerError != nil {
					return fmt.Errorf(errorLoggerFormat, loggerError)
				}
				shared.logger = debugLogger
			}
			return nil
		},
	}
	flags := rootCommand.PersistentFlags()
	flags.BoolVar(&options.showVersion, versionFlagName, false, versionFlagDescription)
	flags.StringVar(&options.configPath, configFlagName, "", configFlagDescription)
	flags.StringVar(&options.settingsPath, settingsFlagName, "", settingsFlagDescription)
	flags.BoolVar(&options.debug, debugFlagName, false, debugFlagDescription)

	rootCommand.AddCommand(
		createTreeCommand(options, shared),
		createExportCommand(options, shared),
		createTokensCommand(options, shared),
		createExcludeCommand(options, shared),
		createSessionCommand(options, shared),
		createInitCommand(),
	)
	rootCommand.InitDefaultHelpCmd()
	rootCommand.InitDefaultCompletionCmd()
	return rootCommand
}

// isSupportedFormat reports whether the tree output format is recognized.
func isSupportedFormat(format string) bool {
	switch format {
	case output.FormatRaw, output.FormatJSON:
		return true
	default:
		return false
	}
}

// firstOrDefault returns arguments[0], or the current directory when none was given.
func firstOrDefault(arguments []string) string {
	if len(arguments) == 0 {
		return defaultPath
	}
	return arguments[0]
}
