package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/temirov/fusion/internal/output"
	"github.com/temirov/fusion/internal/session"
	"github.com/temirov/fusion/internal/types"
)

const (
	sessionUse              = "session [dir]"
	sessionAlias            = "s"
	sessionShortDescription = "drive an interactive session from standard input (" + sessionAlias + ")"
	sessionLongDescription  = `Open dir and read one command per line from standard input.
Every command runs once background work (tree builds, searches, loads, token counts) has settled.
Blank lines and lines starting with # are ignored. Exclusion and path display changes are persisted.

Commands:
  open <dir>                 open another root directory
  reload                     rebuild the tree from disk
  name [text]                set the file name filter (empty clears it)
  content [text]             set the content filter (empty clears it)
  case name|content on|off   set case sensitivity of a filter
  toggle <path>              flip the selection of a file or directory
  state <path>               print the selection state of a path
  exclude <pattern>          add an exclusion pattern
  include <pattern>          remove an exclusion pattern
  exclusions                 list exclusion patterns
  path full|relative         set the exported path display
  tree                       print the filtered tree with selection marks
  selected                   list selected files
  tokens                     print the export summary line
  export                     print the export block
  copy                       copy the export block to the clipboard
  help                       list commands
  quit                       end the session`
	sessionUsageExample = `  printf 'name .go\ntoggle internal\ntokens\nexport\n' | fusion session .`

	sessionCommentPrefix   = "#"
	sessionErrorFormat     = "error: %v\n"
	sessionStateFormat     = "%s %s\n"
	sessionEventFormat     = "event %s %s %s\n"
	sessionPolicyFormat    = "path display: %s\n"
	selectedMarker         = "[x] "
	partialMarker          = "[-] "
	unselectedMarker       = "[ ] "
	maxSessionLineBytes    = 1 << 20
	errorUnknownSession    = "unknown command %q (try help)"
	errorSessionArgument   = "%s needs %s"
	errorSessionCaseTarget = "case target must be name or content, got %q"
	errorSessionCaseValue  = "case value must be on or off, got %q"
	errorReadCommands      = "read commands: %w"
)

var errSessionQuit = errors.New("quit")

// createSessionCommand returns the session subcommand.
func createSessionCommand(root *rootOptions, shared *dependencies) *cobra.Command {
	var filters filterOptions
	var printEvents bool

	sessionCommand := &cobra.Command{
		Use:     sessionUse,
		Aliases: []string{sessionAlias},
		Short:   sessionShortDescription,
		Long:    sessionLongDescription,
		Example: sessionUsageExample,
		Args:    cobra.MaximumNArgs(1),
		RunE: func(command *cobra.Command, arguments []string) error {
			env, environmentError := loadEnvironment(root, shared)
			if environmentError != nil {
				return environmentError
			}
			filters.resolveCaseDefaults(command, env.configuration)
			engineOptions, optionsError := env.engineOptions(engineOverrides{extraExclusions: filters.exclusions, persist: true})
			if optionsError != nil {
				return optionsError
			}
			directory := firstOrDefault(arguments)
			return withEngine(command.Context(), engineOptions, func(ctx context.Context, engine *session.Engine) error {
				var printers errgroup.Group
				if printEvents {
					events, unsubscribe := engine.Subscribe(0)
					printers.Go(func() error {
						for event := range events {
							fmt.Fprintf(command.ErrOrStderr(), sessionEventFormat, event.Kind, event.Path, event.Message)
						}
						return nil
					})
					defer func() {
						unsubscribe()
						_ = printers.Wait()
					}()
				}
				if openError := engine.Open(directory); openError != nil {
					return openError
				}
				if filterError := filters.apply(engine); filterError != nil {
					return filterError
				}
				driver := &sessionDriver{
					engine:       engine,
					out:          command.OutOrStdout(),
					nameQuery:    filters.nameQuery,
					contentQuery: filters.contentQuery,
					nameCase:     filters.nameCaseSensitive,
					contentCase:  filters.contentCaseSensitive,
				}
				return driver.run(ctx, command.InOrStdin())
			})
		},
	}
	addFilterFlags(sessionCommand, &filters)
	registerSwitchFlag(sessionCommand.Flags(), &printEvents, eventsFlagName, false, eventsFlagDesc)
	return sessionCommand
}

// sessionDriver executes line commands against an engine. It remembers the
// query text so that case changes can re-issue the current query.
type sessionDriver struct {
	engine       *session.Engine
	out          io.Writer
	nameQuery    string
	contentQuery string
	nameCase     bool
	contentCase  bool
}

func (driver *sessionDriver) run(ctx context.Context, input io.Reader) error {
	scanner := bufio.NewScanner(input)
	scanner.Buffer(make([]byte, 0, 64*1024), maxSessionLineBytes)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, sessionCommentPrefix) {
			continue
		}
		executeError := driver.execute(ctx, line)
		switch {
		case executeError == nil:
		case errors.Is(executeError, errSessionQuit):
			return nil
		case errors.Is(executeError, session.ErrStopped), ctx.Err() != nil:
			return executeError
		default:
			fmt.Fprintf(driver.out, sessionErrorFormat, executeError)
		}
	}
	if scanError := scanner.Err(); scanError != nil {
		return fmt.Errorf(errorReadCommands, scanError)
	}
	return nil
}

func (driver *sessionDriver) execute(ctx context.Context, line string) error {
	verb, argument, _ := strings.Cut(line, " ")
	argument = strings.TrimSpace(argument)
	verb = strings.ToLower(verb)

	switch verb {
	case "quit", "exit":
		return errSessionQuit
	case "help":
		fmt.Fprintln(driver.out, sessionLongDescription[strings.Index(sessionLongDescription, "Commands:"):])
		return nil
	}
	if waitError := driver.engine.WaitIdle(ctx); waitError != nil {
		return waitError
	}

	switch verb {
	case "open":
		if argument == "" {
			return fmt.Errorf(errorSessionArgument, verb, "a directory")
		}
		if openError := driver.engine.Open(argument); openError != nil {
			return openError
		}
		driver.nameQuery, driver.contentQuery = "", ""
		return nil
	case "reload":
		return driver.engine.Reload()
	case "name":
		driver.nameQuery = argument
		return driver.engine.SetNameQuery(driver.nameQuery, driver.nameCase)
	case "content":
		driver.contentQuery = argument
		return driver.engine.SetContentQuery(driver.contentQuery, driver.contentCase)
	case "case":
		return driver.setCase(argument)
	case "toggle", "state":
		if argument == "" {
			return fmt.Errorf(errorSessionArgument, verb, "a path")
		}
		var state types.SelectionState
		var stateError error
		if verb == "toggle" {
			state, stateError = driver.engine.Toggle(argument)
		} else {
			state, stateError = driver.engine.StateOf(argument)
		}
		if stateError != nil {
			return stateError
		}
		fmt.Fprintf(driver.out, sessionStateFormat, state, argument)
		return nil
	case "exclude":
		added, addError := driver.engine.AddExclusion(argument)
		if addError != nil {
			return addError
		}
		driver.report(added, addedPatternFormat, presentPatternFormat, argument)
		return nil
	case "include":
		removed, removeError := driver.engine.RemoveExclusion(argument)
		if removeError != nil {
			return removeError
		}
		driver.report(removed, removedPatternFormat, missingPatternFormat, argument)
		return nil
	case "exclusions":
		patterns, listError := driver.engine.Exclusions()
		if listError != nil {
			return listError
		}
		for _, pattern := range patterns {
			fmt.Fprintln(driver.out, pattern)
		}
		return nil
	case "path":
		policy, policyError := parsePathPolicy(argument)
		if policyError != nil {
			return policyError
		}
		if setError := driver.engine.SetPathPolicy(policy); setError != nil {
			return setError
		}
		fmt.Fprintf(driver.out, sessionPolicyFormat, policy)
		return nil
	case "tree":
		return driver.printTree()
	case "selected":
		snapshot, snapshotError := driver.engine.Snapshot()
		if snapshotError != nil {
			return snapshotError
		}
		for _, path := range snapshot.Selected {
			fmt.Fprintln(driver.out, path)
		}
		return nil
	case "tokens":
		snapshot, snapshotError := driver.engine.Snapshot()
		if snapshotError != nil {
			return snapshotError
		}
		fmt.Fprintln(driver.out, output.FormatSummaryLine(len(snapshot.Selected), snapshot.TokenCount, snapshot.TokenModel))
		return nil
	case "export":
		text, exportError := driver.engine.Export()
		if exportError != nil {
			return exportError
		}
		fmt.Fprint(driver.out, text)
		return nil
	case "copy":
		if copyError := driver.engine.CopyToClipboard(); copyError != nil {
			return copyError
		}
		fmt.Fprintln(driver.out, copiedMessage)
		return nil
	default:
		return fmt.Errorf(errorUnknownSession, verb)
	}
}

func (driver *sessionDriver) setCase(argument string) error {
	target, value, _ := strings.Cut(argument, " ")
	enabled, known := parseSwitchLiteral(value)
	if !known {
		return fmt.Errorf(errorSessionCaseValue, strings.TrimSpace(value))
	}
	switch strings.ToLower(target) {
	case nameFlagName:
		driver.nameCase = enabled
		return driver.engine.SetNameQuery(driver.nameQuery, driver.nameCase)
	case contentFlagName:
		driver.contentCase = enabled
		return driver.engine.SetContentQuery(driver.contentQuery, driver.contentCase)
	default:
		return fmt.Errorf(errorSessionCaseTarget, target)
	}
}

func (driver *sessionDriver) printTree() error {
	snapshot, snapshotError := driver.engine.Snapshot()
	if snapshotError != nil {
		return snapshotError
	}
	if snapshot.Filtered == nil {
		fmt.Fprintln(driver.out, noMatchesMessage)
		return nil
	}
	output.WriteTree(driver.out, snapshot.Filtered, func(node *types.Node) string {
		state, _ := driver.engine.StateOf(node.Path)
		switch state {
		case types.Selected:
			return selectedMarker
		case types.Partial:
			return partialMarker
		default:
			return unselectedMarker
		}
	})
	return nil
}

func (driver *sessionDriver) report(changed bool, changedFormat string, unchangedFormat string, pattern string) {
	if changed {
		fmt.Fprintf(driver.out, changedFormat, pattern)
		return
	}
	fmt.Fprintf(driver.out, unchangedFormat, pattern)
}
