package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/temirov/fusion/internal/config"
	"github.com/temirov/fusion/internal/content"
	"github.com/temirov/fusion/internal/search"
	"github.com/temirov/fusion/internal/services/clipboard"
	"github.com/temirov/fusion/internal/session"
	"github.com/temirov/fusion/internal/tokenizer"
	"github.com/temirov/fusion/internal/types"
	"github.com/temirov/fusion/internal/utils"
)

const (
	errorLoadConfigurationFormat = "load configuration: %w"
	errorLoadSettingsFormat      = "load settings: %w"
	errorTokenCounterFormat      = "initialize token counter for %q: %w"
)

// environment is the configuration and persisted state a command runs with.
type environment struct {
	logger        *zap.Logger
	configuration config.ApplicationConfiguration
	settings      *config.SettingsStore
	persisted     config.Settings
	clipboard     clipboard.Copier
}

// engineOverrides are per-invocation adjustments to the configured engine.
type engineOverrides struct {
	extraExclusions []string
	pathPolicy      types.PathPolicy
	model           string
	persist         bool
}

func loadEnvironment(options *rootOptions, shared *dependencies) (*environment, error) {
	configuration, configurationError := config.LoadApplicationConfiguration(config.LoadOptions{
		ExplicitFilePath: options.configPath,
	})
	if configurationError != nil {
		return nil, fmt.Errorf(errorLoadConfigurationFormat, configurationError)
	}
	settingsPath := options.settingsPath
	if settingsPath == "" {
		defaultSettingsPath, pathError := config.DefaultSettingsPath()
		if pathError != nil {
			return nil, fmt.Errorf(errorLoadSettingsFormat, pathError)
		}
		settingsPath = defaultSettingsPath
	}
	store := config.NewSettingsStore(settingsPath)
	persisted, loadError := store.Load(config.Settings{
		Exclusions: configuration.Exclusions,
		PathPolicy: configuration.PathPolicy(),
	})
	if loadError != nil {
		return nil, fmt.Errorf(errorLoadSettingsFormat, loadError)
	}
	shared.logger.Debug("loaded settings",
		zap.String("settings", settingsPath),
		zap.Strings("exclusions", persisted.Exclusions),
		zap.String("path_option", string(persisted.PathPolicy)))
	return &environment{
		logger:        shared.logger,
		configuration: configuration,
		settings:      store,
		persisted:     persisted,
		clipboard:     shared.clipboard,
	}, nil
}

// tokenCounter resolves the counter for model, falling back to the configured model.
func (env *environment) tokenCounter(model string) (tokenizer.Counter, error) {
	if model == "" {
		model = env.configuration.TokenModel()
	}
	counter, resolvedName, counterError := tokenizer.NewCounter(tokenizer.Config{Model: model})
	if counterError != nil {
		return nil, fmt.Errorf(errorTokenCounterFormat, model, counterError)
	}
	env.logger.Debug("token counter ready", zap.String("model", resolvedName))
	return counter, nil
}

func (env *environment) engineOptions(overrides engineOverrides) (session.Options, error) {
	counter, counterError := env.tokenCounter(overrides.model)
	if counterError != nil {
		return session.Options{}, counterError
	}
	policy := env.persisted.PathPolicy
	if overrides.pathPolicy != "" {
		policy = overrides.pathPolicy
	}
	options := session.Options{
		Logger:            env.logger,
		Searcher:          search.New(env.configuration.SearchTool(), env.configuration.Search.GrepPath, env.logger),
		Store:             content.NewStore(env.logger),
		Counter:           counter,
		Clipboard:         env.clipboard,
		Exclusions:        utils.DeduplicatePatterns(append(append([]string(nil), env.persisted.Exclusions...), overrides.extraExclusions...)),
		PathPolicy:        policy,
		Workers:           env.configuration.WorkerCount(),
		DebounceWindow:    env.configuration.DebounceWindow(),
		StalenessInterval: env.configuration.StalenessInterval(),
	}
	if overrides.persist {
		options.Settings = env.settings
	}
	return options, nil
}

// withEngine runs an engine for the duration of body. The engine stops when
// body returns; the first error from either side is returned.
func withEngine(ctx context.Context, options session.Options, body func(ctx context.Context, engine *session.Engine) error) error {
	engine := session.New(options)
	runContext, cancel := context.WithCancel(ctx)
	defer cancel()
	group, groupContext := errgroup.WithContext(runContext)
	group.Go(func() error {
		return engine.Run(groupContext)
	})
	group.Go(func() error {
		defer cancel()
		return body(groupContext, engine)
	})
	return group.Wait()
}

// filterOptions stores the filter flags shared by tree, export and session.
type filterOptions struct {
	nameQuery            string
	contentQuery         string
	nameCaseSensitive    bool
	contentCaseSensitive bool
	exclusions           []string
}

func addFilterFlags(command *cobra.Command, options *filterOptions) {
	flags := command.Flags()
	flags.StringArrayVarP(&options.exclusions, exclusionFlagName, exclusionFlagName, nil, exclusionFlagDesc)
	flags.StringVar(&options.nameQuery, nameFlagName, "", nameFlagDesc)
	flags.StringVar(&options.contentQuery, contentFlagName, "", contentFlagDesc)
	registerSwitchFlag(flags, &options.nameCaseSensitive, nameCaseFlagName, false, nameCaseFlagDesc)
	registerSwitchFlag(flags, &options.contentCaseSensitive, contentCaseFlagName, false, contentCaseFlagDesc)
}

// resolveCaseDefaults takes case sensitivity from configuration for flags the user did not set.
func (options *filterOptions) resolveCaseDefaults(command *cobra.Command, configuration config.ApplicationConfiguration) {
	if !command.Flags().Changed(nameCaseFlagName) {
		options.nameCaseSensitive = configuration.NameCaseSensitive()
	}
	if !command.Flags().Changed(contentCaseFlagName) {
		options.contentCaseSensitive = configuration.ContentCaseSensitive()
	}
}

// apply pushes the queries into engine. Empty queries are left untouched.
func (options *filterOptions) apply(engine *session.Engine) error {
	if options.nameQuery != "" {
		if queryError := engine.SetNameQuery(options.nameQuery, options.nameCaseSensitive); queryError != nil {
			return queryError
		}
	}
	if options.contentQuery != "" {
		return engine.SetContentQuery(options.contentQuery, options.contentCaseSensitive)
	}
	return nil
}

// openAndSettle opens root, applies filters and waits for the engine to go idle.
func openAndSettle(ctx context.Context, engine *session.Engine, root string, filters *filterOptions) (session.Snapshot, error) {
	if openError := engine.Open(root); openError != nil {
		return session.Snapshot{}, openError
	}
	if filterError := filters.apply(engine); filterError != nil {
		return session.Snapshot{}, filterError
	}
	if waitError := engine.WaitIdle(ctx); waitError != nil {
		return session.Snapshot{}, waitError
	}
	return engine.Snapshot()
}
