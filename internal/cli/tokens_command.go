package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/temirov/fusion/internal/tokenizer"
)

const (
	tokensUse              = "tokens [files...]"
	tokensShortDescription = "estimate tokens for files or standard input"
	tokensLongDescription  = `Estimate the number of LLM tokens in each file, or in standard input when no
files are given. Estimates are rounded to the nearest hundred. Binary files and files
that are not valid UTF-8 are skipped.`
	tokensUsageExample = `  # Estimate a prompt piped from another command
  fusion export --all . | fusion tokens

  # Count two files with the gpt-4o tokenizer
  fusion tokens --model gpt-4o main.go go.mod`

	tokensLineFormat    = "%s\t~%d\n"
	tokensSkippedFormat = "%s\tskipped (%s)\n"
	tokensTotalLabel    = "total"
	errorReadStdin      = "read standard input: %w"
	errorCountFormat    = "count tokens in %s: %w"
)

// createTokensCommand returns the tokens subcommand.
func createTokensCommand(root *rootOptions, shared *dependencies) *cobra.Command {
	var model string

	tokensCommand := &cobra.Command{
		Use:     tokensUse,
		Short:   tokensShortDescription,
		Long:    tokensLongDescription,
		Example: tokensUsageExample,
		Args:    cobra.ArbitraryArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			env, environmentError := loadEnvironment(root, shared)
			if environmentError != nil {
				return environmentError
			}
			counter, counterError := env.tokenCounter(model)
			if counterError != nil {
				return counterError
			}
			writer := command.OutOrStdout()
			if len(arguments) == 0 {
				data, readError := io.ReadAll(command.InOrStdin())
				if readError != nil {
					return fmt.Errorf(errorReadStdin, readError)
				}
				estimate, countError := tokenizer.EstimateWith(counter, string(data))
				if countError != nil {
					return countError
				}
				fmt.Fprintf(writer, tokensLineFormat, counter.Name(), estimate)
				return nil
			}
			total := 0
			for _, path := range arguments {
				result, countError := tokenizer.CountFile(counter, path)
				if countError != nil {
					return fmt.Errorf(errorCountFormat, path, countError)
				}
				if !result.Counted() {
					fmt.Fprintf(writer, tokensSkippedFormat, path, result.Skipped)
					continue
				}
				total += result.Tokens
				fmt.Fprintf(writer, tokensLineFormat, path, tokenizer.Round(result.Tokens))
			}
			if len(arguments) > 1 {
				fmt.Fprintf(writer, tokensLineFormat, tokensTotalLabel, tokenizer.Round(total))
			}
			return nil
		},
	}
	tokensCommand.Flags().StringVar(&model, modelFlagName, "", modelFlagDesc)
	return tokensCommand
}
