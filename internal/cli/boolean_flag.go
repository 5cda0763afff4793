package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const (
	switchFlagTypeName       = "switch"
	switchTrueLiteral        = "true"
	switchAcceptedLiterals   = "on, off, yes, no, true, false, 1, 0"
	errorSwitchLiteralFormat = "invalid value %q for --%s; accepted values: %s"
	errorSwitchTargetFormat  = "flag --%s has no target"
)

var switchLiterals = map[string]bool{
	"true":  true,
	"t":     true,
	"1":     true,
	"yes":   true,
	"y":     true,
	"on":    true,
	"false": false,
	"f":     false,
	"0":     false,
	"no":    false,
	"n":     false,
	"off":   false,
}

// parseSwitchLiteral interprets on/off style text. The second result is false
// when input is not a recognized literal.
func parseSwitchLiteral(input string) (bool, bool) {
	value, known := switchLiterals[strings.ToLower(strings.TrimSpace(input))]
	return value, known
}

// switchValue is a pflag.Value for boolean options that also accepts
// "--flag on" with the literal as a separate argument.
type switchValue struct {
	target *bool
	name   string
}

func (value *switchValue) Set(input string) error {
	if value.target == nil {
		return fmt.Errorf(errorSwitchTargetFormat, value.name)
	}
	if strings.TrimSpace(input) == "" {
		input = switchTrueLiteral
	}
	parsed, known := parseSwitchLiteral(input)
	if !known {
		return fmt.Errorf(errorSwitchLiteralFormat, input, value.name, switchAcceptedLiterals)
	}
	*value.target = parsed
	return nil
}

func (value *switchValue) String() string {
	if value == nil || value.target == nil {
		return strconv.FormatBool(false)
	}
	return strconv.FormatBool(*value.target)
}

func (value *switchValue) Type() string {
	return switchFlagTypeName
}

func registerSwitchFlag(flagSet *pflag.FlagSet, target *bool, name string, defaultValue bool, usage string) {
	if flagSet == nil || target == nil {
		return
	}
	*target = defaultValue
	flagSet.Var(&switchValue{target: target, name: name}, name, usage)
	flag := flagSet.Lookup(name)
	flag.DefValue = strconv.FormatBool(defaultValue)
	flag.NoOptDefVal = switchTrueLiteral
}

// normalizeSwitchArguments rewrites "--flag on" into "--flag=on" for every
// switch flag declared on command or its descendants, so the literal is not
// mistaken for a positional argument.
func normalizeSwitchArguments(command *cobra.Command, arguments []string) []string {
	switches := switchFlagNames(command)
	if len(switches) == 0 {
		return arguments
	}
	normalized := make([]string, 0, len(arguments))
	for index := 0; index < len(arguments); index++ {
		current := arguments[index]
		if current == "--" {
			return append(normalized, arguments[index:]...)
		}
		name, isLongFlag := strings.CutPrefix(current, "--")
		_, isSwitch := switches[name]
		if isLongFlag && isSwitch && !strings.Contains(name, "=") && index+1 < len(arguments) {
			if _, known := parseSwitchLiteral(arguments[index+1]); known {
				normalized = append(normalized, current+"="+arguments[index+1])
				index++
				continue
			}
		}
		normalized = append(normalized, current)
	}
	return normalized
}

func switchFlagNames(command *cobra.Command) map[string]struct{} {
	names := map[string]struct{}{}
	var collect func(*cobra.Command)
	collect = func(current *cobra.Command) {
		visit := func(flag *pflag.Flag) {
			if flag.Value.Type() == switchFlagTypeName {
				names[flag.Name] = struct{}{}
			}
		}
		current.PersistentFlags().VisitAll(visit)
		current.Flags().VisitAll(visit)
		for _, child := range current.Commands() {
			collect(child)
		}
	}
	if command != nil {
		collect(command)
	}
	return names
}
