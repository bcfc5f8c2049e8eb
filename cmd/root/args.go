package root

import (
	"context"
	"regexp"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var negativeNumber = regexp.MustCompile(`^-\d[\d.,']*$`)

// Execute runs the root command with args, after NormalizeArgs.
func Execute(ctx context.Context, args []string) error {
	Cmd.SetArgs(NormalizeArgs(args))
	return Cmd.ExecuteContext(ctx)
}

// NormalizeArgs lets negative numbers be passed as positional arguments.
// pflag reads "-54.20" as the shorthand flags -5, -4, ... so when such a
// token is not the value of a flag, the positionals of the invoked command
// are moved behind "--". Args that already contain "--" are left alone.
func NormalizeArgs(args []string) []string {
	if slices.Contains(args, "--") || !slices.ContainsFunc(args, negativeNumber.MatchString) {
		return args
	}
	cmd, _, err := Cmd.Find(args)
	if err != nil {
		return args
	}
	depth := len(strings.Fields(cmd.CommandPath())) - 1

	var flags, positionals []string
	negative := false
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case negativeNumber.MatchString(arg), !strings.HasPrefix(arg, "-"), arg == "-":
			if depth > 0 && !negativeNumber.MatchString(arg) {
				// subcommand name
				depth--
				flags = append(flags, arg)
				continue
			}
			negative = negative || negativeNumber.MatchString(arg)
			positionals = append(positionals, arg)
		default:
			flags = append(flags, arg)
			if takesValue(cmd, arg) && i+1 < len(args) {
				i++
				flags = append(flags, args[i])
			}
		}
	}
	if !negative {
		return args
	}

	out := make([]string, 0, len(args)+1)
	out = append(out, flags...)
	out = append(out, "--")
	return append(out, positionals...)
}

// takesValue reports whether arg is a flag whose value is the next token.
func takesValue(cmd *cobra.Command, arg string) bool {
	if strings.Contains(arg, "=") {
		return false
	}
	var f *pflag.Flag
	if name, ok := strings.CutPrefix(arg, "--"); ok {
		f = lookup(cmd, name)
	} else if len(arg) == 2 {
		for _, fs := range flagSets(cmd) {
			if f = fs.ShorthandLookup(arg[1:]); f != nil {
				break
			}
		}
	}
	return f != nil && f.NoOptDefVal == ""
}

func lookup(cmd *cobra.Command, name string) *pflag.Flag {
	for _, fs := range flagSets(cmd) {
		if f := fs.Lookup(name); f != nil {
			return f
		}
	}
	return nil
}

func flagSets(cmd *cobra.Command) []*pflag.FlagSet {
	return []*pflag.FlagSet{cmd.Flags(), cmd.PersistentFlags(), cmd.InheritedFlags()}
}
