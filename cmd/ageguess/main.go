// Command ageguess serves the age guessing game.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const usage = "Usage ageguess [portNumber]"

// errUsage marks bad invocations; they print the usage line and exit 0.
var errUsage = errors.New("invalid arguments")

func main() {
	cmd := newCmd(os.Stdin, os.Stdout, os.Stderr)
	if err := cmd.Execute(); err != nil {
		if errors.Is(err, errUsage) {
			return
		}
		fmt.Fprintln(os.Stderr, "ageguess:", err)
		os.Exit(1)
	}
}

func newCmd(in io.Reader, out, errOut io.Writer) *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:           "ageguess portNumber",
		Short:         "Guess the average age of people with a given first name.",
		Args:          cobra.ArbitraryArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			port, err := parsePort(args)
			if err != nil {
				fmt.Fprintln(out, usage)
				return errUsage
			}
			return run(cmd.Context(), runOptions{
				port:       port,
				configFile: configFile,
				in:         in,
				out:        out,
				errOut:     errOut,
			})
		},
	}

	fs := cmd.Flags()
	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})
	fs.StringVarP(&configFile, "config", "c", "", "YAML config file (env: AGEGUESS_CONFIG)")

	cmd.SetFlagErrorFunc(func(*cobra.Command, error) error {
		fmt.Fprintln(out, usage)
		return errUsage
	})
	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetIn(in)
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	return cmd
}

// parsePort accepts exactly one argument made of four decimal digits.
func parsePort(args []string) (int, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("%w: want one argument, got %d", errUsage, len(args))
	}
	arg := args[0]
	if len(arg) != 4 {
		return 0, fmt.Errorf("%w: port %q is not four digits", errUsage, arg)
	}
	for _, c := range arg {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("%w: port %q is not four digits", errUsage, arg)
		}
	}
	port, err := strconv.Atoi(arg)
	if err != nil || port < 1 {
		return 0, fmt.Errorf("%w: port %q out of range", errUsage, arg)
	}
	return port, nil
}
