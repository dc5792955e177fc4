// Command dmnd is the CLI surface over a .dt operation log: create, cat,
// log, version, set, and repack.
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// logLevelFlag adapts logrus.Level to pflag.Value so --verbosity can be set
// by name ("info", "debug", ...) instead of a bare integer.
type logLevelFlag struct {
	logrus.Level
}

func (f *logLevelFlag) String() string { return f.Level.String() }
func (f *logLevelFlag) Type() string   { return "level" }
func (f *logLevelFlag) Set(s string) error {
	lvl, err := logrus.ParseLevel(s)
	if err != nil {
		return err
	}
	f.Level = lvl
	return nil
}

var _ pflag.Value = (*logLevelFlag)(nil)

var log = logrus.New()

func main() {
	verbosity := &logLevelFlag{Level: logrus.WarnLevel}

	root := &cobra.Command{
		Use:           "dmnd",
		Short:         "Inspect and edit collaborative plain-text operation logs",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.PersistentFlags().Var(verbosity, "verbosity", "log level: panic, fatal, error, warn, info, debug, trace")
	root.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		log.SetLevel(verbosity.Level)
	}

	root.AddCommand(
		newCreateCmd(),
		newCatCmd(),
		newLogCmd(),
		newVersionCmd(),
		newSetCmd(),
		newRepackCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "dmnd:", err)
		os.Exit(1)
	}
}
