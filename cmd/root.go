// Package cmd implements the experior command line interface.
package cmd

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "experior",
	Short: "Train bandit policies against learned adversarial priors",
	Long: `Experior trains a sequence-model bandit policy against a learned
Beta prior over environments. Configuration documents are composed from
YAML fragments with a defaults list, and any key can be overridden on
the command line as key=value (or group=option to swap a fragment).`,
	SilenceUsage: true,
}

var verbose bool

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"enable debug logging")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(resolveCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func newLogger() *logrus.Logger {
	log := logrus.New()
	if verbose {
		log.SetLevel(logrus.DebugLevel)
	}
	return log
}
