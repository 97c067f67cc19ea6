package cmd

import (
	"github.com/spf13/cobra"

	"github.com/experiorlab/experior/config"
	"github.com/experiorlab/experior/experiment"
)

var runCmd = &cobra.Command{
	Use:   "run <config.yaml> [overrides...]",
	Short: "Run a training experiment",
	Long: `Run a training experiment from a root configuration document.
Overrides take the form key=value for individual keys or group=option
to swap a defaults-list fragment, e.g.:

  experior run conf/experiment.yaml seed=9 trainer=minimax
  experior run conf/smoke.yaml prior.num_actions=5`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	conf, err := config.Load(args[0], args[1:])
	if err != nil {
		return err
	}

	e, err := experiment.New(conf, newLogger())
	if err != nil {
		return err
	}
	return e.Run()
}
