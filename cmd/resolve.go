package cmd

import (
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/experiorlab/experior/config"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <config.yaml> [overrides...]",
	Short: "Print the composed configuration",
	Long: `Compose a root configuration document with its defaults list,
apply any command line overrides, resolve interpolations and print the
resulting document as YAML without running anything.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runResolve,
}

func runResolve(cmd *cobra.Command, args []string) error {
	tree, err := config.Compose(args[0], args[1:])
	if err != nil {
		return err
	}

	// Validate too, so resolve catches what run would catch.
	if _, err := config.Decode(tree); err != nil {
		return err
	}

	out, err := yaml.Marshal(tree)
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(out)
	return err
}
