package main

import (
	"os"

	"github.com/experiorlab/experior/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
