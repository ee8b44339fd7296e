package main

import (
	"os"

	"github.com/garyjia/medallion-bpm/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
