package main

import (
	"os"

	"github.com/elipriaulx/azdo-review-bot/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
