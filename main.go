package main

import (
	"os"

	"github.com/inverno-bio/inverno/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
