package main

import (
	"os"

	"github.com/emberline/marketpulse/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
