package main

import (
	"os"

	"github.com/gkchatty/gkchatty-local/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
