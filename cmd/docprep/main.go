package main

import (
	"os"

	"docprep/api/cmd/docprep/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
