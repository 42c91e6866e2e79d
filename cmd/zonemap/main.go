package main

import (
	"os"

	"zone-mapper/cmd/zonemap/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
