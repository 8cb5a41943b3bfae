package main

import (
	"os"

	"github.com/penwyp/waybacker/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
