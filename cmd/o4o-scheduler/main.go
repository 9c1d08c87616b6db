package main

import (
	"fmt"
	"os"

	"github.com/Renagang21/o4o-platform-sub086/cmd/o4o-scheduler/commands"
)

func main() {
	if err := commands.RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
