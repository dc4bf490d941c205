package main

import (
	"os"

	"github.com/velocast/velocast/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
