package main

import (
	"os"

	"github.com/conneroisu/popcode/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
