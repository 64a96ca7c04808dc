package main

import (
	"os"

	"github.com/olushako/vaulty/cmd/vaulty/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
