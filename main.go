package main

import (
	"os"

	"github.com/jmorante/job-hunter/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
