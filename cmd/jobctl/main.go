package main

import (
	"os"

	"github.com/srivatsav09/JobScheduler/cmd/jobctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
