package main

import (
	"os"
	"time"

	"github.com/provisor/provisor/internal/errors"
)

const ms = time.Millisecond

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(errors.ExitCode(err))
	}
}
