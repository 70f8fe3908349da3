package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"splicer/internal/services"
)

// Exit codes beyond 1 let scripts tell a failed job from a CLI error.
const (
	exitError      = 1
	exitJobFailed  = 2
	exitPollExpiry = 3
)

func main() {
	// A missing .env file is the common case.
	_ = godotenv.Load()

	if err := newRootCommand().Execute(); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	switch {
	case errors.Is(err, services.ErrJobFailed):
		return exitJobFailed
	case errors.Is(err, services.ErrPollTimeout):
		return exitPollExpiry
	default:
		return exitError
	}
}
