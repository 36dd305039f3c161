package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/ziedsayadi/Cvmodel/internal/cli"
)

func runModels(args []string) int {
	fs := flag.NewFlagSet("models", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 30*time.Second, "Command timeout")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	comps, err := buildComponents(ctx, envLoader, false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start: %v\n", err)
		return 1
	}

	models, err := comps.client.ListModels(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to list models: %v\n", err)
		return 1
	}

	for _, model := range models {
		marker := " "
		switch model {
		case comps.cfg.PrimaryModel:
			marker = "*"
		case comps.cfg.FallbackModel:
			marker = "+"
		}
		fmt.Printf("%s %s\n", marker, model)
	}
	fmt.Fprintf(os.Stderr, "\n* primary  + fallback\n")
	return 0
}
