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

func runHealth(args []string) int {
	fs := flag.NewFlagSet("health", flag.ContinueOnError)
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

	comps, err := buildComponents(ctx, envLoader, true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Health check failed: %v\n", err)
		return 1
	}
	defer comps.close()

	if _, err := comps.client.ListModels(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Text service unreachable: %v\n", err)
		return 1
	}

	if comps.store != nil {
		fmt.Println("ok (text service reachable, durable cache connected)")
		return 0
	}
	fmt.Println("ok (text service reachable, in-memory cache only)")
	return 0
}
