package app

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ziedsayadi/Cvmodel/internal/cli"
)

func runCache(args []string) int {
	if len(args) == 0 {
		printCacheUsage()
		return 2
	}

	action := strings.ToLower(strings.TrimSpace(args[0]))
	switch action {
	case "stats", "clear":
	default:
		fmt.Fprintf(os.Stderr, "Unknown cache action: %s\n\n", args[0])
		printCacheUsage()
		return 2
	}

	fs := flag.NewFlagSet("cache "+action, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 30*time.Second, "Command timeout")

	if err := fs.Parse(args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	comps, err := buildComponents(ctx, envLoader, true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start: %v\n", err)
		return 1
	}
	defer comps.close()

	if comps.store == nil {
		fmt.Fprintln(os.Stderr, "No durable cache configured (set DATABASE_URL); only a running server holds in-memory entries.")
	}

	switch action {
	case "stats":
		payload, err := json.MarshalIndent(comps.cache.Stats(), "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode stats: %v\n", err)
			return 1
		}
		fmt.Println(string(payload))
	case "clear":
		if err := comps.cache.Clear(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to clear cache: %v\n", err)
			return 1
		}
		fmt.Println("cache cleared")
	}
	return 0
}

func printCacheUsage() {
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  cvmodel cache stats [--env .env] [--timeout 30s]")
	fmt.Fprintln(os.Stderr, "  cvmodel cache clear [--env .env] [--timeout 30s]")
}
