package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/ziedsayadi/Cvmodel/internal/cache"
	"github.com/ziedsayadi/Cvmodel/internal/cli"
	"github.com/ziedsayadi/Cvmodel/internal/httpapi"
)

func runServe(args []string) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	host := fs.String("host", "0.0.0.0", "Host interface to bind")
	port := fs.Int("port", 8080, "HTTP port")
	readTimeout := fs.Duration("read-timeout", 10*time.Second, "HTTP read timeout")
	writeTimeout := fs.Duration("write-timeout", 5*time.Minute, "HTTP write timeout")
	shutdownTimeout := fs.Duration("shutdown-timeout", 10*time.Second, "Graceful shutdown timeout")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if *port <= 0 || *port > 65535 {
		fmt.Fprintln(os.Stderr, "--port must be between 1 and 65535")
		return 2
	}

	buildCtx, buildCancel := context.WithTimeout(context.Background(), 30*time.Second)
	comps, err := buildComponents(buildCtx, envLoader, true)
	buildCancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start: %v\n", err)
		return 1
	}
	defer comps.close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		<-sigCh
		cancel()
	}()

	var maintenance sync.WaitGroup
	if comps.store != nil {
		flusher := &cache.Flusher{
			Cache:    comps.cache,
			Interval: comps.cfg.CacheFlushInterval(),
			Logger:   comps.logger,
		}
		maintenance.Add(1)
		go func() {
			defer maintenance.Done()
			flusher.Run(ctx)
		}()
	}

	srv := httpapi.NewServer(comps.pipeline, comps.client, comps.cache, comps.logger, httpapi.Options{
		Host:            *host,
		Port:            *port,
		ReadTimeout:     *readTimeout,
		WriteTimeout:    *writeTimeout,
		ShutdownTimeout: *shutdownTimeout,
	})

	if err := srv.Start(ctx); err != nil {
		comps.logger.Error().Err(err).Str("host", *host).Int("port", *port).Msg("server failed")
		fmt.Fprintf(os.Stderr, "Server failed: %v\n", err)
		cancel()
		maintenance.Wait()
		return 1
	}

	cancel()
	maintenance.Wait()
	return 0
}
