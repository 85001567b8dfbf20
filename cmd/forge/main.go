package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/afero"

	"github.com/crimson-sun/forge/internal/fsplugin"
	"github.com/crimson-sun/forge/internal/logemit"
	"github.com/crimson-sun/forge/pkg/forge"
)

func main() {
	src := flag.String("src", "src", "source directory to read files from")
	dst := flag.String("dst", "dist", "destination directory to write files to")
	watchMode := flag.Bool("watch", false, "run in long-lived watch mode")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	jsonLogs := envOr("FORGE_LOG_FORMAT", "text") == "json"
	logemit.Init(logemit.ParseLevel(envOr("FORGE_LOG_LEVEL", "info")), jsonLogs)

	eng := forge.New(forge.WithDebug(*debug))
	defer eng.Dispose(context.Background())

	eng.OnLog(func(ev logemit.Event) {
		fmt.Fprintf(os.Stderr, "forge: %s %s\n", ev.Level, ev.Message)
	})
	eng.OnError(func(err error) {
		slog.Error("pipeline error", "error", err)
	})

	osFs := afero.NewOsFs()
	if err := eng.Use(fsplugin.NewSourcePlugin("source", &fsplugin.Source{Fs: osFs, Root: *src}), "source"); err != nil {
		log.Fatalf("forge: registering source: %v", err)
	}
	if err := eng.Use(fsplugin.NewDestinationPlugin("destination", &fsplugin.Destination{Fs: osFs, Root: *dst}), "destination"); err != nil {
		log.Fatalf("forge: registering destination: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Fprintf(os.Stderr, "\nreceived %v, shutting down...\n", sig)
		cancel()
	}()

	if *watchMode {
		fmt.Fprintf(os.Stderr, "forge: watching %s\n", *src)
		if err := eng.Watch(ctx); err != nil && err != context.Canceled {
			log.Fatalf("forge: watch error: %v", err)
		}
		return
	}

	fmt.Fprintf(os.Stderr, "forge: building %s -> %s\n", *src, *dst)
	summary, err := eng.Build(ctx)
	if err != nil {
		log.Fatalf("forge: build error: %v", err)
	}
	fmt.Fprintf(os.Stderr, "forge: done — %d files in, %d files out, %s\n",
		summary.Input.FileCount, summary.Output.FileCount, summary.Time.Elapsed)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
