package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/trezcool/masomo-bff/core"
)

func main() {
	logger := log.New(os.Stderr, "ADMIN : ", log.LstdFlags|log.Lmicroseconds)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// start CLI
	cli := commandLine{
		conf:  core.NewConfig(),
		out:   os.Stdout,
		httpc: http.DefaultClient,
	}
	if err := cli.run(ctx, os.Args); err != nil {
		logger.Printf("error: %s", err)
		stop()
		os.Exit(1)
	}
}
