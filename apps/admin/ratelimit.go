package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v3"
)

var errInMemoryStore = errors.New("rate limit windows are kept in the API process memory; set REDIS_URL to reset them from here")

func (c *commandLine) rateLimitCmd() *cli.Command {
	return &cli.Command{
		Name:  "ratelimit",
		Usage: "Manage rate limit windows",
		Commands: []*cli.Command{
			{
				Name:  "reset",
				Usage: "Clear the window of one caller",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "key",
						Usage:    "The caller key: user:<id> or ip:<address>",
						Required: true,
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return c.resetWindow(ctx, cmd.String("key"))
				},
			},
		},
	}
}

func (c *commandLine) resetWindow(ctx context.Context, key string) error {
	if c.conf.RateLimit.RedisURL == "" {
		return errInMemoryStore
	}
	store, closeStore, err := openStoreFunc(ctx, c.conf.RateLimit)
	if err != nil {
		return errors.Wrap(err, "opening rate limit store")
	}
	defer func() { _ = closeStore() }()

	if err = store.Reset(ctx, key); err != nil {
		return errors.Wrapf(err, "resetting %s", key)
	}
	fmt.Fprintf(c.out, "reset %s\n", key)
	return nil
}
