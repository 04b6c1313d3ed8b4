package main

import (
	"context"
	"io"
	"net/http"

	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/trezcool/masomo-bff/core"
	rlstore "github.com/trezcool/masomo-bff/storage/ratelimit"
)

var (
	readPasswordFunc = term.ReadPassword // mockable
	openStoreFunc    = rlstore.Open      // mockable
)

type commandLine struct {
	conf  *core.Config
	out   io.Writer
	httpc *http.Client
}

func (c *commandLine) root() *cli.Command {
	return &cli.Command{
		Name:   "admin",
		Usage:  "Operator tasks for the BFF gateway",
		Writer: c.out,
		Commands: []*cli.Command{
			c.verifyTokenCmd(),
			c.rateLimitCmd(),
			c.upstreamsCmd(),
		},
	}
}

// run expects the full argument list, program name included.
func (c *commandLine) run(ctx context.Context, args []string) error {
	return c.root().Run(ctx, args)
}
