package main

import (
	"context"
	"fmt"
	"strings"
	"syscall"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v3"

	"github.com/trezcool/masomo-bff/core/auth"
)

func (c *commandLine) verifyTokenCmd() *cli.Command {
	return &cli.Command{
		Name:  "verifytoken",
		Usage: "Verify a bearer token against JWT_SECRET and print its identity",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "token",
				Usage: "The token (with or without the Bearer scheme). Prompted next when omitted.",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			token := cmd.String("token")
			if token == "" {
				fmt.Fprint(c.out, "Enter token:")
				raw, err := readPasswordFunc(int(syscall.Stdin))
				fmt.Fprintln(c.out)
				if err != nil {
					return errors.Wrap(err, "reading token")
				}
				token = string(raw)
			}
			return c.verifyToken(token)
		},
	}
}

func (c *commandLine) verifyToken(token string) error {
	token = strings.TrimSpace(token)
	if bearer, err := auth.ParseAuthorization(token); err == nil {
		token = bearer
	}
	if token == "" {
		return auth.ErrMissingToken
	}

	id, err := auth.NewVerifier(c.conf.SecretKey).Verify(token)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "id:       %d\n", id.ID)
	fmt.Fprintf(c.out, "username: %s\n", id.Username)
	fmt.Fprintf(c.out, "roles:    %s\n", strings.Join(id.Roles, ", "))
	fmt.Fprintf(c.out, "admin:    %t\n", id.IsAdmin())
	return nil
}
