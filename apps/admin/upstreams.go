package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/trezcool/masomo-bff/services/upstream"
)

const healthPath = "/health"

type upstreamTarget struct {
	name string
	env  string
	url  string
}

func (c *commandLine) upstreamsCmd() *cli.Command {
	return &cli.Command{
		Name:  "upstreams",
		Usage: "Check the configured backends",
		Commands: []*cli.Command{
			{
				Name:  "ping",
				Usage: "GET " + healthPath + " on every configured backend",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return c.ping(ctx)
				},
			},
		},
	}
}

func (c *commandLine) targets() []upstreamTarget {
	u := c.conf.Upstream
	return []upstreamTarget{
		{name: "integrated", env: "BACKEND_INTEGRATED_URL", url: u.IntegratedURL},
		{name: "course", env: "BE_COURSE_URL", url: u.CourseURL},
		{name: "attendance", env: "BE_ATT_URL", url: u.AttendanceURL},
		{name: "homework", env: "BE_HW_URL", url: u.HomeworkURL},
		{name: "notification", env: "BE_NOTIFY_URL", url: u.NotificationURL},
		{name: "legacy", env: "BE_BACKEND_URL", url: u.LegacyURL},
	}
}

// ping prints one line per backend, in a fixed order, and fails if any configured backend is down.
func (c *commandLine) ping(ctx context.Context) error {
	targets := c.targets()
	lines := make([]string, len(targets))
	down := make([]bool, len(targets))

	var g errgroup.Group
	for i, t := range targets {
		i, t := i, t
		g.Go(func() error {
			if t.url == "" {
				lines[i] = fmt.Sprintf("%-12s not configured (%s)", t.name, t.env)
				return nil
			}
			client := upstream.NewClient(t.url, nil,
				upstream.WithHTTPClient(c.httpc),
				upstream.WithTimeout(c.conf.Upstream.Timeout),
				upstream.WithLabel(t.name),
			)
			res, err := client.Get(ctx, healthPath)
			if err != nil {
				lines[i] = fmt.Sprintf("%-12s DOWN %v", t.name, err)
				down[i] = true
				return nil
			}
			_ = res.Body.Close()
			lines[i] = fmt.Sprintf("%-12s %d %s", t.name, res.StatusCode, http.StatusText(res.StatusCode))
			return nil
		})
	}
	_ = g.Wait()

	var failed int
	for i, line := range lines {
		fmt.Fprintln(c.out, line)
		if down[i] {
			failed++
		}
	}
	if failed > 0 {
		return errors.Errorf("%d upstream(s) down", failed)
	}
	return nil
}
