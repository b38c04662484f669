package operations

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/pkg/errors"
	"github.com/urfave/cli"

	"github.com/c0m1c5an5/wheelwright/release"
)

// Build returns a cli.Command that fetches an upstream release,
// verifies it, and assembles the platform wheels for one release
// tag.
func Build() cli.Command {
	return cli.Command{
		Name:    "build",
		Aliases: []string{"wheels"},
		Usage:   "build the platform wheels for a release tag",
		Flags: []cli.Flag{
			cli.StringFlag{
				Name:   "tag",
				EnvVar: "GIT_TAG",
				Usage:  "release tag to build (e.g. '1.5.7-a3')",
			},
			cli.StringFlag{
				Name:  "config",
				Value: "release_config.yaml",
				Usage: "path of a wheelwright release configuration file",
			},
			cli.StringFlag{
				Name:  "dir",
				Value: "build",
				Usage: "directory that receives the finished wheels",
			},
			cli.IntFlag{
				Name:  "workers",
				Value: runtime.NumCPU(),
				Usage: "number of wheels to assemble concurrently",
			},
			cli.StringFlag{
				Name:  "timeout",
				Value: "no-timeout",
				Usage: "maximum duration for the operation, defaults to no time out",
			},
		},
		Before: mergeBeforeFuncs(
			requireStringFlag("tag"),
			requireFileExists("config"),
		),
		Action: func(c *cli.Context) error {
			var cancel context.CancelFunc
			ctx := context.Background()

			timeout := c.String("timeout")
			if timeout != "no-timeout" {
				ttl, err := time.ParseDuration(timeout)
				if err != nil {
					return errors.Wrapf(err, "%s is not a valid timeout", timeout)
				}
				ctx, cancel = context.WithTimeout(ctx, ttl)
				defer cancel()
			} else {
				ctx, cancel = context.WithCancel(ctx)
				defer cancel()
			}

			conf, err := release.GetConfig(c.String("config"))
			if err != nil {
				return errors.WithStack(err)
			}

			wheels, err := release.BuildWheels(ctx, release.BuildOptions{
				Conf:     conf,
				Tag:      c.String("tag"),
				BuildDir: c.String("dir"),
				Workers:  c.Int("workers"),
			})
			if err != nil {
				return errors.Wrap(err, "building wheels")
			}

			for _, wheel := range wheels {
				fmt.Println(wheel)
			}

			return nil
		},
	}
}
