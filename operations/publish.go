package operations

import (
	"context"
	"os"

	"github.com/evergreen-ci/pail"
	"github.com/pkg/errors"
	"github.com/urfave/cli"

	"github.com/c0m1c5an5/wheelwright/release"
)

// Publish returns a cli.Command that uploads built wheels to a
// package bucket.
func Publish() cli.Command {
	profile := os.Getenv("AWS_PROFILE")
	if profile == "" {
		profile = "default"
	}

	return cli.Command{
		Name:  "publish",
		Usage: "upload built wheels to a package bucket",
		Flags: []cli.Flag{
			cli.StringFlag{
				Name:  "dir",
				Value: "build",
				Usage: "directory containing the wheels to publish",
			},
			cli.StringFlag{
				Name:  "bucket",
				Usage: "name of the s3 bucket to publish to",
			},
			cli.StringFlag{
				Name:  "target",
				Usage: "publish into a local directory instead of a bucket",
			},
			cli.StringFlag{
				Name:  "prefix",
				Usage: "a prefix for keys within the bucket",
			},
			cli.StringFlag{
				Name:  "region",
				Usage: "aws region of the bucket",
			},
			cli.StringFlag{
				Name:  "profile",
				Value: profile,
				Usage: "aws credentials profile",
			},
			cli.StringFlag{
				Name:  "permissions",
				Value: string(pail.S3PermissionsPublicRead),
				Usage: "canned ACL to apply to the uploaded wheels",
			},
			cli.BoolFlag{
				Name:  "skip-existing",
				Usage: "leave wheels that are already published untouched",
			},
			cli.BoolFlag{
				Name:  "dry-run",
				Usage: "make the operation run in a dry-run mode",
			},
		},
		Action: func(c *cli.Context) error {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			_, err := release.Publish(ctx, release.PublishOptions{
				BuildDir:     c.String("dir"),
				BucketName:   c.String("bucket"),
				LocalTarget:  c.String("target"),
				Prefix:       c.String("prefix"),
				Region:       c.String("region"),
				Profile:      c.String("profile"),
				Permissions:  c.String("permissions"),
				SkipExisting: c.Bool("skip-existing"),
				DryRun:       c.Bool("dry-run"),
			})

			return errors.Wrap(err, "publishing wheels")
		},
	}
}
