package operations

import (
	"context"
	"encoding/json"
	"os"

	"github.com/pkg/errors"
	"github.com/urfave/cli"

	"github.com/c0m1c5an5/wheelwright/gitrepo"
	"github.com/c0m1c5an5/wheelwright/release"
)

// allowDirtyFromEnv reports whether the DIRTY_WORKTREE variable is
// present in the environment. Its presence, regardless of value,
// bypasses the clean tree check.
func allowDirtyFromEnv() bool {
	_, ok := os.LookupEnv("DIRTY_WORKTREE")
	return ok
}

// Tag returns a cli.Command for the release tagging operation: one
// tag per wrapped upstream version, all pointing at the current
// commit, pushed to a remote.
func Tag() cli.Command {
	return cli.Command{
		Name:  "tag",
		Usage: "create and push release tags for every wrapped upstream version",
		Flags: []cli.Flag{
			cli.StringFlag{
				Name:   "suffix",
				EnvVar: "TAG_SUFFIX",
				Usage:  "release suffix appended to every upstream version (e.g. 'a3')",
			},
			cli.StringFlag{
				Name:  "config",
				Value: "release_config.yaml",
				Usage: "path of a wheelwright release configuration file",
			},
			cli.StringSliceFlag{
				Name:  "version",
				Usage: "tag a specific upstream version instead of the configured list (may specify multiple times)",
			},
			cli.StringFlag{
				Name:  "remote",
				Value: "origin",
				Usage: "name of the git remote that receives the tags",
			},
			cli.StringFlag{
				Name:  "dir",
				Value: ".",
				Usage: "path of the git repository to tag",
			},
			cli.BoolFlag{
				Name:  "allow-dirty",
				Usage: "proceed even when the working tree has uncommitted changes",
			},
			cli.BoolFlag{
				Name:  "yes, y",
				Usage: "skip the interactive confirmation prompt",
			},
			cli.StringFlag{
				Name:  "output",
				Usage: "write per-tag results to a JSON file",
			},
		},
		Before: requireStringFlag("suffix"),
		Action: func(c *cli.Context) error {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			versions := c.StringSlice("version")
			if len(versions) == 0 {
				conf, err := release.GetConfig(c.String("config"))
				if err != nil {
					return errors.WithStack(err)
				}
				versions = conf.Versions
			}

			allowDirty := c.Bool("allow-dirty") || allowDirtyFromEnv()

			batch, err := release.NewTagBatch(
				gitrepo.NewRepository(c.String("dir")),
				release.TagBatchOptions{
					Versions:    versions,
					Suffix:      c.String("suffix"),
					Remote:      c.String("remote"),
					AllowDirty:  allowDirty,
					SkipConfirm: c.Bool("yes"),
				})
			if err != nil {
				return errors.WithStack(err)
			}

			results, err := batch.Run(ctx)
			if err != nil {
				return errors.WithStack(err)
			}
			if results == nil {
				// the operator declined; nothing was tagged
				return nil
			}

			// per-tag failures are recorded in the results
			// and do not affect the exit status
			if out := c.String("output"); out != "" {
				data, err := json.MarshalIndent(results, "", "   ")
				if err != nil {
					return errors.Wrap(err, "marshaling tag results")
				}
				if err := os.WriteFile(out, data, 0644); err != nil {
					return errors.Wrapf(err, "writing tag results to '%s'", out)
				}
			}

			return nil
		},
	}
}
