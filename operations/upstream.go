package operations

import (
	"context"
	"fmt"

	"github.com/evergreen-ci/utility"
	"github.com/ghodss/yaml"
	"github.com/pkg/errors"
	"github.com/urfave/cli"

	"github.com/c0m1c5an5/wheelwright/release"
)

// Upstream returns a cli.Command that enumerates the published
// versions of the wrapped upstream tool, which is the data the
// version list in the release configuration is maintained from.
func Upstream() cli.Command {
	return cli.Command{
		Name:    "upstream",
		Aliases: []string{"versions"},
		Usage:   "list the published versions of the wrapped upstream tool",
		Flags: []cli.Flag{
			cli.StringFlag{
				Name:  "url",
				Value: release.DefaultUpstreamIndexURL,
				Usage: "location of the upstream release index",
			},
			cli.BoolFlag{
				Name:  "include-prereleases",
				Usage: "include upstream pre-release versions in the listing",
			},
			cli.BoolFlag{
				Name:  "yaml",
				Usage: "specify this option to output data as YAML",
			},
		},
		Action: func(c *cli.Context) error {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			client := utility.GetDefaultHTTPRetryableClient()
			defer utility.PutHTTPClient(client)

			versions, err := release.ListUpstreamVersions(ctx, client,
				c.String("url"), c.Bool("include-prereleases"))
			if err != nil {
				return errors.Wrap(err, "listing upstream versions")
			}

			if c.Bool("yaml") {
				out, err := yaml.Marshal(struct {
					Versions []string `json:"versions"`
				}{Versions: versions})
				if err != nil {
					return errors.Wrap(err, "marshaling versions")
				}
				fmt.Print(string(out))
				return nil
			}

			for _, version := range versions {
				fmt.Println(version)
			}

			return nil
		},
	}
}
