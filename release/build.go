package release

import (
	"context"
	"os"
	"runtime"
	"sort"
	"time"

	"github.com/evergreen-ci/utility"
	"github.com/mongodb/amboy"
	"github.com/mongodb/amboy/queue"
	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"github.com/pkg/errors"

	"github.com/c0m1c5an5/wheelwright"
)

// BuildOptions describes one wheel building run.
type BuildOptions struct {
	Conf     *ReleaseConfig
	Tag      string
	BuildDir string
	Workers  int

	version *wheelwright.ReleaseVersion
}

// Validate checks the options, parses the release tag, and sets
// defaults.
func (opts *BuildOptions) Validate() error {
	catcher := grip.NewBasicCatcher()

	catcher.NewWhen(opts.Conf == nil, "configuration is not specified")
	catcher.NewWhen(opts.Tag == "", "release tag is not specified")

	if opts.Tag != "" {
		version, err := wheelwright.NewReleaseVersion(opts.Tag)
		catcher.Add(err)
		opts.version = version
	}

	if opts.BuildDir == "" {
		opts.BuildDir = "build"
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}

	return catcher.Resolve()
}

// BuildWheels fetches the upstream release named by the tag, verifies
// it, and assembles one wheel per configured platform, writing the
// finished .whl files into the build directory. Per-platform failures
// are collected and returned together after every platform has been
// attempted.
func BuildWheels(ctx context.Context, opts BuildOptions) ([]string, error) {
	if err := opts.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid build options")
	}

	if err := os.MkdirAll(opts.BuildDir, 0755); err != nil {
		return nil, errors.Wrapf(err, "creating build directory '%s'", opts.BuildDir)
	}

	upstream := opts.version.Upstream()
	grip.Notice(message.Fields{
		"op":       "build wheels",
		"tag":      opts.Tag,
		"upstream": upstream,
		"package":  opts.Conf.Package.Name,
		"dir":      opts.BuildDir,
	})

	client := utility.GetHTTPClient()
	defer utility.PutHTTPClient(client)

	fetcher, err := NewFetcher(opts.Conf, upstream, opts.BuildDir, client)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	if err := fetcher.FetchChecksums(ctx); err != nil {
		return nil, errors.WithStack(err)
	}
	if err := fetcher.VerifySignature(ctx); err != nil {
		return nil, errors.WithStack(err)
	}

	sums, err := fetcher.Checksums()
	if err != nil {
		return nil, errors.WithStack(err)
	}

	platforms := make([]string, 0, len(opts.Conf.Platforms))
	for platform := range opts.Conf.Platforms {
		platforms = append(platforms, platform)
	}
	sort.Strings(platforms)

	catcher := grip.NewBasicCatcher()

	// downloads are sequential and tolerant: a platform whose
	// archive cannot be fetched or verified is skipped, and the
	// remaining platforms still build
	archives := make(map[string]string)
	for _, platform := range platforms {
		archive, err := fetcher.FetchArchive(ctx, opts.Conf.Platforms[platform], sums)
		if err != nil {
			catcher.Add(errors.Wrapf(err, "platform '%s'", platform))
			continue
		}
		archives[platform] = archive
	}

	q := queue.NewLocalLimitedSize(opts.Workers, 2*len(platforms)+1)
	if err := q.Start(ctx); err != nil {
		return nil, errors.Wrap(err, "starting build workers")
	}

	for _, platform := range platforms {
		archive, ok := archives[platform]
		if !ok {
			continue
		}

		catcher.Wrapf(q.Put(ctx, NewWheelJob(opts.Conf, opts.Tag, platform, archive, opts.BuildDir)),
			"submitting build for '%s'", platform)
	}

	amboy.WaitInterval(ctx, q, 10*time.Millisecond)

	var wheels []string
	for result := range q.Results(ctx) {
		j, ok := result.(*wheelJob)
		if !ok {
			continue
		}

		if err := j.Error(); err != nil {
			catcher.Add(err)
			continue
		}

		wheels = append(wheels, j.WheelFile)
	}
	sort.Strings(wheels)

	grip.NoticeWhen(!catcher.HasErrors(), message.Fields{
		"message": "built all wheels",
		"tag":     opts.Tag,
		"wheels":  len(wheels),
	})
	grip.WarningWhen(catcher.HasErrors(), message.Fields{
		"message":   "completed with per-platform failures",
		"tag":       opts.Tag,
		"wheels":    len(wheels),
		"platforms": len(platforms),
	})

	return wheels, catcher.Resolve()
}
