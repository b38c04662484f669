package release

import (
	"context"
	"path/filepath"
	"sort"

	"github.com/evergreen-ci/pail"
	"github.com/evergreen-ci/utility"
	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"github.com/pkg/errors"
)

// PublishOptions describes one publishing run: where the built
// wheels are, and the bucket that receives them.
type PublishOptions struct {
	BuildDir string

	// Exactly one of BucketName (an S3 bucket) or LocalTarget (a
	// filesystem directory, used for staging and testing) must be
	// specified.
	BucketName  string
	LocalTarget string

	Prefix      string
	Region      string
	Profile     string
	Permissions string

	// SkipExisting leaves wheels that are already present in the
	// bucket untouched rather than failing or overwriting, so a
	// re-run of a partially published release is safe.
	SkipExisting bool
	DryRun       bool
}

// Validate checks the options and sets defaults.
func (opts *PublishOptions) Validate() error {
	catcher := grip.NewBasicCatcher()

	catcher.NewWhen(opts.BuildDir == "", "build directory is not specified")
	catcher.NewWhen(opts.BucketName == "" && opts.LocalTarget == "",
		"no publishing target is specified")
	catcher.NewWhen(opts.BucketName != "" && opts.LocalTarget != "",
		"cannot publish to both a bucket and a local target")

	if opts.Permissions == "" {
		opts.Permissions = string(pail.S3PermissionsPublicRead)
	}

	return catcher.Resolve()
}

func (opts *PublishOptions) makeBucket(ctx context.Context) (pail.Bucket, error) {
	if opts.LocalTarget != "" {
		bucket, err := pail.NewLocalBucket(pail.LocalOptions{
			Path:   opts.LocalTarget,
			Prefix: opts.Prefix,
			DryRun: opts.DryRun,
		})

		return bucket, errors.Wrap(err, "constructing local bucket")
	}

	client := utility.GetHTTPClient()
	defer utility.PutHTTPClient(client)

	bucket, err := pail.NewS3BucketWithHTTPClient(ctx, client, pail.S3Options{
		Name:                     opts.BucketName,
		Prefix:                   opts.Prefix,
		Region:                   opts.Region,
		SharedCredentialsProfile: opts.Profile,
		Permissions:              pail.S3Permissions(opts.Permissions),
		DryRun:                   opts.DryRun,
	})

	return bucket, errors.Wrap(err, "constructing s3 bucket")
}

// Publish uploads every wheel in the build directory to the
// configured bucket, and returns the keys that were uploaded.
// Per-file failures are collected and returned together after every
// wheel has been attempted.
func Publish(ctx context.Context, opts PublishOptions) ([]string, error) {
	if err := opts.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid publish options")
	}

	wheels, err := filepath.Glob(filepath.Join(opts.BuildDir, "*.whl"))
	if err != nil {
		return nil, errors.Wrapf(err, "listing wheels in '%s'", opts.BuildDir)
	}
	if len(wheels) == 0 {
		return nil, errors.Errorf("no wheels found in '%s'", opts.BuildDir)
	}
	sort.Strings(wheels)

	bucket, err := opts.makeBucket(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	catcher := grip.NewBasicCatcher()
	var published []string

	for _, wheel := range wheels {
		key := filepath.Base(wheel)

		if opts.SkipExisting {
			exists, err := bucket.Exists(ctx, key)
			if err != nil {
				catcher.Wrapf(err, "checking for '%s'", key)
				continue
			}
			if exists {
				grip.Info(message.Fields{
					"op":      "publish",
					"key":     key,
					"message": "already published, skipping",
				})
				continue
			}
		}

		if err := bucket.Upload(ctx, key, wheel); err != nil {
			catcher.Wrapf(err, "uploading '%s'", key)
			continue
		}

		published = append(published, key)
		grip.Info(message.Fields{
			"op":  "publish",
			"key": key,
		})
	}

	grip.NoticeWhen(!catcher.HasErrors(), message.Fields{
		"message":   "published all wheels",
		"wheels":    len(wheels),
		"published": len(published),
	})
	grip.WarningWhen(catcher.HasErrors(), message.Fields{
		"message":   "completed with per-wheel failures",
		"wheels":    len(wheels),
		"published": len(published),
	})

	return published, catcher.Resolve()
}
