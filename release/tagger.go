package release

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"github.com/pkg/errors"
)

// Tagger captures the git operations that a tag batch performs,
// satisfied by gitrepo.Repository.
type Tagger interface {
	IsDirty(context.Context) (bool, error)
	HeadSummary(context.Context) (string, error)
	TagExists(context.Context, string) (bool, error)
	CreateTag(context.Context, string) error
	PushTag(context.Context, string, string) error
}

// TagResult records the outcome for a single release tag so that
// callers can detect partial failure programmatically rather than
// scraping log output.
type TagResult struct {
	Tag     string `bson:"tag" json:"tag" yaml:"tag"`
	Created bool   `bson:"created" json:"created" yaml:"created"`
	Pushed  bool   `bson:"pushed" json:"pushed" yaml:"pushed"`
	Error   string `bson:"error,omitempty" json:"error,omitempty" yaml:"error,omitempty"`
}

// OK returns true when the tag was both created and pushed.
func (r TagResult) OK() bool { return r.Created && r.Pushed }

// TagBatchOptions describes one release-tagging run: the ordered
// upstream versions to tag, the suffix identifying this wrapper
// release, and the knobs controlling preconditions and confirmation.
type TagBatchOptions struct {
	Versions    []string
	Suffix      string
	Remote      string
	AllowDirty  bool
	SkipConfirm bool

	// Input and Output are the operator's confirmation terminal,
	// and default to standard input and output.
	Input  io.Reader
	Output io.Writer
}

// Validate checks the options and sets defaults. A batch without a
// suffix is rejected: the resulting tags would be ambiguous with raw
// upstream versions.
func (opts *TagBatchOptions) Validate() error {
	catcher := grip.NewBasicCatcher()

	if opts.Suffix == "" {
		catcher.New("tag suffix is not specified")
	}
	if len(opts.Versions) == 0 {
		catcher.New("no upstream versions to tag")
	}

	if opts.Remote == "" {
		opts.Remote = "origin"
	}
	if opts.Input == nil {
		opts.Input = os.Stdin
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	return catcher.Resolve()
}

// TagBatch derives one release tag per wrapped upstream version and
// applies them all to the current commit.
type TagBatch struct {
	opts TagBatchOptions
	repo Tagger
}

// NewTagBatch constructs a tag batch, validating its options.
func NewTagBatch(repo Tagger, opts TagBatchOptions) (*TagBatch, error) {
	if repo == nil {
		return nil, errors.New("cannot construct a tag batch without a repository")
	}

	if err := opts.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid tag batch options")
	}

	return &TagBatch{opts: opts, repo: repo}, nil
}

// Tags returns the derived tag names, in the same order as the
// version list.
func (b *TagBatch) Tags() []string {
	tags := make([]string, 0, len(b.opts.Versions))
	for _, version := range b.opts.Versions {
		tags = append(tags, version+"-"+b.opts.Suffix)
	}

	return tags
}

// Run applies the batch. Precondition failures (dirty working tree,
// unreadable repository) return an error before any tag is created.
// Once tagging begins, failures are per-tag: a tag that already
// exists, fails to create, or fails to push has its outcome
// recorded in the returned slice and the batch continues, so the
// returned error is nil even when individual tags fail. A declined
// confirmation aborts the batch before any tag is created and
// returns a nil result slice.
func (b *TagBatch) Run(ctx context.Context) ([]TagResult, error) {
	if !b.opts.AllowDirty {
		dirty, err := b.repo.IsDirty(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "checking working tree")
		}
		if dirty {
			return nil, errors.New("working tree has uncommitted changes")
		}
	}

	head, err := b.repo.HeadSummary(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "resolving target commit")
	}

	tags := b.Tags()

	fmt.Fprintln(b.opts.Output, "tags to create:")
	for _, tag := range tags {
		fmt.Fprintln(b.opts.Output, "  ", tag)
	}
	fmt.Fprintln(b.opts.Output, "target commit:", head)

	if !b.opts.SkipConfirm {
		confirmed, err := b.confirm()
		if err != nil {
			return nil, errors.Wrap(err, "reading confirmation")
		}
		if !confirmed {
			grip.Notice("aborted: no tags were created")
			return nil, nil
		}
	}

	results := make([]TagResult, 0, len(tags))
	for _, tag := range tags {
		res := TagResult{Tag: tag}

		if exists, err := b.repo.TagExists(ctx, tag); err != nil {
			res.Error = err.Error()
			grip.Error(message.WrapError(err, message.Fields{
				"op":  "check tag",
				"tag": tag,
			}))
			results = append(results, res)
			continue
		} else if exists {
			res.Error = fmt.Sprintf("tag '%s' already exists", tag)
			grip.Warning(message.Fields{
				"op":      "check tag",
				"tag":     tag,
				"message": "tag already exists, skipping",
			})
			results = append(results, res)
			continue
		}

		if err := b.repo.CreateTag(ctx, tag); err != nil {
			res.Error = err.Error()
			grip.Error(message.WrapError(err, message.Fields{
				"op":  "create tag",
				"tag": tag,
			}))
		} else {
			res.Created = true

			if err := b.repo.PushTag(ctx, b.opts.Remote, tag); err != nil {
				res.Error = err.Error()
				grip.Error(message.WrapError(err, message.Fields{
					"op":     "push tag",
					"tag":    tag,
					"remote": b.opts.Remote,
				}))
			} else {
				res.Pushed = true
				grip.Info(message.Fields{
					"op":     "push tag",
					"tag":    tag,
					"remote": b.opts.Remote,
				})
			}
		}

		results = append(results, res)
	}

	failed := 0
	for _, res := range results {
		if !res.OK() {
			failed++
		}
	}

	grip.NoticeWhen(failed == 0, message.Fields{
		"message": "pushed all tags",
		"tags":    len(results),
		"remote":  b.opts.Remote,
	})
	grip.WarningWhen(failed > 0, message.Fields{
		"message": "completed with per-tag failures",
		"tags":    len(results),
		"failed":  failed,
		"remote":  b.opts.Remote,
	})

	return results, nil
}

func (b *TagBatch) confirm() (bool, error) {
	fmt.Fprint(b.opts.Output, "push these tags? [y/N] ")

	line, err := bufio.NewReader(b.opts.Input).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, errors.WithStack(err)
	}

	return strings.TrimSpace(line) == "y", nil
}
