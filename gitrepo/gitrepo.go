// Package gitrepo wraps the git command line tool for the small set
// of repository operations that release tagging needs. All operations
// shell out to git and return errors that include the command's
// combined output.
package gitrepo

import (
	"context"
	"os/exec"
	"strings"

	"github.com/pkg/errors"
)

// Repository represents a local git repository rooted at a directory.
type Repository struct {
	dir string
}

// NewRepository constructs a Repository for the given directory. The
// directory is not validated until the first operation runs.
func NewRepository(dir string) *Repository {
	if dir == "" {
		dir = "."
	}

	return &Repository{dir: dir}
}

// Dir returns the repository's root directory.
func (r *Repository) Dir() string { return r.dir }

func (r *Repository) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", append([]string{"-C", r.dir}, args...)...)

	out, err := cmd.CombinedOutput()
	output := strings.TrimSpace(string(out))
	if err != nil {
		return output, errors.Wrapf(err, "git %s: %s", strings.Join(args, " "), output)
	}

	return output, nil
}

// IsDirty returns true when the working tree has uncommitted changes,
// including untracked files.
func (r *Repository) IsDirty(ctx context.Context) (bool, error) {
	out, err := r.run(ctx, "status", "--porcelain")
	if err != nil {
		return false, errors.Wrap(err, "checking working tree state")
	}

	return out != "", nil
}

// HeadSummary returns a one-line summary (abbreviated hash and
// subject) of the commit at HEAD.
func (r *Repository) HeadSummary(ctx context.Context) (string, error) {
	out, err := r.run(ctx, "log", "--oneline", "-n", "1")

	return out, errors.Wrap(err, "summarizing HEAD")
}

// CreateTag creates a lightweight tag pointing at HEAD.
func (r *Repository) CreateTag(ctx context.Context, tag string) error {
	_, err := r.run(ctx, "tag", tag)

	return errors.Wrapf(err, "creating tag '%s'", tag)
}

// PushTag pushes a single tag to the named remote.
func (r *Repository) PushTag(ctx context.Context, remote, tag string) error {
	_, err := r.run(ctx, "push", remote, tag)

	return errors.Wrapf(err, "pushing tag '%s' to '%s'", tag, remote)
}

// TagExists reports whether a tag is already present in the local
// repository.
func (r *Repository) TagExists(ctx context.Context, tag string) (bool, error) {
	cmd := exec.CommandContext(ctx, "git", "-C", r.dir, "show-ref", "--verify", "--quiet", "refs/tags/"+tag)
	if err := cmd.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok && exitErr.ExitCode() == 1 {
			return false, nil
		}

		return false, errors.Wrapf(err, "checking for tag '%s'", tag)
	}

	return true, nil
}
