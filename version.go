package wheelwright

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/blang/semver"
	"github.com/pkg/errors"
)

// BuildRevision stores the commit in the git repository at build time
// and is specified with -ldflags at build time.
var BuildRevision = ""

var normalizePattern = regexp.MustCompile(`[-_.]+`)

// Normalize translates a version or name component into the form used
// inside wheel file names, collapsing runs of separator characters to
// a single underscore.
func Normalize(s string) string {
	return normalizePattern.ReplaceAllString(s, "_")
}

// ReleaseVersion encapsulates information about one release of a
// binary-wrapper package. Release tags have the form
// "<upstream version>-<suffix>" (e.g. "1.5.7-a3",) where the semver
// portion identifies the wrapped upstream release and the suffix
// identifies the wrapper package's own revision. All parsing happens
// during construction and the accessors are light-weight.
type ReleaseVersion struct {
	source string
	parsed semver.Version
}

// NewReleaseVersion constructs a ReleaseVersion from a tag string,
// returning an error if the tag is not a well-formed semantic
// version.
func NewReleaseVersion(tag string) (*ReleaseVersion, error) {
	v, err := semver.Parse(tag)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing release tag '%s'", tag)
	}

	return &ReleaseVersion{source: tag, parsed: v}, nil
}

// String returns the tag the version was parsed from.
func (v *ReleaseVersion) String() string { return v.source }

// Parsed returns the underlying semver object.
func (v *ReleaseVersion) Parsed() semver.Version { return v.parsed }

// Upstream returns the finalized major.minor.patch version, which
// names the upstream release whose binaries the package wraps.
func (v *ReleaseVersion) Upstream() string {
	return fmt.Sprintf("%d.%d.%d", v.parsed.Major, v.parsed.Minor, v.parsed.Patch)
}

// Suffix returns the release suffix (the pre-release component of the
// tag,) or the empty string when the tag has none.
func (v *ReleaseVersion) Suffix() string {
	parts := make([]string, 0, len(v.parsed.Pre))
	for _, pre := range v.parsed.Pre {
		parts = append(parts, pre.String())
	}

	return strings.Join(parts, ".")
}

// Package returns the version string embedded in wheel file names: a
// dotted join of every non-empty component of the tag, with each
// component normalized.
func (v *ReleaseVersion) Package() string {
	components := []string{
		fmt.Sprint(v.parsed.Major),
		fmt.Sprint(v.parsed.Minor),
		fmt.Sprint(v.parsed.Patch),
	}

	for _, pre := range v.parsed.Pre {
		components = append(components, Normalize(pre.String()))
	}
	for _, build := range v.parsed.Build {
		components = append(components, Normalize(build))
	}

	return strings.Join(components, ".")
}

// IsFinal returns true when the tag carries no suffix, i.e. it names
// a raw upstream version rather than a wrapper release.
func (v *ReleaseVersion) IsFinal() bool { return len(v.parsed.Pre) == 0 }

// IsLessThan returns true when the receiver sorts before the
// argument.
func (v *ReleaseVersion) IsLessThan(other *ReleaseVersion) bool {
	return v.parsed.LT(other.parsed)
}

// IsGreaterThan returns true when the receiver sorts after the
// argument.
func (v *ReleaseVersion) IsGreaterThan(other *ReleaseVersion) bool {
	return v.parsed.GT(other.parsed)
}
