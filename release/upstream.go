package release

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"

	"github.com/blang/semver"
	"github.com/mongodb/grip"
	"github.com/pkg/errors"
)

// DefaultUpstreamIndexURL is the release index of the Terraform CLI,
// the default wrapped binary.
const DefaultUpstreamIndexURL = "https://releases.hashicorp.com/terraform/index.json"

type upstreamIndex struct {
	Versions map[string]json.RawMessage `json:"versions"`
}

// ListUpstreamVersions fetches an upstream release index (a JSON
// document with a "versions" object keyed by version string) and
// returns the release versions in ascending order. Pre-releases are
// excluded unless includePrereleases is set; entries that do not
// parse as semantic versions are skipped.
func ListUpstreamVersions(ctx context.Context, client *http.Client, indexURL string, includePrereleases bool) ([]string, error) {
	if client == nil {
		return nil, errors.New("cannot list versions without an http client")
	}
	if indexURL == "" {
		indexURL = DefaultUpstreamIndexURL
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, indexURL, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "building request for '%s'", indexURL)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "fetching '%s'", indexURL)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("fetching '%s': status %s", indexURL, resp.Status)
	}

	index := upstreamIndex{}
	if err := json.NewDecoder(resp.Body).Decode(&index); err != nil {
		return nil, errors.Wrapf(err, "parsing release index from '%s'", indexURL)
	}

	versions := make(semver.Versions, 0, len(index.Versions))
	for name := range index.Versions {
		version, err := semver.Parse(name)
		if err != nil {
			grip.Debugf("skipping unparseable upstream version '%s'", name)
			continue
		}

		if len(version.Pre) > 0 && !includePrereleases {
			continue
		}

		versions = append(versions, version)
	}

	sort.Sort(versions)

	out := make([]string, 0, len(versions))
	for _, version := range versions {
		out = append(out, version.String())
	}

	return out, nil
}
