package release

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	shlex "github.com/anmitsu/go-shlex"
	"github.com/mongodb/grip"
	"github.com/mongodb/grip/level"
	"github.com/mongodb/grip/message"
	"github.com/mongodb/jasper"
	"github.com/pkg/errors"
)

// Fetcher downloads and verifies the upstream release artifacts for
// one version into a working directory.
type Fetcher struct {
	conf    *ReleaseConfig
	version string
	dir     string
	client  *http.Client

	sumsFile string
	sigFile  string
}

// NewFetcher constructs a Fetcher for one upstream version. The
// working directory is created if it does not exist.
func NewFetcher(conf *ReleaseConfig, version, dir string, client *http.Client) (*Fetcher, error) {
	if conf == nil {
		return nil, errors.New("cannot construct a fetcher without a configuration")
	}
	if client == nil {
		return nil, errors.New("cannot construct a fetcher without an http client")
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrapf(err, "creating working directory '%s'", dir)
	}

	return &Fetcher{conf: conf, version: version, dir: dir, client: client}, nil
}

func (f *Fetcher) download(ctx context.Context, url string) (string, error) {
	dest := filepath.Join(f.dir, path.Base(url))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", errors.Wrapf(err, "building request for '%s'", url)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", errors.Wrapf(err, "fetching '%s'", url)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", errors.Errorf("fetching '%s': status %s", url, resp.Status)
	}

	file, err := os.Create(dest)
	if err != nil {
		return "", errors.Wrapf(err, "creating '%s'", dest)
	}
	defer file.Close()

	size, err := io.Copy(file, resp.Body)
	if err != nil {
		return "", errors.Wrapf(err, "writing '%s'", dest)
	}

	grip.Info(message.Fields{
		"op":    "download",
		"url":   url,
		"path":  dest,
		"bytes": size,
	})

	return dest, nil
}

// FetchChecksums downloads the checksum manifest and its detached
// signature for the fetcher's version.
func (f *Fetcher) FetchChecksums(ctx context.Context) error {
	sums, err := f.download(ctx, f.conf.SumsURL(f.version))
	if err != nil {
		return errors.Wrap(err, "fetching checksum manifest")
	}
	f.sumsFile = sums

	if f.conf.URLs.Signature == "" {
		return nil
	}

	sig, err := f.download(ctx, f.conf.SignatureURL(f.version))
	if err != nil {
		return errors.Wrap(err, "fetching checksum signature")
	}
	f.sigFile = sig

	return nil
}

// VerifySignature checks the checksum manifest against its detached
// signature with the configured gpg command and keyring. When no
// keyring is configured the check is skipped with a warning.
func (f *Fetcher) VerifySignature(ctx context.Context) error {
	if f.conf.Services.Keyring == "" {
		grip.Warning(message.Fields{
			"message": "skipping signature verification",
			"version": f.version,
		})
		return nil
	}

	if f.sumsFile == "" || f.sigFile == "" {
		return errors.New("checksum manifest and signature must be fetched before verification")
	}

	gpg, err := shlex.Split(f.conf.Services.GPGCommand, true)
	if err != nil {
		return errors.Wrapf(err, "parsing gpg command '%s'", f.conf.Services.GPGCommand)
	}

	keyring, err := filepath.Abs(f.conf.Services.Keyring)
	if err != nil {
		return errors.Wrapf(err, "resolving keyring '%s'", f.conf.Services.Keyring)
	}

	args := append(gpg,
		"--no-default-keyring",
		"--keyring", keyring,
		"--verify", filepath.Base(f.sigFile), filepath.Base(f.sumsFile))

	sender := grip.GetSender()
	err = jasper.NewCommand().Add(args).Directory(f.dir).
		SetOutputSender(level.Debug, sender).
		SetErrorSender(level.Debug, sender).
		Run(ctx)

	return errors.Wrap(err, "verifying checksum manifest signature")
}

// Checksums parses the fetched manifest and returns the expected
// digest, as a hex string, for each artifact file name.
func (f *Fetcher) Checksums() (map[string]string, error) {
	if f.sumsFile == "" {
		return nil, errors.New("checksum manifest has not been fetched")
	}

	return ParseChecksums(f.sumsFile)
}

// ParseChecksums reads a SHA256SUMS-style manifest: one artifact per
// line, "<hex digest>  <file name>".
func ParseChecksums(fileName string) (map[string]string, error) {
	data, err := os.ReadFile(fileName)
	if err != nil {
		return nil, errors.Wrapf(err, "reading checksum manifest '%s'", fileName)
	}

	sums := make(map[string]string)
	for _, line := range strings.Split(string(data), "\n") {
		fields := strings.Fields(line)
		if len(fields) != 2 {
			continue
		}

		name := strings.TrimPrefix(fields[1], "*")
		sums[name] = strings.ToLower(fields[0])
	}

	if len(sums) == 0 {
		return nil, errors.Errorf("checksum manifest '%s' has no entries", fileName)
	}

	return sums, nil
}

// FetchArchive downloads the upstream archive for one architecture
// and verifies it against the checksum manifest.
func (f *Fetcher) FetchArchive(ctx context.Context, arch string, sums map[string]string) (string, error) {
	archive, err := f.download(ctx, f.conf.ArchiveURL(f.version, arch))
	if err != nil {
		return "", errors.Wrapf(err, "fetching archive for '%s'", arch)
	}

	expected, ok := sums[filepath.Base(archive)]
	if !ok {
		return "", errors.Errorf("checksum manifest has no entry for '%s'", filepath.Base(archive))
	}

	if err := verifyChecksum(archive, expected); err != nil {
		return "", errors.Wrapf(err, "verifying archive for '%s'", arch)
	}

	return archive, nil
}

func verifyChecksum(fileName, expected string) error {
	file, err := os.Open(fileName)
	if err != nil {
		return errors.Wrapf(err, "opening '%s'", fileName)
	}
	defer file.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return errors.Wrapf(err, "hashing '%s'", fileName)
	}

	actual := hex.EncodeToString(hash.Sum(nil))
	if actual != strings.ToLower(expected) {
		return errors.Errorf("checksum mismatch for '%s': %s != %s",
			fileName, actual, expected)
	}

	return nil
}
