/*
Configuration

The ReleaseConfig object provides the metadata used to build and
publish wheels for one binary-wrapper package: the package's own
metadata, the map of wheel platform tags to upstream architectures,
the ordered list of wrapped upstream versions, and the locations of
the upstream release artifacts.
*/
package release

import (
	"fmt"
	"os"

	"github.com/mongodb/grip"
	"github.com/pkg/errors"
	yaml "gopkg.in/yaml.v2"

	"github.com/c0m1c5an5/wheelwright"
)

// ReleaseConfig provides an interface and schema for the release
// configuration file.
type ReleaseConfig struct {
	Package   PackageDefinition `bson:"package" json:"package" yaml:"package"`
	Platforms map[string]string `bson:"platforms" json:"platforms" yaml:"platforms"`
	Versions  []string          `bson:"versions" json:"versions" yaml:"versions"`
	URLs      URLTemplates      `bson:"urls" json:"urls" yaml:"urls"`
	Services  Services          `bson:"services" json:"services" yaml:"services"`
	Bucket    BucketDefinition  `bson:"bucket" json:"bucket" yaml:"bucket"`

	fileName string
}

// PackageDefinition describes the wheel package that wraps the
// upstream binary.
type PackageDefinition struct {
	Name           string   `bson:"name" json:"name" yaml:"name"`
	Summary        string   `bson:"summary" json:"summary" yaml:"summary"`
	HomePage       string   `bson:"home_page" json:"home_page" yaml:"home_page"`
	Author         string   `bson:"author" json:"author" yaml:"author"`
	AuthorEmail    string   `bson:"author_email" json:"author_email" yaml:"author_email"`
	Binary         string   `bson:"binary" json:"binary" yaml:"binary"`
	LicenseFile    string   `bson:"license_file" json:"license_file" yaml:"license_file"`
	ReadmeFile     string   `bson:"readme_file" json:"readme_file" yaml:"readme_file"`
	RequiresPython string   `bson:"requires_python" json:"requires_python" yaml:"requires_python"`
	PythonTags     []string `bson:"python_tags" json:"python_tags" yaml:"python_tags"`
	AbiTags        []string `bson:"abi_tags" json:"abi_tags" yaml:"abi_tags"`
	Classifiers    []string `bson:"classifiers" json:"classifiers" yaml:"classifiers"`
}

// URLTemplates holds fmt-style templates for the upstream release
// artifacts. The archive template takes the upstream version and the
// architecture; the checksum and signature templates take only the
// version.
type URLTemplates struct {
	Archive   string `bson:"archive" json:"archive" yaml:"archive"`
	Sums      string `bson:"sums" json:"sums" yaml:"sums"`
	Signature string `bson:"signature" json:"signature" yaml:"signature"`
}

// Services holds the settings for external tools and services the
// release process depends on.
type Services struct {
	GPGCommand string `bson:"gpg_command" json:"gpg_command" yaml:"gpg_command"`
	Keyring    string `bson:"keyring" json:"keyring" yaml:"keyring"`
}

// BucketDefinition holds the default publishing target.
type BucketDefinition struct {
	Name    string `bson:"name" json:"name" yaml:"name"`
	Prefix  string `bson:"prefix" json:"prefix" yaml:"prefix"`
	Region  string `bson:"region" json:"region" yaml:"region"`
	Profile string `bson:"aws_profile" json:"aws_profile" yaml:"aws_profile"`
}

// NewReleaseConfig produces a pointer to an initialized ReleaseConfig
// object with the defaults for wrapping the Terraform CLI.
func NewReleaseConfig() *ReleaseConfig {
	return &ReleaseConfig{
		Package: PackageDefinition{
			Binary:      "terraform",
			LicenseFile: "LICENSE",
			ReadmeFile:  "README.md",
			PythonTags:  []string{"py2", "py3"},
			AbiTags:     []string{"none"},
		},
		Platforms: make(map[string]string),
		URLs: URLTemplates{
			Archive:   "https://releases.hashicorp.com/terraform/%[1]s/terraform_%[1]s_%[2]s.zip",
			Sums:      "https://releases.hashicorp.com/terraform/%[1]s/terraform_%[1]s_SHA256SUMS",
			Signature: "https://releases.hashicorp.com/terraform/%[1]s/terraform_%[1]s_SHA256SUMS.sig",
		},
		Services: Services{
			GPGCommand: "gpg",
		},
	}
}

// GetConfig takes the name of a file and returns a pointer to a
// ReleaseConfig object. If the object is invalid or corrupt in some
// way, the method returns a nil ReleaseConfig and an error.
func GetConfig(fileName string) (*ReleaseConfig, error) {
	c := NewReleaseConfig()

	if err := c.read(fileName); err != nil {
		return nil, err
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}

	return c, nil
}

func (c *ReleaseConfig) read(fileName string) error {
	c.fileName = fileName

	data, err := os.ReadFile(fileName)
	if err != nil {
		return errors.Wrapf(err, "reading config file '%s'", fileName)
	}

	return errors.Wrapf(yaml.Unmarshal(data, c), "parsing config file '%s'", fileName)
}

// Validate checks the internal consistency of the configuration.
func (c *ReleaseConfig) Validate() error {
	catcher := grip.NewBasicCatcher()

	if c.Package.Name == "" {
		catcher.New("package name is not specified")
	}
	if c.Package.Binary == "" {
		catcher.New("upstream binary name is not specified")
	}
	if len(c.Package.PythonTags) == 0 {
		catcher.New("at least one python tag is required")
	}
	if len(c.Package.AbiTags) == 0 {
		catcher.New("at least one abi tag is required")
	}
	if len(c.Platforms) == 0 {
		catcher.New("no wheel platforms are configured")
	}

	for platform, arch := range c.Platforms {
		if arch == "" {
			catcher.Errorf("platform '%s' has no upstream architecture", platform)
		}
	}

	if c.URLs.Archive == "" {
		catcher.New("upstream archive url template is not specified")
	}
	if c.URLs.Sums == "" {
		catcher.New("upstream checksum url template is not specified")
	}

	for _, version := range c.Versions {
		if _, err := wheelwright.NewReleaseVersion(version); err != nil {
			catcher.Errorf("upstream version '%s' is not a valid version", version)
		}
	}

	grip.WarningWhen(c.Services.Keyring == "",
		"no gpg keyring specified; upstream signatures will not be verified")

	return errors.Wrapf(catcher.Resolve(), "invalid release configuration '%s'", c.fileName)
}

// ArchiveURL renders the download location of the upstream archive
// for a version and architecture.
func (c *ReleaseConfig) ArchiveURL(version, arch string) string {
	return fmt.Sprintf(c.URLs.Archive, version, arch)
}

// SumsURL renders the download location of the upstream checksum
// manifest for a version.
func (c *ReleaseConfig) SumsURL(version string) string {
	return fmt.Sprintf(c.URLs.Sums, version)
}

// SignatureURL renders the download location of the checksum
// manifest's detached signature for a version.
func (c *ReleaseConfig) SignatureURL(version string) string {
	return fmt.Sprintf(c.URLs.Signature, version)
}
