package release

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/c0m1c5an5/wheelwright"
)

type WheelSuite struct {
	conf    *ReleaseConfig
	version *wheelwright.ReleaseVersion
	srcDir  string
	workDir string
	suite.Suite
}

func TestWheelSuite(t *testing.T) {
	suite.Run(t, new(WheelSuite))
}

func (s *WheelSuite) SetupTest() {
	s.srcDir = s.T().TempDir()
	s.workDir = s.T().TempDir()

	s.Require().NoError(os.WriteFile(filepath.Join(s.srcDir, "terraform"), []byte("#!/bin/true\n"), 0755))

	license := filepath.Join(s.T().TempDir(), "LICENSE")
	s.Require().NoError(os.WriteFile(license, []byte("MPL-2.0\n"), 0644))

	readme := filepath.Join(s.T().TempDir(), "README.md")
	s.Require().NoError(os.WriteFile(readme, []byte("# terraform-binary-wheel\n"), 0644))

	s.conf = NewReleaseConfig()
	s.conf.Package.Name = "terraform-binary-wheel"
	s.conf.Package.Summary = "wraps the terraform binary"
	s.conf.Package.LicenseFile = license
	s.conf.Package.ReadmeFile = readme

	version, err := wheelwright.NewReleaseVersion("1.5.7-a3")
	s.Require().NoError(err)
	s.version = version
}

func (s *WheelSuite) options(platform string) WheelOptions {
	return WheelOptions{
		Conf:        s.conf,
		Version:     s.version,
		PlatformTag: platform,
		SourceDir:   s.srcDir,
		WorkDir:     s.workDir,
	}
}

func (s *WheelSuite) readEntry(archive, name string) string {
	reader, err := zip.OpenReader(archive)
	s.Require().NoError(err)
	defer reader.Close()

	for _, entry := range reader.File {
		if entry.Name == name {
			in, err := entry.Open()
			s.Require().NoError(err)
			defer in.Close()

			data, err := io.ReadAll(in)
			s.Require().NoError(err)
			return string(data)
		}
	}

	s.Require().FailNowf("missing entry", "archive %s has no entry %s", archive, name)
	return ""
}

func (s *WheelSuite) entryNames(archive string) []string {
	reader, err := zip.OpenReader(archive)
	s.Require().NoError(err)
	defer reader.Close()

	var names []string
	for _, entry := range reader.File {
		names = append(names, entry.Name)
	}
	return names
}

func (s *WheelSuite) TestInvalidOptionsAreRejected() {
	for _, opts := range []WheelOptions{
		{},
		{Conf: s.conf},
		{Conf: s.conf, Version: s.version},
		{Conf: s.conf, Version: s.version, PlatformTag: "win_amd64"},
	} {
		wheel, err := BuildWheel(opts)
		s.Error(err)
		s.Zero(wheel)
	}
}

func (s *WheelSuite) TestWheelFileNameEncodesAllTags() {
	wheel, err := BuildWheel(s.options("win_amd64"))
	s.Require().NoError(err)

	s.Equal("terraform_binary_wheel-1.5.7.a3-py2.py3-none-win_amd64.whl", filepath.Base(wheel))

	stat, err := os.Stat(wheel)
	s.Require().NoError(err)
	s.NotZero(stat.Size())
}

func (s *WheelSuite) TestWheelContainsBinaryAndMetadata() {
	wheel, err := BuildWheel(s.options("manylinux_2_5_x86_64"))
	s.Require().NoError(err)

	names := s.entryNames(wheel)
	s.Contains(names, "terraform_binary_wheel-1.5.7.a3.data/scripts/terraform")
	s.Contains(names, "terraform_binary_wheel-1.5.7.a3.dist-info/METADATA")
	s.Contains(names, "terraform_binary_wheel-1.5.7.a3.dist-info/WHEEL")
	s.Contains(names, "terraform_binary_wheel-1.5.7.a3.dist-info/RECORD")
	s.Contains(names, "terraform_binary_wheel-1.5.7.a3.dist-info/LICENSE")
}

func (s *WheelSuite) TestMetadataCarriesPackageIdentity() {
	wheel, err := BuildWheel(s.options("win32"))
	s.Require().NoError(err)

	metadata := s.readEntry(wheel, "terraform_binary_wheel-1.5.7.a3.dist-info/METADATA")
	s.Contains(metadata, "Metadata-Version: 2.1\n")
	s.Contains(metadata, "Name: terraform-binary-wheel\n")
	s.Contains(metadata, "Version: 1.5.7.a3\n")
	s.Contains(metadata, "Summary: wraps the terraform binary\n")
	s.Contains(metadata, "Description-Content-Type: text/markdown\n")
	s.Contains(metadata, "# terraform-binary-wheel")
}

func (s *WheelSuite) TestWheelMetadataListsOneTagPerCombination() {
	wheel, err := BuildWheel(s.options("macosx_11_0_arm64"))
	s.Require().NoError(err)

	content := s.readEntry(wheel, "terraform_binary_wheel-1.5.7.a3.dist-info/WHEEL")
	s.Contains(content, "Wheel-Version: 1.0\n")
	s.Contains(content, "Root-Is-Purelib: false\n")
	s.Contains(content, "Tag: py2-none-macosx_11_0_arm64\n")
	s.Contains(content, "Tag: py3-none-macosx_11_0_arm64\n")
}

func (s *WheelSuite) TestRecordListsEveryFileWithDigests() {
	wheel, err := BuildWheel(s.options("win_amd64"))
	s.Require().NoError(err)

	record := s.readEntry(wheel, "terraform_binary_wheel-1.5.7.a3.dist-info/RECORD")
	lines := strings.Split(strings.TrimSpace(record), "\n")
	s.Len(lines, 5)

	for _, line := range lines {
		fields := strings.Split(line, ",")
		s.Require().Len(fields, 3)

		if strings.HasSuffix(fields[0], "RECORD") {
			s.Empty(fields[1])
			s.Empty(fields[2])
			continue
		}

		s.True(strings.HasPrefix(fields[1], "sha256="), line)
		s.False(strings.HasSuffix(fields[1], "="), "digest should be unpadded")
		s.NotEmpty(fields[2])
	}
}

func (s *WheelSuite) TestWindowsBinariesAreFoundByExtension() {
	s.Require().NoError(os.Remove(filepath.Join(s.srcDir, "terraform")))
	s.Require().NoError(os.WriteFile(filepath.Join(s.srcDir, "terraform.exe"), []byte("MZ"), 0755))

	wheel, err := BuildWheel(s.options("win_amd64"))
	s.Require().NoError(err)

	s.Contains(s.entryNames(wheel), "terraform_binary_wheel-1.5.7.a3.data/scripts/terraform.exe")
}

func (s *WheelSuite) TestMissingBinaryReturnsError() {
	s.Require().NoError(os.Remove(filepath.Join(s.srcDir, "terraform")))

	wheel, err := BuildWheel(s.options("win_amd64"))
	s.Error(err)
	s.Zero(wheel)
}

func (s *WheelSuite) TestMissingReadmeReturnsError() {
	s.conf.Package.ReadmeFile = filepath.Join(s.T().TempDir(), "README-MISSING.md")

	wheel, err := BuildWheel(s.options("win_amd64"))
	s.Error(err)
	s.Zero(wheel)
}
