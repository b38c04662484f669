package release

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"
)

type BuildSuite struct {
	conf   *ReleaseConfig
	server *httptest.Server
	dir    string
	ctx    context.Context
	suite.Suite
}

func TestBuildSuite(t *testing.T) {
	suite.Run(t, new(BuildSuite))
}

func makeUpstreamArchive(t *testing.T, binary string) []byte {
	buf := &bytes.Buffer{}
	writer := zip.NewWriter(buf)

	entry, err := writer.Create(binary)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := entry.Write([]byte("#!/bin/true\n")); err != nil {
		t.Fatal(err)
	}
	if err := writer.Close(); err != nil {
		t.Fatal(err)
	}

	return buf.Bytes()
}

func (s *BuildSuite) SetupTest() {
	s.ctx = context.Background()
	s.dir = filepath.Join(s.T().TempDir(), "build")

	archive := makeUpstreamArchive(s.T(), "terraform")
	digest := sha256.Sum256(archive)

	// the manifest covers linux but not windows, so the windows
	// platform fails while linux still builds
	sums := fmt.Sprintf("%s  tool_1.5.7_linux_amd64.zip\n", hex.EncodeToString(digest[:]))

	mux := http.NewServeMux()
	mux.HandleFunc("/1.5.7/tool_1.5.7_SHA256SUMS", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, sums)
	})
	mux.HandleFunc("/1.5.7/tool_1.5.7_SHA256SUMS.sig", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "not a real signature")
	})
	mux.HandleFunc("/1.5.7/tool_1.5.7_linux_amd64.zip", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(archive)
	})
	mux.HandleFunc("/1.5.7/tool_1.5.7_windows_amd64.zip", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(archive)
	})
	s.server = httptest.NewServer(mux)

	license := filepath.Join(s.T().TempDir(), "LICENSE")
	s.Require().NoError(os.WriteFile(license, []byte("MPL-2.0\n"), 0644))

	readme := filepath.Join(s.T().TempDir(), "README.md")
	s.Require().NoError(os.WriteFile(readme, []byte("# terraform-binary-wheel\n"), 0644))

	s.conf = NewReleaseConfig()
	s.conf.Package.Name = "terraform-binary-wheel"
	s.conf.Package.LicenseFile = license
	s.conf.Package.ReadmeFile = readme
	s.conf.Services.Keyring = ""
	s.conf.Platforms = map[string]string{
		"manylinux_2_5_x86_64": "linux_amd64",
	}
	s.conf.URLs = URLTemplates{
		Archive:   s.server.URL + "/%[1]s/tool_%[1]s_%[2]s.zip",
		Sums:      s.server.URL + "/%[1]s/tool_%[1]s_SHA256SUMS",
		Signature: s.server.URL + "/%[1]s/tool_%[1]s_SHA256SUMS.sig",
	}
}

func (s *BuildSuite) TearDownTest() {
	s.server.Close()
}

func (s *BuildSuite) TestOptionsValidation() {
	for name, opts := range map[string]BuildOptions{
		"Empty":         {},
		"MissingTag":    {Conf: s.conf},
		"BadTag":        {Conf: s.conf, Tag: "not-sem-ver"},
		"MissingConfig": {Tag: "1.5.7-a3"},
	} {
		s.Error(opts.Validate(), name)
	}

	opts := BuildOptions{Conf: s.conf, Tag: "1.5.7-a3"}
	s.NoError(opts.Validate())
	s.Equal("build", opts.BuildDir)
	s.True(opts.Workers > 0)
}

func (s *BuildSuite) TestBuildProducesOneWheelPerPlatform() {
	wheels, err := BuildWheels(s.ctx, BuildOptions{
		Conf:     s.conf,
		Tag:      "1.5.7-a3",
		BuildDir: s.dir,
		Workers:  2,
	})
	s.Require().NoError(err)
	s.Require().Len(wheels, 1)

	s.Equal("terraform_binary_wheel-1.5.7.a3-py2.py3-none-manylinux_2_5_x86_64.whl",
		filepath.Base(wheels[0]))
	s.FileExists(wheels[0])

	// the finished wheels land in the build directory, where the
	// publish operation expects them
	s.True(strings.HasPrefix(wheels[0], s.dir))
}

func (s *BuildSuite) TestPlatformsSharingOneArchiveBothBuild() {
	s.conf.Platforms["macosx_11_0_arm64"] = "linux_amd64"

	wheels, err := BuildWheels(s.ctx, BuildOptions{
		Conf:     s.conf,
		Tag:      "1.5.7-a3",
		BuildDir: s.dir,
	})
	s.Require().NoError(err)
	s.Len(wheels, 2)
}

func (s *BuildSuite) TestUncoveredPlatformFailsWithoutAbortingTheBatch() {
	s.conf.Platforms["win_amd64"] = "windows_amd64"

	wheels, err := BuildWheels(s.ctx, BuildOptions{
		Conf:     s.conf,
		Tag:      "1.5.7-a3",
		BuildDir: s.dir,
	})
	s.Error(err)
	s.Require().Len(wheels, 1)
	s.Contains(filepath.Base(wheels[0]), "manylinux_2_5_x86_64")
}

func (s *BuildSuite) TestMissingUpstreamVersionAborts() {
	wheels, err := BuildWheels(s.ctx, BuildOptions{
		Conf:     s.conf,
		Tag:      "9.9.9-a1",
		BuildDir: s.dir,
	})
	s.Error(err)
	s.Nil(wheels)
}

func (s *BuildSuite) TestWheelJobAttributes() {
	j := NewWheelJob(s.conf, "1.5.7-a3", "win_amd64", "archive.zip", s.dir)

	s.Equal(wheelJobName, j.Type().Name)
	s.Contains(j.ID(), "1.5.7-a3")
	s.Contains(j.ID(), "win_amd64")
}

func (s *BuildSuite) TestWheelJobReportsBadTags() {
	j := NewWheelJob(s.conf, "bad-tag", "win_amd64", "archive.zip", s.dir)
	j.Run(s.ctx)
	s.Error(j.Error())
}

func (s *BuildSuite) TestWheelJobBuildsFromLocalArchive() {
	archivePath := filepath.Join(s.T().TempDir(), "tool.zip")
	s.Require().NoError(os.WriteFile(archivePath, makeUpstreamArchive(s.T(), "terraform"), 0644))
	s.Require().NoError(os.MkdirAll(s.dir, 0755))

	j := NewWheelJob(s.conf, "1.5.7-a3", "manylinux_2_5_x86_64", archivePath, s.dir)
	j.Run(s.ctx)

	s.Require().NoError(j.Error())

	wheel, ok := j.(*wheelJob)
	s.Require().True(ok)
	s.FileExists(wheel.WheelFile)
}
