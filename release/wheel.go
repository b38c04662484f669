package release

import (
	"archive/zip"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"github.com/pkg/errors"

	"github.com/c0m1c5an5/wheelwright"
)

const wheelFormatVersion = "1.0"

// WheelOptions describes the assembly of a single platform wheel
// from an unpacked upstream archive.
type WheelOptions struct {
	Conf        *ReleaseConfig
	Version     *wheelwright.ReleaseVersion
	PlatformTag string

	// SourceDir holds the unpacked upstream archive; WorkDir
	// receives the wheel tree and the finished .whl file.
	SourceDir string
	WorkDir   string
}

// Validate checks that the options name a buildable wheel.
func (opts *WheelOptions) Validate() error {
	catcher := grip.NewBasicCatcher()

	catcher.NewWhen(opts.Conf == nil, "configuration is not specified")
	catcher.NewWhen(opts.Version == nil, "release version is not specified")
	catcher.NewWhen(opts.PlatformTag == "", "platform tag is not specified")
	catcher.NewWhen(opts.SourceDir == "", "source directory is not specified")
	catcher.NewWhen(opts.WorkDir == "", "working directory is not specified")

	return catcher.Resolve()
}

func (opts *WheelOptions) distName() string {
	return wheelwright.Normalize(opts.Conf.Package.Name)
}

func (opts *WheelOptions) baseName() string {
	return opts.distName() + "-" + opts.Version.Package()
}

func (opts *WheelOptions) wheelName() string {
	return strings.Join([]string{
		opts.baseName(),
		strings.Join(opts.Conf.Package.PythonTags, "."),
		strings.Join(opts.Conf.Package.AbiTags, "."),
		opts.PlatformTag,
	}, "-")
}

// compatibilityTags expands the python and abi tag lists into one
// "py-abi-platform" tag per combination, for the WHEEL file.
func (opts *WheelOptions) compatibilityTags() []string {
	var tags []string
	for _, py := range opts.Conf.Package.PythonTags {
		for _, abi := range opts.Conf.Package.AbiTags {
			tags = append(tags, strings.Join([]string{py, abi, opts.PlatformTag}, "-"))
		}
	}

	return tags
}

// BuildWheel assembles one platform wheel: the upstream binary under
// the data directory's scripts tree, the dist-info metadata, and the
// RECORD manifest, all zipped into a .whl file. It returns the path
// of the finished wheel.
func BuildWheel(opts WheelOptions) (string, error) {
	if err := opts.Validate(); err != nil {
		return "", errors.Wrap(err, "invalid wheel options")
	}

	tree := filepath.Join(opts.WorkDir, opts.wheelName())
	dataDir := filepath.Join(tree, opts.baseName()+".data")
	scriptsDir := filepath.Join(dataDir, "scripts")
	infoDir := filepath.Join(tree, opts.baseName()+".dist-info")

	for _, dir := range []string{tree, dataDir, scriptsDir, infoDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", errors.Wrapf(err, "creating '%s'", dir)
		}
	}

	binary := filepath.Join(opts.SourceDir, opts.Conf.Package.Binary)
	if _, err := os.Stat(binary); os.IsNotExist(err) {
		binary += ".exe"
	}

	if err := copyFile(binary, filepath.Join(scriptsDir, filepath.Base(binary)), 0755); err != nil {
		return "", errors.Wrap(err, "staging upstream binary")
	}

	if license := opts.Conf.Package.LicenseFile; license != "" {
		dest := filepath.Join(infoDir, filepath.Base(license))
		if err := copyFile(license, dest, 0644); err != nil {
			return "", errors.Wrap(err, "staging license file")
		}
	}

	if err := writeWheelMetadata(opts, infoDir); err != nil {
		return "", errors.WithStack(err)
	}

	if err := writeRecord(tree, filepath.Join(infoDir, "RECORD")); err != nil {
		return "", errors.WithStack(err)
	}

	wheelFile := tree + ".whl"
	if err := zipTree(tree, wheelFile); err != nil {
		return "", errors.Wrap(err, "archiving wheel tree")
	}

	grip.Info(message.Fields{
		"op":       "build wheel",
		"platform": opts.PlatformTag,
		"wheel":    filepath.Base(wheelFile),
	})

	return wheelFile, nil
}

// writeWheelMetadata produces the METADATA and WHEEL files in the
// dist-info directory, in the RFC 822 header format that package
// indexes expect.
func writeWheelMetadata(opts WheelOptions, infoDir string) error {
	pkg := opts.Conf.Package

	headers := [][2]string{
		{"Metadata-Version", "2.1"},
		{"Name", pkg.Name},
		{"Version", opts.Version.Package()},
	}
	if pkg.Summary != "" {
		headers = append(headers, [2]string{"Summary", pkg.Summary})
	}
	if pkg.HomePage != "" {
		headers = append(headers, [2]string{"Home-Page", pkg.HomePage})
	}
	if pkg.Author != "" {
		headers = append(headers, [2]string{"Author", pkg.Author})
	}
	if pkg.AuthorEmail != "" {
		headers = append(headers, [2]string{"Author-Email", pkg.AuthorEmail})
	}
	if pkg.LicenseFile != "" {
		headers = append(headers, [2]string{"License-File", filepath.Base(pkg.LicenseFile)})
	}
	for _, classifier := range pkg.Classifiers {
		headers = append(headers, [2]string{"Classifier", classifier})
	}
	if pkg.RequiresPython != "" {
		headers = append(headers, [2]string{"Requires-Python", pkg.RequiresPython})
	}

	var payload []byte
	if pkg.ReadmeFile != "" {
		data, err := os.ReadFile(pkg.ReadmeFile)
		if err != nil {
			return errors.Wrap(err, "reading package description")
		}
		payload = data
		headers = append(headers, [2]string{"Description-Content-Type", "text/markdown"})
	}

	metadata := filepath.Join(infoDir, "METADATA")
	if err := writeMessage(metadata, headers, payload); err != nil {
		return errors.Wrap(err, "writing package metadata")
	}

	wheelHeaders := [][2]string{
		{"Wheel-Version", wheelFormatVersion},
		{"Generator", "wheelwright " + wheelwright.BuildRevision},
		{"Root-Is-Purelib", "false"},
	}
	for _, tag := range opts.compatibilityTags() {
		wheelHeaders = append(wheelHeaders, [2]string{"Tag", tag})
	}

	wheel := filepath.Join(infoDir, "WHEEL")

	return errors.Wrap(writeMessage(wheel, wheelHeaders, nil), "writing wheel metadata")
}

// writeMessage writes an email-style message: ordered headers, a
// blank line, and an optional payload.
func writeMessage(fileName string, headers [][2]string, payload []byte) error {
	file, err := os.Create(fileName)
	if err != nil {
		return errors.Wrapf(err, "creating '%s'", fileName)
	}
	defer file.Close()

	for _, header := range headers {
		if _, err := fmt.Fprintf(file, "%s: %s\n", header[0], header[1]); err != nil {
			return errors.Wrapf(err, "writing '%s'", fileName)
		}
	}

	if _, err := fmt.Fprintln(file); err != nil {
		return errors.Wrapf(err, "writing '%s'", fileName)
	}

	if len(payload) > 0 {
		if _, err := file.Write(payload); err != nil {
			return errors.Wrapf(err, "writing '%s'", fileName)
		}
	}

	return nil
}

// writeRecord walks the wheel tree and produces the RECORD manifest:
// one "path,sha256=<digest>,<length>" row per file, with the RECORD
// row itself carrying empty digest and length fields.
func writeRecord(tree, recordFile string) error {
	var lines []string

	err := filepath.Walk(tree, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return errors.WithStack(err)
		}
		if info.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(tree, p)
		if err != nil {
			return errors.WithStack(err)
		}

		digest, length, err := rehash(p)
		if err != nil {
			return errors.WithStack(err)
		}

		lines = append(lines, fmt.Sprintf("%s,%s,%d", filepath.ToSlash(rel), digest, length))
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "walking wheel tree")
	}

	rel, err := filepath.Rel(tree, recordFile)
	if err != nil {
		return errors.WithStack(err)
	}
	lines = append(lines, filepath.ToSlash(rel)+",,")

	return errors.Wrapf(os.WriteFile(recordFile, []byte(strings.Join(lines, "\n")+"\n"), 0644),
		"writing '%s'", recordFile)
}

// rehash returns the RECORD-format digest ("sha256=" plus the
// unpadded urlsafe base64 of the sha256) and byte length of a file.
func rehash(fileName string) (string, int64, error) {
	file, err := os.Open(fileName)
	if err != nil {
		return "", 0, errors.Wrapf(err, "opening '%s'", fileName)
	}
	defer file.Close()

	hash := sha256.New()
	length, err := io.Copy(hash, file)
	if err != nil {
		return "", 0, errors.Wrapf(err, "hashing '%s'", fileName)
	}

	digest := "sha256=" + base64.RawURLEncoding.EncodeToString(hash.Sum(nil))

	return digest, length, nil
}

func copyFile(src, dest string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return errors.Wrapf(err, "opening '%s'", src)
	}
	defer in.Close()

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return errors.Wrapf(err, "creating '%s'", dest)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return errors.Wrapf(err, "copying '%s' to '%s'", src, dest)
	}

	return errors.Wrapf(out.Close(), "flushing '%s'", dest)
}

// extractZip unpacks a zip archive into a directory.
func extractZip(archive, dest string) error {
	reader, err := zip.OpenReader(archive)
	if err != nil {
		return errors.Wrapf(err, "opening archive '%s'", archive)
	}
	defer reader.Close()

	if err := os.MkdirAll(dest, 0755); err != nil {
		return errors.Wrapf(err, "creating '%s'", dest)
	}

	for _, entry := range reader.File {
		target := filepath.Join(dest, filepath.FromSlash(entry.Name))
		if !strings.HasPrefix(target, filepath.Clean(dest)+string(os.PathSeparator)) {
			return errors.Errorf("archive entry '%s' escapes the extraction root", entry.Name)
		}

		if entry.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0755); err != nil {
				return errors.Wrapf(err, "creating '%s'", target)
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return errors.Wrapf(err, "creating '%s'", filepath.Dir(target))
		}

		in, err := entry.Open()
		if err != nil {
			return errors.Wrapf(err, "opening archive entry '%s'", entry.Name)
		}

		out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, entry.Mode())
		if err != nil {
			in.Close()
			return errors.Wrapf(err, "creating '%s'", target)
		}

		_, err = io.Copy(out, in)
		in.Close()
		if closeErr := out.Close(); err == nil {
			err = closeErr
		}
		if err != nil {
			return errors.Wrapf(err, "extracting '%s'", entry.Name)
		}
	}

	return nil
}

// zipTree archives a directory tree with deflate compression, with
// entry names relative to the tree root.
func zipTree(tree, dest string) error {
	file, err := os.Create(dest)
	if err != nil {
		return errors.Wrapf(err, "creating '%s'", dest)
	}

	writer := zip.NewWriter(file)

	err = filepath.Walk(tree, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return errors.WithStack(err)
		}
		if info.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(tree, p)
		if err != nil {
			return errors.WithStack(err)
		}

		header, err := zip.FileInfoHeader(info)
		if err != nil {
			return errors.WithStack(err)
		}
		header.Name = filepath.ToSlash(rel)
		header.Method = zip.Deflate

		entry, err := writer.CreateHeader(header)
		if err != nil {
			return errors.WithStack(err)
		}

		in, err := os.Open(p)
		if err != nil {
			return errors.Wrapf(err, "opening '%s'", p)
		}
		defer in.Close()

		_, err = io.Copy(entry, in)
		return errors.Wrapf(err, "archiving '%s'", rel)
	})
	if err != nil {
		writer.Close()
		file.Close()
		return errors.WithStack(err)
	}

	if err := writer.Close(); err != nil {
		file.Close()
		return errors.Wrapf(err, "finalizing '%s'", dest)
	}

	return errors.Wrapf(file.Close(), "flushing '%s'", dest)
}
