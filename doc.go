/*
Package wheelwright is a tool for building and publishing Python
wheels that wrap a third-party compiled binary (e.g. the Terraform
CLI,) so that the binary installs from a package index like any other
dependency.

# Architecture and Organization

The wheelwright binary is built from the "cmd/wheelwright" package,
with a command that resembles the following:

	go build -o wheelwright ./cmd/wheelwright

The command line interface uses the urfave/cli package, with the
implementation of entry points in the "operations" package. The core
release logic (release tagging, artifact verification, wheel
assembly, and publishing) lives in the "release" package, and git
interactions are in the "gitrepo" package.
*/
package wheelwright
