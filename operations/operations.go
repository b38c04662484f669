/*
Package operations contains the integration between the core
wheelwright functionality and the user-exposed command line
interface.

The public functions in this package return cli.Command objects that
are registered by the main package. Core business logic lives in the
release and gitrepo packages; these entry points only translate flags
and environment variables into options objects.
*/
package operations

// This file is documentation only.
