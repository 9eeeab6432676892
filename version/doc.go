// Package version reports build information for intentd and intentctl.
//
// Release builds set the variables with -ldflags:
//
//	go build -ldflags "-X github.com/kbukum/intentflow/version.Version=1.0.0 \
//	    -X github.com/kbukum/intentflow/version.GitCommit=$(git rev-parse --short HEAD)"
//
// Otherwise the commit and build time come from the module's VCS stamp.
package version
