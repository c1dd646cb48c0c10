package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

type versionOpts struct {
	*rootOpts
}

func newVersion(parent *rootOpts) *versionOpts {
	return &versionOpts{rootOpts: parent}
}

func (opts *versionOpts) Command() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version and exit",
		Args:  noArgs,
		// Needs no configuration.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(*cobra.Command, []string) error {
			fmt.Fprintf(opts.stdout, "paasdeploy %s (built %s)\n", Version, BuildTime)
			return nil
		},
	}
}
