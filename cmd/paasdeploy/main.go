package main

import (
	"errors"
	"fmt"
	"os"
)

// Version information (set by build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// Exit codes. Deployment failures map to their error kind.
const (
	ExitSuccess             = 0
	ExitConfigError         = 1
	ExitDatabaseError       = 2
	ExitAuthenticationError = 3
	ExitControlPlaneError   = 4
	ExitDeliveryError       = 5
	ExitCredentialError     = 6
	ExitUsageError          = 7
)

func main() {
	os.Exit(run(os.Args[1:], newRoot(os.Stdout, os.Stderr)))
}

func run(args []string, root *rootOpts) int {
	cmd := root.Command()
	cmd.SetArgs(args)
	cmd.SetOut(root.stdout)
	cmd.SetErr(root.stderr)

	if sub, err := cmd.ExecuteC(); err != nil {
		fmt.Fprintf(root.stderr, "Error: %v\n", err)
		var uErr usageError
		if errors.As(err, &uErr) {
			fmt.Fprintln(root.stderr)
			fmt.Fprintln(root.stderr, sub.UsageString())
		}
		return exitCode(err)
	}
	return ExitSuccess
}
