// Package deployment provides pure functions for deployment planning.
//
// This package contains the functional core of a deployment run: deciding
// how many units to add and building the exact external commands the code
// delivery strategies execute. All functions are pure (no I/O, no side
// effects); the imperative shell (internal/shell/delivery and
// internal/shell/deploy) executes what they return.
//
// # Functions
//
//   - Scaling: Reconcile the running unit count up to a floor (Reconcile)
//   - Commands: Build artifact deploy, git push and ssh-agent commands
//     (ArtifactDeployArgs, GitPushArgs, GitSSHCommand, AgentAddArgs, AgentRemoveArgs)
//
// # Usage
//
//	n := deployment.Reconcile(current, floor)
//	if n > 0 {
//	    session.AddUnits(ctx, app, n)
//	}
package deployment
