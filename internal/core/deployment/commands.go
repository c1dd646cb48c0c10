package deployment

import "strings"

// =============================================================================
// Delivery Command Plans
// =============================================================================

// DefaultBranch is the branch the git delivery pushes to.
const DefaultBranch = "master"

// ArtifactDeployArgs returns the control-plane CLI arguments that upload the
// contents of the working directory as a new deploy of app.
//
// Example:
//
//	ArtifactDeployArgs("web") // returns ["app-deploy", "-a", "web", "."]
func ArtifactDeployArgs(app string) []string {
	return []string{"app-deploy", "-a", app, "."}
}

// GitPushArgs returns the git arguments pushing the working tree's branch to repoURL.
// An empty branch means DefaultBranch.
func GitPushArgs(repoURL, branch string) []string {
	if branch == "" {
		branch = DefaultBranch
	}
	return []string{"push", repoURL, branch}
}

// GitSSHCommand returns the GIT_SSH_COMMAND value that pins the SSH transport
// to one private key and one client configuration file.
//
// Example:
//
//	GitSSHCommand("/keys/id", "/home/u/.ssh/config")
//	// returns "ssh -i '/keys/id' -F '/home/u/.ssh/config'"
func GitSSHCommand(keyPath, sshConfigPath string) string {
	cmd := "ssh -i " + shellQuote(keyPath)
	if sshConfigPath != "" {
		cmd += " -F " + shellQuote(sshConfigPath)
	}
	return cmd
}

// GitEnv returns the environment entries for a git push using GitSSHCommand.
func GitEnv(keyPath, sshConfigPath string) []string {
	return []string{
		"GIT_SSH_COMMAND=" + GitSSHCommand(keyPath, sshConfigPath),
		"GIT_TERMINAL_PROMPT=0",
	}
}

// AgentAddArgs returns the ssh-add arguments registering a key with the agent.
func AgentAddArgs(keyPath string) []string {
	return []string{keyPath}
}

// AgentRemoveArgs returns the ssh-add arguments removing a key from the agent.
func AgentRemoveArgs(keyPath string) []string {
	return []string{"-d", keyPath}
}

// shellQuote wraps s in single quotes for the shell that git uses to run GIT_SSH_COMMAND.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
