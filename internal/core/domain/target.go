package domain

import (
	"bufio"
	"strings"
)

// DefaultTargetProtocol is used when a target does not name a protocol.
const DefaultTargetProtocol = "https://"

// DeploymentTarget is the environment the control-plane client talks to.
// It must be registered and selected before any deployment proceeds.
type DeploymentTarget struct {
	Label    string `json:"label" yaml:"label"`
	Protocol string `json:"protocol" yaml:"protocol"`
	Host     string `json:"host" yaml:"host"`
}

// Validate checks the target can be resolved.
func (t DeploymentTarget) Validate() error {
	if strings.TrimSpace(t.Label) == "" {
		return ErrTargetLabelRequired
	}
	if strings.TrimSpace(t.Host) == "" {
		return ErrTargetHostRequired
	}
	return nil
}

// URI resolves the target's API endpoint: protocol, then "<label>-api.<host>".
//
// Example:
//
//	DeploymentTarget{Label: "staging", Host: "example.com"}.URI()
//	// returns "https://staging-api.example.com"
func (t DeploymentTarget) URI() string {
	protocol := t.Protocol
	if protocol == "" {
		protocol = DefaultTargetProtocol
	}
	if !strings.HasSuffix(protocol, "://") {
		protocol = strings.TrimSuffix(protocol, ":") + "://"
	}
	return protocol + t.Label + "-api." + t.Host
}

// =============================================================================
// Target List
// =============================================================================

// TargetEntry is one registered target as reported by the target registry.
type TargetEntry struct {
	Label   string
	URI     string
	Current bool
}

// TargetState is what a registry knows about one target.
type TargetState struct {
	Known   bool
	Current bool
}

// StateOf reports whether label is registered at uri and whether it is the
// selected target. A label registered at a different URI is not known.
func StateOf(entries []TargetEntry, label, uri string) TargetState {
	var state TargetState
	for _, e := range entries {
		if e.Label != label || strings.TrimRight(e.URI, "/") != strings.TrimRight(uri, "/") {
			continue
		}
		state.Known = true
		if e.Current {
			state.Current = true
		}
	}
	return state
}

// ParseTargetList parses the output of the control-plane CLI's target listing.
// Each non-empty line holds a label and a URI, optionally wrapped in
// parentheses; a leading "*" marks the selected target.
//
//	  production (https://production-api.example.com)
//	* staging https://staging-api.example.com
func ParseTargetList(output string) []TargetEntry {
	var entries []TargetEntry
	sc := bufio.NewScanner(strings.NewReader(output))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		current := false
		if strings.HasPrefix(line, "*") {
			current = true
			line = strings.TrimSpace(strings.TrimPrefix(line, "*"))
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		uri := strings.TrimSuffix(strings.TrimPrefix(fields[1], "("), ")")
		entries = append(entries, TargetEntry{
			Label:   fields[0],
			URI:     uri,
			Current: current,
		})
	}
	return entries
}
