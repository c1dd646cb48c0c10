package domain

import "sort"

// EnvVars maps environment variable names to values. Keys are unique and
// application is additive: nothing is ever unset.
type EnvVars map[string]string

// Keys returns the variable names in lexical order, so the control plane
// always receives writes in the same sequence.
func (e EnvVars) Keys() []string {
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
