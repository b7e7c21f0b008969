// Package common holds small helpers shared by the providers.
package common

import "strings"

// ContainsAnyFold reports whether s contains any of the markers, ignoring
// case. Empty markers never match.
func ContainsAnyFold(s string, markers ...string) bool {
	s = strings.ToUpper(s)
	for _, m := range markers {
		if m != "" && strings.Contains(s, strings.ToUpper(m)) {
			return true
		}
	}
	return false
}
