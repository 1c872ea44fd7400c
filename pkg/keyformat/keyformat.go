// Package keyformat validates the canonical license key layout:
// five groups of five uppercase alphanumerics joined by hyphens.
package keyformat

import "regexp"

var pattern = regexp.MustCompile(`^[A-Z0-9]{5}(?:-[A-Z0-9]{5}){4}$`)

// Valid reports whether s is a well-formed key
func Valid(s string) bool {
	return pattern.MatchString(s)
}
