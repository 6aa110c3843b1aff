package secrets

import "strings"

// Mask hides all but the first and last four runes of s. Values of eight
// runes or fewer are masked entirely.
func Mask(s string) string {
	r := []rune(s)
	if len(r) <= 8 {
		return strings.Repeat("*", len(r))
	}
	return string(r[:4]) + strings.Repeat("*", len(r)-8) + string(r[len(r)-4:])
}
