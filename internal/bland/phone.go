package bland

import (
	"regexp"
	"strings"
)

var phonePattern = regexp.MustCompile(`^\+?[1-9]\d{9,14}$`)

// NormalizePhone strips every non-digit from raw, keeping a leading '+'.
// Applying it twice yields the same result.
func NormalizePhone(raw string) string {
	raw = strings.TrimSpace(raw)
	plus := strings.HasPrefix(raw, "+")
	var b strings.Builder
	b.Grow(len(raw))
	if plus {
		b.WriteByte('+')
	}
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ValidPhone reports whether raw, reduced to its digits, is a dialable
// 10 to 15 digit number that does not start with zero.
func ValidPhone(raw string) bool {
	return phonePattern.MatchString(strings.TrimPrefix(NormalizePhone(raw), "+"))
}
