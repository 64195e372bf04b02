package share

import (
	"math/rand"
	"regexp"
	"strings"
)

const codeLen = 6

var codePattern = regexp.MustCompile(`^[0-9]{6}$`)

// GenerateCode returns a random 6-digit retrieval code. Codes are short
// on purpose so they can be read over the phone; collisions are handled
// by the caller retrying against the record store.
func GenerateCode() string {
	var b strings.Builder
	b.Grow(codeLen)
	for i := 0; i < codeLen; i++ {
		b.WriteByte(byte('0' + rand.Intn(10)))
	}
	return b.String()
}

// ValidCode reports whether s looks like a retrieval code.
func ValidCode(s string) bool {
	return codePattern.MatchString(s)
}
