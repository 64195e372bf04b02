package share

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateCode(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		code := GenerateCode()
		assert.True(t, ValidCode(code), "generated code %q is malformed", code)
		seen[code] = true
	}
	// 100 draws from a million-code space colliding down to a handful
	// would mean a broken generator.
	assert.Greater(t, len(seen), 90)
}

func TestValidCode(t *testing.T) {
	tcs := []struct {
		code string
		exp  bool
	}{
		{"123456", true},
		{"000000", true},
		{"12345", false},
		{"1234567", false},
		{"12345a", false},
		{"", false},
		{"１２３４５６", false},
	}
	for _, c := range tcs {
		assert.Equal(t, c.exp, ValidCode(c.code), "code %q", c.code)
	}
}
