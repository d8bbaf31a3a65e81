package board

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVersionComparator_Compare(t *testing.T) {
	cmp := NewVersionComparator("en")

	tests := []struct {
		name string
		a    string
		b    string
		want int // sign only
	}{
		{name: "numeric not lexical", a: "Release 1.2.10", b: "Release 1.2.9", want: 1},
		{name: "major dominates", a: "v2.0.0", b: "v10.0.0", want: -1},
		{name: "minor before patch", a: "1.3.0", b: "1.2.99", want: 1},
		{name: "collation fallback", a: "Beta", b: "Alpha", want: 1},
		{name: "missing pattern sorts as zero", a: "Backlog", b: "0.0.1", want: -1},
		{name: "tie broken by full name", a: "Android 1.0.0", b: "iOS 1.0.0", want: -1},
		{name: "first match wins", a: "2.0.0 hotfix for 9.9.9", b: "3.0.0", want: -1},
		{name: "huge component does not overflow", a: "1.99999999999999999999999999.0", b: "1.2.0", want: 1},
		{name: "leading zeros compare numerically", a: "1.10.0", b: "1.009.0", want: 1},
		{name: "identical", a: "v1.0.0", b: "v1.0.0", want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cmp.Compare(tt.a, tt.b)
			assert.Equal(t, tt.want, sign(got), "Compare(%q, %q) = %d", tt.a, tt.b, got)
			assert.Equal(t, -tt.want, sign(cmp.Compare(tt.b, tt.a)), "antisymmetry")
		})
	}
}

func TestNewVersionComparator_Locales(t *testing.T) {
	for _, locale := range []string{"ko", "ja", "en-US", "", "not a locale!"} {
		t.Run(locale, func(t *testing.T) {
			cmp := NewVersionComparator(locale)
			assert.Positive(t, cmp.Compare("Beta", "Alpha"))
			assert.Negative(t, cmp.Compare("1.0.0", "1.0.1"))
		})
	}
}

func TestCompareDigits(t *testing.T) {
	assert.Equal(t, 0, compareDigits("007", "7"))
	assert.Equal(t, -1, compareDigits("9", "10"))
	assert.Equal(t, 1, compareDigits("123456789012345678901234567890", "99"))
	assert.Equal(t, 0, compareDigits("0", "000"))
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	default:
		return 0
	}
}
