package board

import (
	"regexp"
	"strings"
	"sync"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

var versionPattern = regexp.MustCompile(`(\d+)\.(\d+)\.(\d+)`)

// VersionComparator orders version names by their first X.Y.Z number and
// falls back to locale collation of the whole name on ties.
type VersionComparator struct {
	mu       sync.Mutex // collate.Collator is not safe for concurrent use
	collator *collate.Collator
}

// NewVersionComparator builds a comparator collating with the given BCP 47
// locale. An unparsable locale collates with the root order.
func NewVersionComparator(locale string) *VersionComparator {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.Und
	}
	return &VersionComparator{collator: collate.New(tag)}
}

// Compare returns a negative number when a sorts before b, positive when
// after, and zero when they are equivalent.
func (c *VersionComparator) Compare(a, b string) int {
	ta, tb := versionTuple(a), versionTuple(b)
	for i := range ta {
		if r := compareDigits(ta[i], tb[i]); r != 0 {
			return r
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.collator.CompareString(a, b)
}

// versionTuple extracts the X.Y.Z components of name as digit strings.
// Names without the pattern yield 0.0.0.
func versionTuple(name string) [3]string {
	m := versionPattern.FindStringSubmatch(name)
	if m == nil {
		return [3]string{"0", "0", "0"}
	}
	return [3]string{m[1], m[2], m[3]}
}

// compareDigits compares two non-negative decimal strings numerically
// without converting them, so arbitrarily long components cannot overflow.
func compareDigits(a, b string) int {
	a = strings.TrimLeft(a, "0")
	b = strings.TrimLeft(b, "0")
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	return strings.Compare(a, b)
}
