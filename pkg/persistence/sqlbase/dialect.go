package sqlbase

import (
	"strconv"
	"strings"
)

// Dialect captures the differences between the SQL engines the store runs on.
type Dialect struct {
	Name string
	// Numbered placeholders ($1, $2, ...) instead of "?".
	Numbered bool
	// IsUniqueViolation reports whether err is a unique constraint failure.
	IsUniqueViolation func(err error) bool
}

// Rebind rewrites "?" placeholders for dialects that use numbered ones.
func (d Dialect) Rebind(query string) string {
	if !d.Numbered {
		return query
	}

	var (
		b strings.Builder
		n int
	)

	b.Grow(len(query) + 8)

	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))

			continue
		}

		b.WriteRune(r)
	}

	return b.String()
}

// In returns "?, ?, ..." with n placeholders.
func In(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
