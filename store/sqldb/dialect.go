package sqldb

import (
	"strconv"
	"strings"
)

// Dialect is everything the shared Store needs to know about one SQL
// engine. Queries are written with ? placeholders and rebound.
type Dialect interface {
	// Name identifies the engine in logs ("sqlite", "postgres").
	Name() string

	// Rebind rewrites ? placeholders into the engine's own syntax.
	Rebind(query string) string

	// Schema is the idempotent DDL for all tables.
	Schema() string

	// ProbeQuery returns one integer row: non-zero when rent_payments exists.
	ProbeQuery() string

	// IsMissingTable reports whether err means a table does not exist.
	IsMissingTable(err error) bool

	// IsUniqueViolation reports whether err is a unique constraint failure.
	IsUniqueViolation(err error) bool
}

// RebindQuestion leaves ? placeholders unchanged.
func RebindQuestion(query string) string { return query }

// RebindDollar rewrites ? placeholders into $1, $2, ... Question marks
// inside single-quoted literals are kept.
func RebindDollar(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	inQuote := false
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case c == '\'':
			inQuote = !inQuote
			b.WriteByte(c)
		case c == '?' && !inQuote:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
