// Package postgres implements the database port over a pgx-backed sql seam.
// Records live in one jsonb table; filters and ordering compile to SQL
package postgres

import (
	"strings"
	"unicode"
)

// ToSnake converts a camelCase field name to snake_case for column use
// (createdAt -> created_at). Already-snake names pass through unchanged
func ToSnake(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 4)
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
