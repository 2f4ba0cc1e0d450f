package schema

import (
	"strings"
	"unicode"

	pluralizer "github.com/gertd/go-pluralize"
)

// pluralizeClient is a singleton instance for consistent pluralization behavior.
var pluralizeClient = pluralizer.NewClient()

// TableName converts a singular base name to the table name used for test
// rows: snake_case, pluralized. "ProbeRow" and "probe_row" both map to
// "probe_rows".
func TableName(base string) string {
	snake := toSnakeCase(base)
	return pluralizeClient.Plural(snake)
}

// toSnakeCase converts PascalCase or camelCase to snake_case. Already
// snake_cased input passes through unchanged.
func toSnakeCase(name string) string {
	var b strings.Builder
	b.Grow(len(name) + 4)

	runes := []rune(name)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 && (unicode.IsLower(runes[i-1]) || (i+1 < len(runes) && unicode.IsLower(runes[i+1]))) {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}
