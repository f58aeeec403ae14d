// Package placeholder implements the {FIELD} token engine shared by template
// upload (field discovery) and filled-label generation (substitution).
package placeholder

import (
	"regexp"
	"sort"
)

// A token is a brace-delimited run of ASCII letters, digits and underscores.
// No nesting, no escaping.
var tokenPattern = regexp.MustCompile(`\{[A-Za-z0-9_]+\}`)

// Extract returns the sorted unique field names referenced by text.
// A template with zero placeholders is legal and yields an empty slice.
func Extract(text string) []string {
	matches := tokenPattern.FindAllString(text, -1)
	seen := make(map[string]struct{}, len(matches))
	fields := make([]string, 0, len(matches))
	for _, m := range matches {
		name := m[1 : len(m)-1]
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		fields = append(fields, name)
	}
	sort.Strings(fields)
	return fields
}

// Fill substitutes bound field values into text. Substitution is token-exact:
// {ABC} is only ever replaced as the literal token {ABC}. Fields are applied
// longest name first so overlapping-name schemes cannot mangle each other.
// A nil value renders as the empty string. Tokens with no binding are left
// as literal text so a partially filled template stays reprocessable.
func Fill(text string, fields map[string]*string) string {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if len(names[i]) != len(names[j]) {
			return len(names[i]) > len(names[j])
		}
		return names[i] < names[j]
	})
	for _, name := range names {
		value := ""
		if v := fields[name]; v != nil {
			value = *v
		}
		token := regexp.MustCompile(`\{` + regexp.QuoteMeta(name) + `\}`)
		text = token.ReplaceAllLiteralString(text, value)
	}
	return text
}

// Match reports, for each given field name, whether its token occurs in text.
func Match(text string, names []string) map[string]bool {
	matched := make(map[string]bool, len(names))
	for _, name := range names {
		token := regexp.MustCompile(`\{` + regexp.QuoteMeta(name) + `\}`)
		matched[name] = token.MatchString(text)
	}
	return matched
}
