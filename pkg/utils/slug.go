package utils

import (
	"regexp"
	"strings"
)

var (
	nonIdentChars = regexp.MustCompile("[^a-z0-9]+")
	camelBoundary = regexp.MustCompile("([a-z0-9])([A-Z])")
	identPattern  = regexp.MustCompile("^[a-z_][a-z0-9_]*$")
)

// ColumnName turns a Glide column label ("Invoice Date", "customerName")
// into a snake_case relational column name.
func ColumnName(s string) string {
	s = camelBoundary.ReplaceAllString(s, "${1}_${2}")
	s = strings.ToLower(s)
	s = nonIdentChars.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if s != "" && s[0] >= '0' && s[0] <= '9' {
		s = "c_" + s
	}
	return s
}

// IsIdentifier reports whether s is a plain lower-case SQL identifier
func IsIdentifier(s string) bool {
	return len(s) <= 63 && identPattern.MatchString(s)
}
