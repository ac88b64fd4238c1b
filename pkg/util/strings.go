package util

import (
    "strconv"
    "strings"
    "unicode"
)

// NormalizeQuery trims the raw search term and title-cases every
// whitespace-delimited token. The normalized form is the identity key for
// sessions and catalog groups, so equal inputs must always normalize to the
// same string.
func NormalizeQuery(s string) string {
    fields := strings.Fields(s)
    for i, f := range fields {
        fields[i] = titleToken(f)
    }
    return strings.Join(fields, " ")
}

func titleToken(tok string) string {
    r := []rune(strings.ToLower(tok))
    if len(r) == 0 {
        return tok
    }
    r[0] = unicode.ToUpper(r[0])
    return string(r)
}

// Slugify lowercases s and joins whitespace-delimited tokens with dashes.
func Slugify(s string) string {
    return strings.Join(strings.Fields(strings.ToLower(s)), "-")
}

// ParseIntDefault parses string to int or returns default if empty/invalid.
func ParseIntDefault(s string, def int) int {
    if s == "" {
        return def
    }
    v, err := strconv.Atoi(s)
    if err != nil {
        return def
    }
    return v
}
