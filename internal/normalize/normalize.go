// Package normalize cleans up free text taken from mail bodies and catalog
// records before it is stored or compared.
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Text returns s in Unicode NFC with control characters removed and runs of
// whitespace collapsed to a single space.
func Text(s string) string {
	if s == "" {
		return ""
	}
	s = norm.NFC.String(s)

	var b strings.Builder
	b.Grow(len(s))
	space := false
	for _, r := range s {
		switch {
		case unicode.IsSpace(r):
			space = true
			continue
		case r == 0 || unicode.IsControl(r) || r == unicode.ReplacementChar:
			continue
		}
		if space && b.Len() > 0 {
			b.WriteByte(' ')
		}
		space = false
		b.WriteRune(r)
	}
	return b.String()
}

// Name normalizes an author name. Names are compared by exact string after
// this step, so "Knuth, D." and "Donald Knuth" stay distinct.
func Name(s string) string {
	return Text(s)
}

// Title normalizes a document title.
func Title(s string) string {
	return Text(s)
}

// Email trims surrounding whitespace and angle brackets. Case is kept: the
// local part of an address is case sensitive.
func Email(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "<")
	s = strings.TrimSuffix(s, ">")
	return strings.TrimSpace(s)
}

// Names normalizes each name and drops empty results, keeping order.
func Names(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n = Name(n); n != "" {
			out = append(out, n)
		}
	}
	return out
}

// LastName returns the family name part of an author name: the text before
// a comma when there is one ("Dahl, Roald"), otherwise the last word.
func LastName(name string) string {
	name = Name(name)
	if before, _, ok := strings.Cut(name, ","); ok {
		return strings.TrimSpace(before)
	}
	if i := strings.LastIndexByte(name, ' '); i >= 0 {
		return name[i+1:]
	}
	return name
}

// AlphaNum removes everything but letters, digits, whitespace and
// apostrophes from s.
func AlphaNum(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), unicode.IsSpace(r), r == '\'':
			return r
		default:
			return -1
		}
	}, s)
}
