package idparser

import (
	"regexp"
	"sync"
)

// terminal names one lexical element of the identifier grammar.
type terminal int

const (
	tISBNLiteral terminal = iota
	tISBNKind
	tInt
	tHyphen
	tColon
	tSlash
	tDot
	tHTTP
	tWWW
	tArXivHost
	tArXivLiteral
	tArXivCategory
	tArXivVersion
	tDOILiteral
	tDOIHost
	tDOISegment
	numTerminals
)

// terminalPatterns are matched at the cursor only, never searched for.
var terminalPatterns = [numTerminals]string{
	tISBNLiteral:   `(?i)isbn`,
	tISBNKind:      `[-_]?(?:10|13)[ :]`,
	tInt:           `[0-9]+`,
	tHyphen:        `-`,
	tColon:         `:`,
	tSlash:         `/`,
	tDot:           `\.`,
	tHTTP:          `(?i)https?://`,
	tWWW:           `(?i)www\.`,
	tArXivHost:     `(?i)arxiv\.org/(?:abs|pdf)/`,
	tArXivLiteral:  `(?i)arxiv:`,
	tArXivCategory: `\[\w+(?:[-.]\w+)*\]`,
	tArXivVersion:  `[vV][0-9]+`,
	tDOILiteral:    `(?i)doi:`,
	tDOIHost:       `(?i)doi\.org/`,
	tDOISegment:    `[A-Za-z0-9]+(?:[.-][A-Za-z0-9]+)*`,
}

// grammar is the compiled terminal table. It is never modified after
// construction, so any number of goroutines may share it.
type grammar struct {
	terms [numTerminals]*regexp.Regexp
}

var loadGrammar = sync.OnceValue(func() *grammar {
	g := &grammar{}
	for t, pattern := range terminalPatterns {
		g.terms[t] = regexp.MustCompile(`^(?:` + pattern + `)`)
	}
	return g
})

// match returns the length of terminal t at the start of s, or -1.
func (g *grammar) match(t terminal, s string) int {
	loc := g.terms[t].FindStringIndex(s)
	if loc == nil || loc[1] == 0 {
		return -1
	}
	return loc[1]
}
