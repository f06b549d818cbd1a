// Package idparser classifies free-text tokens from e-mail bodies into typed
// document identifiers.
//
// The grammar has three productions, tried in order: ISBN, arXiv, DOI. The
// first one that consumes the whole token wins. When none does, a token that
// contains a slash is taken verbatim as a DOI and anything else becomes a
// title. Single spaces between terminals are ignored.
package idparser

import (
	"strings"

	"github.com/communalgrowth/docsub/internal/domain"
)

// Classify returns the identifier denoted by token. It never fails; the
// worst case is a TITLE carrying the trimmed token.
func Classify(token string) domain.Identifier {
	s := strings.TrimSpace(token)
	g := loadGrammar()

	for _, production := range []func(*cursor) (domain.Identifier, bool){
		parseISBN,
		parseArXiv,
		parseDOI,
	} {
		c := &cursor{g: g, src: s}
		if id, ok := production(c); ok && c.atEnd() {
			return id
		}
	}

	if strings.Contains(s, "/") {
		return domain.Identifier{Kind: domain.KindDOI, Value: s}
	}
	return domain.Identifier{Kind: domain.KindTitle, Value: s}
}

// ClassifyAll classifies each token, keeping order.
func ClassifyAll(tokens []string) []domain.Identifier {
	ids := make([]domain.Identifier, len(tokens))
	for i, tok := range tokens {
		ids[i] = Classify(tok)
	}
	return ids
}

// cursor walks a token left to right. It only moves forward.
type cursor struct {
	g   *grammar
	src string
	pos int
}

func (c *cursor) skipSpaces() {
	for c.pos < len(c.src) && c.src[c.pos] == ' ' {
		c.pos++
	}
}

// accept consumes terminal t after any spaces and returns its text.
func (c *cursor) accept(t terminal) (string, bool) {
	c.skipSpaces()
	return c.acceptAdjacent(t)
}

// acceptAdjacent consumes terminal t only if it starts right at the cursor.
func (c *cursor) acceptAdjacent(t terminal) (string, bool) {
	n := c.g.match(t, c.src[c.pos:])
	if n < 0 {
		return "", false
	}
	text := c.src[c.pos : c.pos+n]
	c.pos += n
	return text, true
}

func (c *cursor) atEnd() bool {
	c.skipSpaces()
	return c.pos == len(c.src)
}

// isbn := ISBN_LITERAL ISBN_KIND? ":"? isbn_code | isbn_code
func parseISBN(c *cursor) (domain.Identifier, bool) {
	if _, ok := c.accept(tISBNLiteral); ok {
		c.acceptAdjacent(tISBNKind)
		c.accept(tColon)
	}

	digits, ok := parseISBNCode(c)
	if !ok {
		return domain.Identifier{}, false
	}
	switch len(digits) {
	case 10:
		return domain.Identifier{Kind: domain.KindISBN10, Value: digits}, true
	case 13:
		return domain.Identifier{Kind: domain.KindISBN13, Value: digits}, true
	default:
		return domain.Identifier{}, false
	}
}

// isbn_code := INT ( "-"? INT )*
func parseISBNCode(c *cursor) (string, bool) {
	first, ok := c.accept(tInt)
	if !ok {
		return "", false
	}
	var b strings.Builder
	b.WriteString(first)
	for {
		if _, ok := c.accept(tHyphen); ok {
			n, ok := c.accept(tInt)
			if !ok {
				return "", false
			}
			b.WriteString(n)
			continue
		}
		n, ok := c.accept(tInt)
		if !ok {
			return b.String(), true
		}
		b.WriteString(n)
	}
}

// arxiv := HTTP? WWW? (ARXIV_HOST | ARXIV_LITERAL) arxiv_code ARXIV_CATEGORY? "/"?
func parseArXiv(c *cursor) (domain.Identifier, bool) {
	c.accept(tHTTP)
	c.accept(tWWW)
	if _, ok := c.accept(tArXivHost); !ok {
		if _, ok := c.accept(tArXivLiteral); !ok {
			return domain.Identifier{}, false
		}
	}

	code, ok := parseArXivCode(c)
	if !ok {
		return domain.Identifier{}, false
	}
	c.accept(tArXivCategory)
	c.accept(tSlash)
	return domain.Identifier{Kind: domain.KindArXiv, Value: code}, true
}

// arxiv_code := INT4 "." INT4_5 ARXIV_VERSION?
func parseArXivCode(c *cursor) (string, bool) {
	yymm, ok := c.accept(tInt)
	if !ok || len(yymm) != 4 {
		return "", false
	}
	if _, ok := c.accept(tDot); !ok {
		return "", false
	}
	number, ok := c.accept(tInt)
	if !ok || len(number) < 4 || len(number) > 5 {
		return "", false
	}
	c.accept(tArXivVersion)
	return yymm + "." + number, true
}

// doi := (DOI_LITERAL | HTTP? WWW? DOI_HOST)? doi_name "/"?
//
// Once HTTP or WWW has been read the host is mandatory.
func parseDOI(c *cursor) (domain.Identifier, bool) {
	if _, ok := c.accept(tDOILiteral); !ok {
		_, http := c.accept(tHTTP)
		_, www := c.accept(tWWW)
		if _, ok := c.accept(tDOIHost); !ok && (http || www) {
			return domain.Identifier{}, false
		}
	}

	name, ok := parseDOIName(c)
	if !ok {
		return domain.Identifier{}, false
	}
	c.accept(tSlash)
	return domain.Identifier{Kind: domain.KindDOI, Value: name}, true
}

// doi_name := DOI_SEGMENT "/" DOI_SEGMENT
func parseDOIName(c *cursor) (string, bool) {
	prefix, ok := c.accept(tDOISegment)
	if !ok {
		return "", false
	}
	if _, ok := c.accept(tSlash); !ok {
		return "", false
	}
	suffix, ok := c.accept(tDOISegment)
	if !ok {
		return "", false
	}
	return prefix + "/" + suffix, true
}
