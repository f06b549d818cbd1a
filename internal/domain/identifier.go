// Package domain contains the core entities of docsub: identifiers,
// documents, authors and subscribers.
package domain

import (
	"fmt"
	"strings"
)

// Kind is the namespace of a document identifier.
type Kind string

const (
	KindISBN10 Kind = "ISBN10"
	KindISBN13 Kind = "ISBN13"
	KindDOI    Kind = "DOI"
	KindArXiv  Kind = "ARXIV"
	// KindTitle is what unparseable text degrades to. It is never resolved.
	KindTitle Kind = "TITLE"
)

// Kinds lists every identifier kind, resolvable ones first.
var Kinds = []Kind{KindISBN10, KindISBN13, KindDOI, KindArXiv, KindTitle}

// String returns the string representation of the kind.
func (k Kind) String() string {
	return string(k)
}

// IsValid checks if the kind is a recognized value.
func (k Kind) IsValid() bool {
	switch k {
	case KindISBN10, KindISBN13, KindDOI, KindArXiv, KindTitle:
		return true
	default:
		return false
	}
}

// Resolvable reports whether identifiers of this kind can be looked up.
func (k Kind) Resolvable() bool {
	switch k {
	case KindISBN10, KindISBN13, KindDOI, KindArXiv:
		return true
	case KindTitle:
		return false
	default:
		panic(fmt.Sprintf("domain: unknown identifier kind %q", string(k)))
	}
}

// IsISBN reports whether k is one of the two ISBN kinds.
func (k Kind) IsISBN() bool {
	return k == KindISBN10 || k == KindISBN13
}

// Sibling returns the other ISBN kind. It is only meaningful for ISBNs.
func (k Kind) Sibling() (Kind, bool) {
	switch k {
	case KindISBN10:
		return KindISBN13, true
	case KindISBN13:
		return KindISBN10, true
	default:
		return "", false
	}
}

// ParseKind converts a case-insensitive name into a Kind.
// "ISBN-13", "isbn13" and "ISBN_13" are all accepted.
func ParseKind(s string) (Kind, error) {
	norm := strings.ToUpper(strings.TrimSpace(s))
	norm = strings.NewReplacer("-", "", "_", "").Replace(norm)
	k := Kind(norm)
	if !k.IsValid() {
		return "", fmt.Errorf("unknown identifier kind %q", s)
	}
	return k, nil
}

// Identifier is a typed, canonical reference to a publication.
type Identifier struct {
	Kind  Kind   `json:"kind"`
	Value string `json:"value"`
}

// String renders the identifier as KIND:value.
func (id Identifier) String() string {
	return string(id.Kind) + ":" + id.Value
}

// Resolvable reports whether the identifier can be looked up.
func (id Identifier) Resolvable() bool {
	return id.Kind.Resolvable()
}
