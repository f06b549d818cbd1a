// Package metadata defines how docsub turns an identifier into bibliographic
// metadata. Concrete lookups live in subpackages; this package holds the
// contract plus the wrappers that bound and throttle any Resolver.
package metadata

import (
	"context"
	"strings"

	"github.com/communalgrowth/docsub/internal/domain"
	"github.com/communalgrowth/docsub/internal/errors"
	"github.com/communalgrowth/docsub/internal/normalize"
)

// Metadata is what a resolver knows about one work.
type Metadata struct {
	Title   string   `json:"title" toml:"title"`
	Authors []string `json:"authors,omitempty" toml:"authors"` // credit order
	ISBN10  string   `json:"isbn10,omitempty" toml:"isbn10"`
	ISBN13  string   `json:"isbn13,omitempty" toml:"isbn13"`
	DOI     string   `json:"doi,omitempty" toml:"doi"`
	ArXiv   string   `json:"arxiv,omitempty" toml:"arxiv"`
}

// Fields returns the identifier slots named by the metadata.
func (m *Metadata) Fields() domain.IdentifierFields {
	return domain.IdentifierFields{ISBN10: m.ISBN10, ISBN13: m.ISBN13, DOI: m.DOI, ArXiv: m.ArXiv}
}

// IsEmpty reports whether the metadata carries nothing usable.
func (m *Metadata) IsEmpty() bool {
	return m == nil || (m.Title == "" && len(m.Authors) == 0 && m.Fields().IsEmpty())
}

// Normalized returns a cleaned copy: text in NFC with collapsed whitespace,
// blank authors dropped, ISBN separators removed.
func (m *Metadata) Normalized() *Metadata {
	return &Metadata{
		Title:   normalize.Title(m.Title),
		Authors: normalize.Names(m.Authors),
		ISBN10:  isbnDigits(m.ISBN10),
		ISBN13:  isbnDigits(m.ISBN13),
		DOI:     strings.TrimSpace(m.DOI),
		ArXiv:   strings.TrimSpace(m.ArXiv),
	}
}

func isbnDigits(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '-' || r == ' ' {
			return -1
		}
		return r
	}, strings.TrimSpace(s))
}

// Resolver looks up metadata for one identifier. A nil result with a nil
// error means the identifier is unknown.
type Resolver interface {
	Lookup(ctx context.Context, kind domain.Kind, value string) (*Metadata, error)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(ctx context.Context, kind domain.Kind, value string) (*Metadata, error)

// Lookup calls f.
func (f ResolverFunc) Lookup(ctx context.Context, kind domain.Kind, value string) (*Metadata, error) {
	return f(ctx, kind, value)
}

// Unavailable is a Resolver that knows nothing. It is used when no catalog is
// configured: already known documents can still be subscribed to.
var Unavailable Resolver = ResolverFunc(func(context.Context, domain.Kind, string) (*Metadata, error) {
	return nil, nil
})

// Result is the outcome of resolving one identifier: either metadata or the
// reason it could not be had. A failed Result means "skip this token".
type Result struct {
	Metadata *Metadata
	Err      error
}

// OK reports whether the lookup produced usable metadata.
func (r Result) OK() bool {
	return r.Err == nil && r.Metadata != nil
}

// Resolve runs one lookup and folds every way it can go wrong into a failed
// Result. TITLE identifiers fail without calling the resolver.
func Resolve(ctx context.Context, r Resolver, id domain.Identifier) Result {
	if !id.Resolvable() {
		return Result{Err: errors.Unresolvablef("%s identifiers are not resolvable", id.Kind)}
	}

	md, err := r.Lookup(ctx, id.Kind, id.Value)
	if err != nil {
		return Result{Err: errors.Wrapf(err, errors.CodeUnresolvable, "lookup %s", id)}
	}
	if md.IsEmpty() {
		return Result{Err: errors.Unresolvablef("could not resolve %s", id)}
	}
	return Result{Metadata: md.Normalized()}
}
