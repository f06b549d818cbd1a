// Package catalog resolves identifiers from a local TOML file instead of a
// remote bibliographic service.
//
// A catalog file lists one table per work:
//
//	[[document]]
//	title   = "Matilda"
//	authors = ["Roald Dahl"]
//	isbn10  = "0140328726"
//	isbn13  = "978-0140328721"
package catalog

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/communalgrowth/docsub/internal/domain"
	"github.com/communalgrowth/docsub/internal/errors"
	"github.com/communalgrowth/docsub/internal/metadata"
)

type file struct {
	Documents []metadata.Metadata `toml:"document"`
}

// Resolver answers lookups from an in-memory index of catalog entries.
// It is read-only after construction.
type Resolver struct {
	index map[domain.Identifier]*metadata.Metadata
	count int
}

var _ metadata.Resolver = (*Resolver)(nil)

// Load reads a catalog file.
func Load(path string) (*Resolver, error) {
	f, err := os.Open(path) //#nosec G304 -- catalog path comes from configuration
	if err != nil {
		return nil, errors.Wrapf(err, errors.CodeConfiguration, "open catalog")
	}
	defer f.Close()

	r, err := Decode(f)
	if err != nil {
		return nil, errors.Wrapf(err, errors.CodeConfiguration, "catalog %s", path)
	}
	return r, nil
}

// Decode parses a catalog from r.
func Decode(r io.Reader) (*Resolver, error) {
	var doc file
	dec := toml.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	return New(doc.Documents)
}

// New indexes entries by every identifier they carry. Two entries sharing an
// identifier is an error.
func New(entries []metadata.Metadata) (*Resolver, error) {
	r := &Resolver{index: make(map[domain.Identifier]*metadata.Metadata)}
	for i := range entries {
		md := entries[i].Normalized()
		ids := md.Fields().Identifiers()
		if len(ids) == 0 {
			return nil, errors.Validationf("catalog entry %d (%q) has no identifier", i+1, md.Title)
		}
		for _, id := range ids {
			if prev, dup := r.index[id]; dup {
				return nil, errors.Validationf("catalog entry %d (%q) repeats %s from %q", i+1, md.Title, id, prev.Title)
			}
			r.index[id] = md
		}
		r.count++
	}
	return r, nil
}

// Len returns the number of works in the catalog.
func (r *Resolver) Len() int {
	return r.count
}

// Lookup returns a copy of the entry carrying kind:value, or nil.
func (r *Resolver) Lookup(ctx context.Context, kind domain.Kind, value string) (*metadata.Metadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	md, ok := r.index[domain.Identifier{Kind: kind, Value: value}]
	if !ok {
		return nil, nil
	}
	cp := *md
	cp.Authors = append([]string(nil), md.Authors...)
	return &cp, nil
}
