package domain

import "time"

// Document is the canonical record of one bibliographic work. A document may
// be reachable through several identifiers, at most one per kind.
type Document struct {
	CreatedAt time.Time `json:"created_at"`
	Title     string    `json:"title"`
	ISBN10    string    `json:"isbn10,omitempty"`
	ISBN13    string    `json:"isbn13,omitempty"`
	DOI       string    `json:"doi,omitempty"`
	ArXiv     string    `json:"arxiv,omitempty"`
	Authors   []Author  `json:"authors"` // credit order
	ID        int64     `json:"id"`
}

// Author is unique by exact name. "R. Dahl" and "Roald Dahl" are two authors.
type Author struct {
	Name string `json:"name"`
}

// IdentifierFields holds the identifier slots of a document. Empty means unset.
type IdentifierFields struct {
	ISBN10 string `json:"isbn10,omitempty"`
	ISBN13 string `json:"isbn13,omitempty"`
	DOI    string `json:"doi,omitempty"`
	ArXiv  string `json:"arxiv,omitempty"`
}

// Get returns the value stored under kind.
func (f IdentifierFields) Get(kind Kind) string {
	switch kind {
	case KindISBN10:
		return f.ISBN10
	case KindISBN13:
		return f.ISBN13
	case KindDOI:
		return f.DOI
	case KindArXiv:
		return f.ArXiv
	case KindTitle:
		return ""
	default:
		panic("domain: unknown identifier kind " + string(kind))
	}
}

// Set stores value under kind. Setting a title is a no-op.
func (f *IdentifierFields) Set(kind Kind, value string) {
	switch kind {
	case KindISBN10:
		f.ISBN10 = value
	case KindISBN13:
		f.ISBN13 = value
	case KindDOI:
		f.DOI = value
	case KindArXiv:
		f.ArXiv = value
	case KindTitle:
	default:
		panic("domain: unknown identifier kind " + string(kind))
	}
}

// Identifiers returns the set slots as identifiers in display order.
func (f IdentifierFields) Identifiers() []Identifier {
	var out []Identifier
	for _, kind := range []Kind{KindISBN13, KindISBN10, KindDOI, KindArXiv} {
		if v := f.Get(kind); v != "" {
			out = append(out, Identifier{Kind: kind, Value: v})
		}
	}
	return out
}

// IsEmpty reports whether no slot is set.
func (f IdentifierFields) IsEmpty() bool {
	return f == IdentifierFields{}
}

// Fields returns the document's identifier slots.
func (d *Document) Fields() IdentifierFields {
	return IdentifierFields{ISBN10: d.ISBN10, ISBN13: d.ISBN13, DOI: d.DOI, ArXiv: d.ArXiv}
}

// Identifier returns the value stored under kind.
func (d *Document) Identifier(kind Kind) string {
	return d.Fields().Get(kind)
}

// SetIdentifier stores value under kind.
func (d *Document) SetIdentifier(kind Kind, value string) {
	f := d.Fields()
	f.Set(kind, value)
	d.ISBN10, d.ISBN13, d.DOI, d.ArXiv = f.ISBN10, f.ISBN13, f.DOI, f.ArXiv
}

// DisplayID is the label shown for a document in listings:
// ISBN-13, then ISBN-10, then DOI, then arXiv.
func (d *Document) DisplayID() string {
	switch {
	case d.ISBN13 != "":
		return "ISBN-13:" + d.ISBN13
	case d.ISBN10 != "":
		return "ISBN-10:" + d.ISBN10
	case d.DOI != "":
		return "doi:" + d.DOI
	case d.ArXiv != "":
		return "arXiv:" + d.ArXiv
	default:
		return ""
	}
}

// AuthorNames returns the author names in credit order.
func (d *Document) AuthorNames() []string {
	names := make([]string, len(d.Authors))
	for i, a := range d.Authors {
		names[i] = a.Name
	}
	return names
}
