package catalog

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/communalgrowth/docsub/internal/domain"
	"github.com/communalgrowth/docsub/internal/errors"
	"github.com/communalgrowth/docsub/internal/metadata"
)

const sample = `
[[document]]
title = "Matilda"
authors = ["Roald Dahl", "Quentin  Blake"]
isbn10 = "0140328726"
isbn13 = "978-0140328721"

[[document]]
title = "Unitary and Hermitian matrices"
authors = ["A. Author"]
arxiv = "1403.5335"
doi = "10.1103/PhysRevD.13.191"
`

func TestDecode_IndexesEveryIdentifier(t *testing.T) {
	r, err := Decode(strings.NewReader(sample))
	require.NoError(t, err)
	assert.Equal(t, 2, r.Len())

	tests := []struct {
		kind  domain.Kind
		value string
		title string
	}{
		{domain.KindISBN10, "0140328726", "Matilda"},
		{domain.KindISBN13, "9780140328721", "Matilda"},
		{domain.KindArXiv, "1403.5335", "Unitary and Hermitian matrices"},
		{domain.KindDOI, "10.1103/PhysRevD.13.191", "Unitary and Hermitian matrices"},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			md, err := r.Lookup(context.Background(), tt.kind, tt.value)
			require.NoError(t, err)
			require.NotNil(t, md)
			assert.Equal(t, tt.title, md.Title)
		})
	}
}

func TestLookup_Unknown(t *testing.T) {
	r, err := Decode(strings.NewReader(sample))
	require.NoError(t, err)

	md, err := r.Lookup(context.Background(), domain.KindISBN10, "0000000000")
	require.NoError(t, err)
	assert.Nil(t, md)

	res := metadata.Resolve(context.Background(), r, domain.Identifier{Kind: domain.KindISBN10, Value: "0000000000"})
	assert.False(t, res.OK())
}

func TestLookup_ReturnsCopy(t *testing.T) {
	r, err := Decode(strings.NewReader(sample))
	require.NoError(t, err)

	md, err := r.Lookup(context.Background(), domain.KindISBN10, "0140328726")
	require.NoError(t, err)
	assert.Equal(t, []string{"Roald Dahl", "Quentin Blake"}, md.Authors)
	md.Authors[0] = "mutated"

	again, err := r.Lookup(context.Background(), domain.KindISBN10, "0140328726")
	require.NoError(t, err)
	assert.Equal(t, "Roald Dahl", again.Authors[0])
}

func TestNew_RejectsDuplicates(t *testing.T) {
	_, err := New([]metadata.Metadata{
		{Title: "A", ISBN10: "0140328726"},
		{Title: "B", ISBN10: "0-14-032872-6"},
	})
	assert.ErrorIs(t, err, errors.ErrValidation)
}

func TestNew_RejectsEntryWithoutIdentifier(t *testing.T) {
	_, err := New([]metadata.Metadata{{Title: "Nameless"}})
	assert.ErrorIs(t, err, errors.ErrValidation)
}

func TestDecode_UnknownField(t *testing.T) {
	_, err := Decode(strings.NewReader("[[document]]\ntitle = \"x\"\nissn = \"1234-5678\"\n"))
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.toml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))

	r, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, r.Len())

	_, err = Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.ErrorIs(t, err, errors.ErrConfiguration)
}
