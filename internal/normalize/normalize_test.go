package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"plain", "Matilda", "Matilda"},
		{"collapse spaces", "  The   Art\tof\n Programming ", "The Art of Programming"},
		{"drop nulls", "Dahl\x00", "Dahl"},
		{"drop control", "a\x07b", "ab"},
		{"nfc composes", "Cafe\u0301", "Caf\u00e9"},
		{"only whitespace", " \t\r\n", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Text(tt.input))
		})
	}
}

func TestName_KeepsSpelling(t *testing.T) {
	assert.Equal(t, "Knuth, D.", Name(" Knuth,  D. "))
	assert.NotEqual(t, Name("Donald Knuth"), Name("Knuth, D."))
}

func TestEmail(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"a@example.org", "a@example.org"},
		{"  A@Example.org \n", "A@Example.org"},
		{"<b@example.org>", "b@example.org"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, Email(tt.input))
		})
	}
}

func TestNames(t *testing.T) {
	got := Names([]string{" Roald  Dahl", "", "  ", "Quentin Blake"})
	assert.Equal(t, []string{"Roald Dahl", "Quentin Blake"}, got)
}

func TestLastName(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Roald Dahl", "Dahl"},
		{"Dahl, Roald", "Dahl"},
		{"  Ursula K.  Le\tGuin ", "Guin"},
		{"Plato", "Plato"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, LastName(tt.input))
		})
	}
}

func TestAlphaNum(t *testing.T) {
	assert.Equal(t, "Charlotte's Web 1952", AlphaNum("Charlotte's Web (1952)!"))
	assert.Equal(t, "Café  ", AlphaNum("Café & _"))
	assert.Equal(t, "", AlphaNum("--_--"))
}
