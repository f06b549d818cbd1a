package ingest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name  string
		lines []string
		lim   Limits
		want  []string
	}{
		{
			name:  "one per line",
			lines: []string{"0140328726", "10.1038/248030a0", "1708.05919"},
			lim:   UniformLimits(20),
			want:  []string{"0140328726", "10.1038/248030a0", "1708.05919"},
		},
		{
			name:  "comma separated",
			lines: []string{"0140328726,10.1038/248030a0, 1708.05919"},
			lim:   UniformLimits(20),
			want:  []string{"0140328726", "10.1038/248030a0", "1708.05919"},
		},
		{
			name:  "empty pieces and blank lines dropped",
			lines: []string{" , 0140328726,,", "   ", "", "arXiv:1403.5335 ,"},
			lim:   UniformLimits(20),
			want:  []string{"0140328726", "arXiv:1403.5335"},
		},
		{
			name:  "line limit",
			lines: []string{"a", "b", "c", "d"},
			lim:   Limits{MaxLines: 2, MaxTokensPerLine: 10, MaxTokens: 10},
			want:  []string{"a", "b"},
		},
		{
			name:  "blank lines do not count toward the line limit",
			lines: []string{"", "a", " ", "b", "c"},
			lim:   Limits{MaxLines: 2, MaxTokensPerLine: 10, MaxTokens: 10},
			want:  []string{"a", "b"},
		},
		{
			name:  "per line limit",
			lines: []string{"a,b,c", "d,e,f"},
			lim:   Limits{MaxLines: 10, MaxTokensPerLine: 2, MaxTokens: 10},
			want:  []string{"a", "b", "d", "e"},
		},
		{
			name:  "overall limit",
			lines: []string{"a,b", "c,d", "e,f"},
			lim:   Limits{MaxLines: 10, MaxTokensPerLine: 10, MaxTokens: 3},
			want:  []string{"a", "b", "c"},
		},
		{
			name:  "no lines",
			lines: nil,
			lim:   UniformLimits(20),
			want:  []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Tokenize(tt.lines, tt.lim))
		})
	}
}

func TestTokenize_LongLineIsCapped(t *testing.T) {
	line := strings.Repeat("0140328726,", 1000)

	got := Tokenize([]string{line}, UniformLimits(20))
	assert.Len(t, got, 20)
}

func TestTokenize_ManyLinesAreCapped(t *testing.T) {
	lines := make([]string, 500)
	for i := range lines {
		lines[i] = "a, b, c"
	}

	got := Tokenize(lines, UniformLimits(20))
	assert.Len(t, got, 20)
}

func TestUniformLimits(t *testing.T) {
	assert.Equal(t, Limits{MaxLines: 5, MaxTokensPerLine: 5, MaxTokens: 5}, UniformLimits(5))
	assert.Equal(t, UniformLimits(DefaultMaxDocIDs), UniformLimits(0))
}
