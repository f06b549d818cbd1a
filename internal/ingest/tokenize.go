package ingest

import "strings"

// DefaultMaxDocIDs is the default for every ingest limit.
const DefaultMaxDocIDs = 20

// Limits bounds how much of a message body is turned into tokens.
type Limits struct {
	MaxLines         int
	MaxTokensPerLine int
	MaxTokens        int
}

// UniformLimits applies n to lines, tokens per line, and tokens overall.
func UniformLimits(n int) Limits {
	if n < 1 {
		n = DefaultMaxDocIDs
	}
	return Limits{MaxLines: n, MaxTokensPerLine: n, MaxTokens: n}
}

// Tokenize splits each line on commas and flattens the pieces in order.
// Pieces are trimmed and empty ones dropped before they count toward a
// limit. Blank lines are skipped and do not count either. Anything past a
// limit is silently dropped.
func Tokenize(lines []string, lim Limits) []string {
	tokens := make([]string, 0, min(lim.MaxTokens, 4*len(lines)))

	seenLines := 0
	for _, line := range lines {
		if len(tokens) >= lim.MaxTokens || seenLines >= lim.MaxLines {
			break
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		seenLines++

		perLine := 0
		for piece := range strings.SplitSeq(line, ",") {
			piece = strings.TrimSpace(piece)
			if piece == "" {
				continue
			}
			if perLine >= lim.MaxTokensPerLine || len(tokens) >= lim.MaxTokens {
				break
			}
			tokens = append(tokens, piece)
			perLine++
		}
	}
	return tokens
}
