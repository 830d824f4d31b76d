package preprocessor

import (
	"strings"

	"github.com/akam1o/cprep/pkg/lexer"
	"github.com/akam1o/cprep/pkg/token"
)

// assemble renders one expanded token run back to text. Whitespace
// tokens pass through; where two visible tokens ended up adjacent, a
// single space is inserted if omitting it would merge them into a
// different token (PI3 from PI 3, .5 glued onto a number, -- from two
// minus signs).
func assemble(toks []token.Token) string {
	var sb strings.Builder
	var prev *token.Token
	for i := range toks {
		t := toks[i]
		if t.Kind == token.KindPlacemarker || t.Kind == kindPopMarker {
			continue
		}
		if t.Kind == token.KindWhitespace {
			sb.WriteString(t.Text)
			prev = nil
			continue
		}
		if t.Kind == token.KindNewline {
			sb.WriteByte('\n')
			prev = nil
			continue
		}
		if prev != nil && wouldMerge(*prev, t) {
			sb.WriteByte(' ')
		}
		sb.WriteString(t.Text)
		prev = &toks[i]
	}
	return sb.String()
}

// wouldMerge reports whether writing a directly after b's text changes
// the token boundary. The check re-lexes the concatenation: if its
// first token is not exactly a, gluing them would corrupt the stream.
func wouldMerge(a, b token.Token) bool {
	relexed, err := lexer.Tokenize(a.Text+b.Text, "<merge>")
	if err != nil || len(relexed) == 0 {
		// Conservative: unlexable concatenations keep their space
		return true
	}
	return relexed[0].Text != a.Text
}
