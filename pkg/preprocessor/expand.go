package preprocessor

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/akam1o/cprep/pkg/errors"
	"github.com/akam1o/cprep/pkg/lexer"
	"github.com/akam1o/cprep/pkg/macro"
	"github.com/akam1o/cprep/pkg/token"
)

// Internal token kinds that never leave the engine
const (
	// kindPopMarker marks the end of a macro replacement in the work
	// list; reaching it closes one level of the expansion context
	kindPopMarker token.Kind = -1
	// kindPasteOp is a ## operator originating from a macro body.
	// A ## arriving through an argument is ordinary text and must not
	// paste, so the two are distinguished by kind.
	kindPasteOp token.Kind = -2
)

// expander carries the expansion context for one top-level expansion:
// the depth counter that backs RecursionLimit. Hide sets stop provable
// self-reference; the counter stops indirect chains too long to be
// worth proving anything about.
type expander struct {
	p     *Preprocessor
	depth int
}

// expand rescans one directive-free token run, substituting every
// eligible macro invocation
func (p *Preprocessor) expand(line []token.Token) ([]token.Token, error) {
	e := &expander{p: p}
	return e.scan(line)
}

// scan is the rescan loop. Replacement tokens are spliced in front of
// the remaining input, so a replacement's tail can combine with the
// tokens that follow the invocation (adjacent-macro composition).
func (e *expander) scan(input []token.Token) ([]token.Token, error) {
	out := make([]token.Token, 0, len(input))
	work := make([]token.Token, len(input))
	copy(work, input)

	for len(work) > 0 {
		t := work[0]

		if t.Kind == kindPopMarker {
			e.depth--
			work = work[1:]
			continue
		}
		if t.Kind == token.KindPlacemarker {
			work = work[1:]
			continue
		}
		if t.Kind != token.KindIdentifier || t.Hidden(t.Text) {
			out = append(out, t)
			work = work[1:]
			continue
		}

		m := e.p.table.Lookup(t.Text)
		if m == nil {
			out = append(out, t)
			work = work[1:]
			continue
		}
		if m.Dynamic {
			out = append(out, e.p.dynamicToken(t))
			work = work[1:]
			continue
		}

		if !m.FunctionLike {
			if err := e.enter(); err != nil {
				return nil, err
			}
			body, err := e.objectReplacement(m, t)
			if err != nil {
				return nil, err
			}
			work = splice(body, work[1:])
			continue
		}

		// A function-like macro name not followed by ( stays as is
		open := 1
		for open < len(work) && (work[open].Blank() || work[open].Kind == kindPopMarker) {
			open++
		}
		if open >= len(work) || !work[open].Is("(") {
			out = append(out, t)
			work = work[1:]
			continue
		}

		args, closeTok, next, err := parseArgs(work, open, m.Name)
		if err != nil {
			return nil, err
		}
		// Markers consumed along with the invocation still close
		// their expansion levels
		for _, w := range work[1:next] {
			if w.Kind == kindPopMarker {
				e.depth--
			}
		}

		args, err = normalizeArgs(m, args)
		if err != nil {
			return nil, err
		}

		if err := e.enter(); err != nil {
			return nil, err
		}
		subst, err := e.substitute(m, t, closeTok, args)
		if err != nil {
			return nil, err
		}
		work = splice(subst, work[next:])
	}
	return out, nil
}

// enter opens one expansion level and enforces the recursion limit
func (e *expander) enter() error {
	e.depth++
	if e.depth > e.p.cfg.RecursionLimit {
		return errors.RecursionLimit("macro expansion", e.p.cfg.RecursionLimit)
	}
	return nil
}

// splice builds replacement + pop marker + rest
func splice(replacement, rest []token.Token) []token.Token {
	out := make([]token.Token, 0, len(replacement)+1+len(rest))
	out = append(out, replacement...)
	out = append(out, token.Token{Kind: kindPopMarker})
	out = append(out, rest...)
	return out
}

// objectReplacement prepares an object-like macro's body: body ## is
// pasted, and every produced token is hidden for the macro's name on
// top of the invoking token's hide set
func (e *expander) objectReplacement(m *macro.Macro, invocation token.Token) ([]token.Token, error) {
	body := markPasteOps(m.Body)
	body, err := applyPaste(body)
	if err != nil {
		return nil, err
	}
	hide := invocation.Hide.With(m.Name)
	out := make([]token.Token, len(body))
	for i, bt := range body {
		out[i] = bt.WithHide(bt.Hide.Union(hide))
	}
	return out, nil
}

// parseArgs collects the argument lists of a function-like invocation.
// work[open] is the opening paren. Arguments are split on top-level
// commas only; commas inside nested parentheses (or inside literals,
// which are single tokens already) do not separate. Returns the split
// arguments, the closing paren token, and the index just past it.
func parseArgs(work []token.Token, open int, name string) ([][]token.Token, token.Token, int, error) {
	var args [][]token.Token
	var cur []token.Token
	depth := 1
	for i := open + 1; i < len(work); i++ {
		t := work[i]
		if t.Kind == kindPopMarker {
			continue
		}
		switch {
		case t.Is("("):
			depth++
			cur = append(cur, t)
		case t.Is(")"):
			depth--
			if depth == 0 {
				args = append(args, trimBlank(cur))
				return args, t, i + 1, nil
			}
			cur = append(cur, t)
		case t.Is(",") && depth == 1:
			args = append(args, trimBlank(cur))
			cur = nil
		default:
			cur = append(cur, t)
		}
	}
	return nil, token.Token{}, 0,
		errors.Directive(fmt.Sprintf("unterminated argument list for macro %s", name))
}

// normalizeArgs applies the () empty-invocation rule and validates the
// argument count against the parameter list
func normalizeArgs(m *macro.Macro, args [][]token.Token) ([][]token.Token, error) {
	if len(args) == 1 && len(args[0]) == 0 && len(m.Params) == 0 && !m.Variadic {
		args = nil
	}
	want, got := len(m.Params), len(args)
	if m.Variadic {
		if got < want {
			return nil, errors.ArgMismatch(m.Name, want, got, true)
		}
	} else if got != want {
		return nil, errors.ArgMismatch(m.Name, want, got, false)
	}
	return args, nil
}

// substitute builds the replacement for one function-like invocation:
// stringification on raw arguments, parameter substitution (raw next
// to ##, fully expanded otherwise), then pasting, then hide-set
// tagging with hide(name) intersected with hide(close-paren), plus
// the macro's name.
func (e *expander) substitute(m *macro.Macro, invocation, closeParen token.Token,
	args [][]token.Token) ([]token.Token, error) {

	body := markPasteOps(m.Body)
	var out []token.Token

	for i := 0; i < len(body); i++ {
		bt := body[i]

		// # param stringifies the raw argument
		if bt.Is("#") {
			j := nextSolid(body, i+1)
			if j < 0 || body[j].Kind != token.KindIdentifier {
				return nil, errors.Directive(
					fmt.Sprintf("# in macro %s is not followed by a parameter", m.Name))
			}
			argToks, isParam := e.argFor(m, body[j].Text, args)
			if !isParam {
				return nil, errors.Directive(
					fmt.Sprintf("# in macro %s is not followed by a parameter", m.Name))
			}
			out = append(out, token.Token{
				Kind: token.KindString,
				Text: stringify(argToks),
				Line: bt.Line,
				Col:  bt.Col,
			})
			i = j
			continue
		}

		if bt.Kind == token.KindIdentifier {
			if argToks, isParam := e.argFor(m, bt.Text, args); isParam {
				if adjacentToPaste(body, i) {
					// Raw operand; an empty argument leaves a
					// placemarker for the paste pass
					if len(argToks) == 0 {
						out = append(out, token.Token{Kind: token.KindPlacemarker})
					} else {
						out = append(out, argToks...)
					}
				} else {
					expanded, err := e.expandArg(argToks)
					if err != nil {
						return nil, err
					}
					out = append(out, expanded...)
				}
				continue
			}
		}

		out = append(out, bt)
	}

	out, err := applyPaste(out)
	if err != nil {
		return nil, err
	}

	combined := invocation.Hide.Intersect(closeParen.Hide).With(m.Name)
	for i, t := range out {
		out[i] = t.WithHide(t.Hide.Union(combined))
	}
	return out, nil
}

// argFor resolves a body identifier to its argument token run. The
// variadic parameter expands to the trailing arguments rejoined with
// commas.
func (e *expander) argFor(m *macro.Macro, name string, args [][]token.Token) ([]token.Token, bool) {
	for i, p := range m.Params {
		if p == name {
			return args[i], true
		}
	}
	if m.Variadic && name == m.VariadicName {
		var out []token.Token
		for i := len(m.Params); i < len(args); i++ {
			if i > len(m.Params) {
				out = append(out, token.Token{Kind: token.KindPunct, Text: ","})
			}
			out = append(out, args[i]...)
		}
		return out, true
	}
	return nil, false
}

// expandArg macro-expands one argument in isolation. Per the expansion
// rules the argument starts over with empty hide sets; the invoking
// macro's name is reattached afterwards by the caller's hide-set pass.
func (e *expander) expandArg(arg []token.Token) ([]token.Token, error) {
	bare := make([]token.Token, len(arg))
	for i, t := range arg {
		bare[i] = t.WithHide(nil)
	}
	nested := &expander{p: e.p, depth: e.depth}
	return nested.scan(bare)
}

// markPasteOps converts body-origin ## punctuators into paste
// operators so they stay distinguishable from ## tokens that arrive
// through arguments
func markPasteOps(body []token.Token) []token.Token {
	out := make([]token.Token, len(body))
	for i, t := range body {
		if t.Is("##") {
			t.Kind = kindPasteOp
		}
		out[i] = t
	}
	return out
}

// applyPaste resolves every paste operator by concatenating its two
// neighbor tokens and re-lexing the result as a single token
func applyPaste(toks []token.Token) ([]token.Token, error) {
	hasPaste := false
	for _, t := range toks {
		if t.Kind == kindPasteOp {
			hasPaste = true
			break
		}
	}
	if !hasPaste {
		return toks, nil
	}

	var out []token.Token
	for i := 0; i < len(toks); i++ {
		t := toks[i]
		if t.Kind != kindPasteOp {
			out = append(out, t)
			continue
		}

		// Strip whitespace back to the left operand
		for len(out) > 0 && out[len(out)-1].Kind == token.KindWhitespace {
			out = out[:len(out)-1]
		}
		j := i + 1
		for j < len(toks) && toks[j].Kind == token.KindWhitespace {
			j++
		}
		if len(out) == 0 || j >= len(toks) || toks[j].Kind == kindPasteOp {
			return nil, errors.Paste(lastText(out), nextText(toks, j))
		}

		lhs := out[len(out)-1]
		rhs := toks[j]
		pasted, err := pasteTokens(lhs, rhs)
		if err != nil {
			return nil, err
		}
		out[len(out)-1] = pasted
		i = j
	}
	return out, nil
}

// pasteTokens concatenates two tokens into one. Placemarkers vanish
// into their partner.
func pasteTokens(lhs, rhs token.Token) (token.Token, error) {
	if lhs.Kind == token.KindPlacemarker {
		return rhs, nil
	}
	if rhs.Kind == token.KindPlacemarker {
		return lhs, nil
	}

	text := lhs.Text + rhs.Text
	relexed, err := lexer.Tokenize(text, "<paste>")
	if err != nil || len(relexed) != 1 {
		return token.Token{}, errors.Paste(lhs.Text, rhs.Text)
	}
	return token.Token{
		Kind: relexed[0].Kind,
		Text: relexed[0].Text,
		Line: lhs.Line,
		Col:  lhs.Col,
		Hide: lhs.Hide.Intersect(rhs.Hide),
	}, nil
}

// stringify renders a raw argument token run as one string literal:
// whitespace runs collapse to a single space, ends are trimmed, and
// embedded quotes and backslashes are escaped
func stringify(arg []token.Token) string {
	var sb strings.Builder
	sb.WriteByte('"')
	pendingSpace := false
	wrote := false
	for _, t := range arg {
		if t.Blank() {
			pendingSpace = wrote
			continue
		}
		if pendingSpace {
			sb.WriteByte(' ')
			pendingSpace = false
		}
		for _, c := range t.Text {
			if c == '"' || c == '\\' {
				sb.WriteByte('\\')
			}
			sb.WriteRune(c)
		}
		wrote = true
	}
	sb.WriteByte('"')
	return sb.String()
}

// adjacentToPaste reports whether body[i] is an operand of a paste
// operator in the original body
func adjacentToPaste(body []token.Token, i int) bool {
	if j := nextSolid(body, i+1); j >= 0 && body[j].Kind == kindPasteOp {
		return true
	}
	if j := prevSolid(body, i-1); j >= 0 && body[j].Kind == kindPasteOp {
		return true
	}
	return false
}

func nextSolid(toks []token.Token, from int) int {
	for i := from; i < len(toks); i++ {
		if !toks[i].Blank() {
			return i
		}
	}
	return -1
}

func prevSolid(toks []token.Token, from int) int {
	for i := from; i >= 0; i-- {
		if !toks[i].Blank() {
			return i
		}
	}
	return -1
}

func lastText(toks []token.Token) string {
	if len(toks) == 0 {
		return ""
	}
	return toks[len(toks)-1].Text
}

func nextText(toks []token.Token, i int) string {
	if i >= len(toks) {
		return ""
	}
	return toks[i].Text
}

// dynamicToken computes the replacement for __LINE__, __FILE__,
// __DATE__ and __TIME__ at the point of use
func (p *Preprocessor) dynamicToken(t token.Token) token.Token {
	switch t.Text {
	case "__LINE__":
		return token.Token{
			Kind: token.KindNumber,
			Text: strconv.Itoa(p.reportedLine(t.Line)),
			Line: t.Line, Col: t.Col,
		}
	case "__FILE__":
		return token.Token{
			Kind: token.KindString,
			Text: strconv.Quote(p.reportedFile()),
			Line: t.Line, Col: t.Col,
		}
	case "__DATE__":
		return token.Token{
			Kind: token.KindString,
			Text: `"` + formatDate(time.Now()) + `"`,
			Line: t.Line, Col: t.Col,
		}
	default: // __TIME__
		return token.Token{
			Kind: token.KindString,
			Text: `"` + formatTime(time.Now()) + `"`,
			Line: t.Line, Col: t.Col,
		}
	}
}
