package preprocessor

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/akam1o/cprep/pkg/errors"
	"github.com/akam1o/cprep/pkg/eval"
	"github.com/akam1o/cprep/pkg/include"
	"github.com/akam1o/cprep/pkg/lexer"
	"github.com/akam1o/cprep/pkg/macro"
	"github.com/akam1o/cprep/pkg/token"
)

// handleDirective dispatches one #-line. Conditional directives are
// processed even inside inactive branches so nesting stays balanced;
// everything else is skipped there.
func (p *Preprocessor) handleDirective(rest []token.Token, physLine int, out *strings.Builder) error {
	kwIdx := nextSolid(rest, 0)
	if kwIdx < 0 {
		// The null directive: a lone #
		return nil
	}
	kw := rest[kwIdx]
	if kw.Kind != token.KindIdentifier {
		if !p.active() {
			return nil
		}
		return errors.Directive(fmt.Sprintf("invalid directive #%s", kw.Text))
	}
	args := rest[kwIdx+1:]

	switch kw.Text {
	case "define":
		if !p.active() {
			return nil
		}
		return p.handleDefine(args, physLine)

	case "undef":
		if !p.active() {
			return nil
		}
		return p.handleUndef(args)

	case "include":
		if !p.active() {
			return nil
		}
		return p.handleInclude(args, out)

	case "ifdef", "ifndef":
		if !p.active() {
			// Nesting must still balance inside dead branches
			p.pushCond(false)
			return nil
		}
		i := nextSolid(args, 0)
		if i < 0 || args[i].Kind != token.KindIdentifier {
			return errors.Directive("#" + kw.Text + " expects a macro name")
		}
		defined := p.table.Contains(args[i].Text)
		if kw.Text == "ifndef" {
			defined = !defined
		}
		p.pushCond(defined)
		return nil

	case "if":
		if !p.active() {
			p.pushCond(false)
			return nil
		}
		cond, err := p.evalCondition(args)
		if err != nil {
			return err
		}
		p.pushCond(cond)
		return nil

	case "elif":
		return p.elifCond(func() (bool, error) {
			return p.evalCondition(args)
		})

	case "else":
		return p.elseCond()

	case "endif":
		return p.popCond()

	case "error":
		if !p.active() {
			return nil
		}
		msg := strings.TrimSpace(token.Text(args))
		if msg == "" {
			msg = "#error directive"
		}
		return errors.User(msg)

	case "warning":
		// MSVC has no #warning; GCC and Clang report and continue
		if p.active() && p.cfg.Compiler != CompilerMSVC {
			msg := strings.TrimSpace(token.Text(args))
			if msg == "" {
				msg = "#warning directive"
			}
			p.warn("#warning: " + msg)
		}
		return nil

	case "pragma":
		if !p.active() {
			return nil
		}
		p.handlePragma(args)
		return nil

	case "line":
		if !p.active() {
			return nil
		}
		return p.handleLine(args, physLine)

	default:
		if !p.active() {
			return nil
		}
		return errors.Directive(fmt.Sprintf("unknown directive #%s", kw.Text))
	}
}

// handleDefine parses "#define NAME[(params)] body" and stores the
// macro. A paren opening function-like parameters must follow the name
// with no whitespace in between.
func (p *Preprocessor) handleDefine(args []token.Token, physLine int) error {
	i := nextSolid(args, 0)
	if i < 0 || args[i].Kind != token.KindIdentifier {
		return errors.Directive("#define expects a macro name")
	}
	m := &macro.Macro{
		Name: args[i].Text,
		File: p.reportedFile(),
		Line: p.reportedLine(physLine),
	}

	rest := args[i+1:]
	if len(rest) > 0 && rest[0].Is("(") {
		m.FunctionLike = true
		consumed, err := parseParams(m, rest)
		if err != nil {
			return err
		}
		rest = rest[consumed:]
	}

	m.Body = trimBlank(rest)
	if err := validateBody(m); err != nil {
		return err
	}

	redefined, err := p.table.Define(m)
	if err != nil {
		return err
	}
	if redefined {
		p.warn(fmt.Sprintf("macro %s redefined with a different body", m.Name))
	}
	return nil
}

// parseParams parses the parameter list starting at the opening paren
// rest[0], filling in Params/Variadic/VariadicName, and returns the
// number of tokens consumed including the closing paren
func parseParams(m *macro.Macro, rest []token.Token) (int, error) {
	seen := make(map[string]bool)
	i := 1
	wantName := true
	for i < len(rest) {
		t := rest[i]
		switch {
		case t.Blank():
			i++

		case t.Is(")"):
			if m.Variadic && wantName {
				return 0, errors.Directive(
					fmt.Sprintf("macro %s: parameter after ...", m.Name))
			}
			return i + 1, nil

		case t.Is(","):
			if wantName {
				return 0, errors.Directive(
					fmt.Sprintf("macro %s: empty parameter name", m.Name))
			}
			if m.Variadic {
				return 0, errors.Directive(
					fmt.Sprintf("macro %s: ... must be the last parameter", m.Name))
			}
			wantName = true
			i++

		case t.Is("..."):
			if m.Variadic {
				return 0, errors.Directive(
					fmt.Sprintf("macro %s: duplicate ...", m.Name))
			}
			m.Variadic = true
			if !wantName && len(m.Params) > 0 {
				// GNU named variadic: the preceding name receives
				// the trailing arguments
				m.VariadicName = m.Params[len(m.Params)-1]
				m.Params = m.Params[:len(m.Params)-1]
			} else {
				m.VariadicName = "__VA_ARGS__"
			}
			wantName = false
			i++

		case t.Kind == token.KindIdentifier:
			if !wantName {
				return 0, errors.Directive(
					fmt.Sprintf("macro %s: expected , before %s", m.Name, t.Text))
			}
			if seen[t.Text] {
				return 0, errors.Directive(
					fmt.Sprintf("macro %s: duplicate parameter %s", m.Name, t.Text))
			}
			seen[t.Text] = true
			m.Params = append(m.Params, t.Text)
			wantName = false
			i++

		default:
			return 0, errors.Directive(
				fmt.Sprintf("macro %s: unexpected %q in parameter list", m.Name, t.Text))
		}
	}
	return 0, errors.Directive(fmt.Sprintf("macro %s: unterminated parameter list", m.Name))
}

// validateBody rejects replacement sequences the expansion engine
// cannot honor: ## at either end of the body
func validateBody(m *macro.Macro) error {
	if i := nextSolid(m.Body, 0); i >= 0 && m.Body[i].Is("##") {
		return errors.Directive(
			fmt.Sprintf("macro %s: ## cannot appear at the start of the body", m.Name))
	}
	if i := prevSolid(m.Body, len(m.Body)-1); i >= 0 && m.Body[i].Is("##") {
		return errors.Directive(
			fmt.Sprintf("macro %s: ## cannot appear at the end of the body", m.Name))
	}
	return nil
}

func (p *Preprocessor) handleUndef(args []token.Token) error {
	i := nextSolid(args, 0)
	if i < 0 || args[i].Kind != token.KindIdentifier {
		return errors.Directive("#undef expects a macro name")
	}
	// Undefining an unknown name is not an error
	p.table.Undef(args[i].Text)
	return nil
}

// evalCondition evaluates a #if/#elif expression: defined() is
// resolved first against the macro table, the rest is macro-expanded,
// and the surviving tokens go to the constant-expression evaluator
func (p *Preprocessor) evalCondition(args []token.Token) (bool, error) {
	resolved, err := p.resolveDefined(args)
	if err != nil {
		return false, err
	}
	expanded, err := p.expand(resolved)
	if err != nil {
		return false, err
	}
	v, err := eval.Eval(expanded)
	if err != nil {
		return false, err
	}
	return v != 0, nil
}

// resolveDefined replaces defined NAME and defined(NAME) with 1 or 0
// before any macro expansion, so the operand is never expanded
func (p *Preprocessor) resolveDefined(toks []token.Token) ([]token.Token, error) {
	var out []token.Token
	for i := 0; i < len(toks); i++ {
		t := toks[i]
		if !t.IsIdent("defined") {
			out = append(out, t)
			continue
		}

		j := nextSolid(toks, i+1)
		var name string
		switch {
		case j >= 0 && toks[j].Kind == token.KindIdentifier:
			name = toks[j].Text
			i = j
		case j >= 0 && toks[j].Is("("):
			k := nextSolid(toks, j+1)
			if k < 0 || toks[k].Kind != token.KindIdentifier {
				return nil, errors.Evaluation("expected identifier after defined(")
			}
			cl := nextSolid(toks, k+1)
			if cl < 0 || !toks[cl].Is(")") {
				return nil, errors.Evaluation("expected ) after defined(" + toks[k].Text)
			}
			name = toks[k].Text
			i = cl
		default:
			return nil, errors.Evaluation("defined must be followed by an identifier")
		}

		val := "0"
		if p.table.Contains(name) {
			val = "1"
		}
		out = append(out, token.Token{
			Kind: token.KindNumber,
			Text: val,
			Line: t.Line,
			Col:  t.Col,
		})
	}
	return out, nil
}

// handleInclude resolves and recursively preprocesses one #include.
// The loader owns name resolution; the engine owns depth and cycle
// checks and #pragma once bookkeeping.
func (p *Preprocessor) handleInclude(args []token.Token, out *strings.Builder) error {
	name, kind, ok := parseIncludeName(args)
	if !ok {
		// The name may be produced by macros: expand once and retry
		expanded, err := p.expand(args)
		if err != nil {
			return err
		}
		name, kind, ok = parseIncludeName(expanded)
		if !ok {
			return errors.Directive("malformed #include directive")
		}
	}

	if p.cfg.Loader == nil {
		return errors.LoaderFailure(name, fmt.Errorf("no include loader configured"))
	}
	if p.includeDepth+1 > p.cfg.RecursionLimit {
		return errors.RecursionLimit("include", p.cfg.RecursionLimit)
	}

	ctx := &include.Context{
		IncludingFile: p.curFile,
		Stack:         append([]string(nil), p.includeStack...),
	}
	resolved, text, err := p.cfg.Loader.Load(name, kind, ctx)
	if err != nil {
		return errors.LoaderFailure(name, err)
	}

	for _, f := range p.includeStack {
		if f == resolved {
			return errors.New(errors.ErrCodeLoader,
				fmt.Sprintf("include cycle detected for %q", resolved),
				"The file is already being included further up the include chain",
				"Add an include guard or #pragma once to the header",
			)
		}
	}
	if p.onceFiles[resolved] {
		return nil
	}

	p.includeStack = append(p.includeStack, resolved)
	p.includeDepth++
	processed, err := p.processText(text, resolved)
	p.includeDepth--
	p.includeStack = p.includeStack[:len(p.includeStack)-1]
	if err != nil {
		return err
	}
	out.WriteString(processed)
	return nil
}

// parseIncludeName extracts the include name from "name" or <name>
// token forms
func parseIncludeName(args []token.Token) (string, include.Kind, bool) {
	i := nextSolid(args, 0)
	if i < 0 {
		return "", 0, false
	}
	t := args[i]
	if t.Kind == token.KindString && len(t.Text) >= 2 {
		return t.Text[1 : len(t.Text)-1], include.KindLocal, true
	}
	if t.Is("<") {
		var sb strings.Builder
		for j := i + 1; j < len(args); j++ {
			if args[j].Is(">") {
				if sb.Len() == 0 {
					return "", 0, false
				}
				return sb.String(), include.KindSystem, true
			}
			sb.WriteString(args[j].Text)
		}
	}
	return "", 0, false
}

// handlePragma recognizes #pragma once; everything else is a no-op
// reported through the warning channel
func (p *Preprocessor) handlePragma(args []token.Token) {
	i := nextSolid(args, 0)
	if i >= 0 && args[i].IsIdent("once") {
		p.onceFiles[p.curFile] = true
		return
	}
	p.warn("unknown #pragma " + strings.TrimSpace(token.Text(args)))
}

// rewritePragmaOperators applies the _Pragma operator: every
// _Pragma("text") occurrence on the line is destringized and
// dispatched as if it were a #pragma directive, and its tokens drop
// out of the line. A bare _Pragma identifier with no parenthesized
// string literal passes through untouched.
func (p *Preprocessor) rewritePragmaOperators(line []token.Token) ([]token.Token, error) {
	found := false
	for _, t := range line {
		if t.IsIdent("_Pragma") {
			found = true
			break
		}
	}
	if !found {
		return line, nil
	}

	var out []token.Token
	for i := 0; i < len(line); {
		if !line[i].IsIdent("_Pragma") {
			out = append(out, line[i])
			i++
			continue
		}
		open := nextSolid(line, i+1)
		if open < 0 || !line[open].Is("(") {
			out = append(out, line[i])
			i++
			continue
		}
		str := nextSolid(line, open+1)
		if str < 0 || line[str].Kind != token.KindString {
			return nil, errors.Directive("_Pragma operand must be a string literal")
		}
		end := nextSolid(line, str+1)
		if end < 0 || !line[end].Is(")") {
			return nil, errors.Directive("unterminated _Pragma operator")
		}
		toks, err := lexer.Tokenize(destringize(line[str].Text), p.reportedFile())
		if err != nil {
			return nil, err
		}
		p.handlePragma(toks)
		i = end + 1
	}
	return out, nil
}

// destringize strips the quotes from a string literal and undoes the
// \" and \\ escapes
func destringize(lit string) string {
	body := lit
	if len(body) >= 2 {
		body = body[1 : len(body)-1]
	}
	if !strings.Contains(body, `\`) {
		return body
	}
	var sb strings.Builder
	for i := 0; i < len(body); i++ {
		if body[i] == '\\' && i+1 < len(body) && (body[i+1] == '"' || body[i+1] == '\\') {
			i++
		}
		sb.WriteByte(body[i])
	}
	return sb.String()
}

// handleLine rewrites diagnostic line/file reporting: the line after
// the directive reports as N, and __FILE__ switches when a file name
// is given. Tokens are unaffected.
func (p *Preprocessor) handleLine(args []token.Token, physLine int) error {
	expanded, err := p.expand(args)
	if err != nil {
		return err
	}
	i := nextSolid(expanded, 0)
	if i < 0 || expanded[i].Kind != token.KindNumber {
		return errors.Directive("#line expects a line number")
	}
	n, err := strconv.Atoi(expanded[i].Text)
	if err != nil || n < 0 {
		return errors.Directive(fmt.Sprintf("invalid #line number %q", expanded[i].Text))
	}
	p.lineDelta = n - physLine - 1

	j := nextSolid(expanded, i+1)
	if j >= 0 {
		if expanded[j].Kind != token.KindString || len(expanded[j].Text) < 2 {
			return errors.Directive("#line file name must be a string literal")
		}
		p.fileOverride = expanded[j].Text[1 : len(expanded[j].Text)-1]
	}
	return nil
}

// trimBlank drops whitespace tokens at both ends of a token run
func trimBlank(toks []token.Token) []token.Token {
	start := 0
	for start < len(toks) && toks[start].Blank() {
		start++
	}
	end := len(toks)
	for end > start && toks[end-1].Blank() {
		end--
	}
	return toks[start:end]
}
