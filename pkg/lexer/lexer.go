package lexer

import (
	"fmt"
	"strings"

	"github.com/akam1o/cprep/pkg/errors"
	"github.com/akam1o/cprep/pkg/token"
)

// Lexer performs lexical analysis on C source text, producing the
// preprocessing token sequence one token at a time. Backslash-newline
// splices are resolved during reading and comments are replaced by a
// single whitespace token, so callers only ever see clean tokens.
type Lexer struct {
	input []rune
	pos   int
	file  string
	line  int
	col   int
	// Current character, 0 at end of input
	ch  rune
	eof bool
	// Position of ch for token start bookkeeping
	chLine int
	chCol  int
}

// New creates a lexer over one translation unit or included fragment.
// The file name is used only for diagnostics.
func New(input, file string) *Lexer {
	l := &Lexer{
		input: []rune(input),
		file:  file,
		line:  1,
		col:   0,
	}
	l.readChar()
	return l
}

// Tokenize lexes the whole input and returns the token sequence
func Tokenize(input, file string) ([]token.Token, error) {
	l := New(input, file)
	var toks []token.Token
	for {
		t, ok, err := l.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return toks, nil
		}
		toks = append(toks, t)
	}
}

// Next returns the next token. The second result is false once the
// input is exhausted.
func (l *Lexer) Next() (token.Token, bool, error) {
	if l.eof {
		return token.Token{}, false, nil
	}

	startLine, startCol := l.chLine, l.chCol

	switch {
	case l.ch == '\n':
		l.readChar()
		return l.tok(token.KindNewline, "\n", startLine, startCol), true, nil

	case l.ch == '\r':
		// Treat CRLF and bare CR as one newline
		l.readChar()
		if !l.eof && l.ch == '\n' {
			l.readChar()
		}
		return l.tok(token.KindNewline, "\n", startLine, startCol), true, nil

	case l.ch == ' ' || l.ch == '\t' || l.ch == '\v' || l.ch == '\f':
		var sb strings.Builder
		for !l.eof && (l.ch == ' ' || l.ch == '\t' || l.ch == '\v' || l.ch == '\f') {
			sb.WriteRune(l.ch)
			l.readChar()
		}
		return l.tok(token.KindWhitespace, sb.String(), startLine, startCol), true, nil

	case l.ch == '/':
		return l.scanSlash(startLine, startCol)

	case token.IsIdentStart(l.ch):
		var sb strings.Builder
		for !l.eof && token.IsIdentCont(l.ch) {
			sb.WriteRune(l.ch)
			l.readChar()
		}
		return l.tok(token.KindIdentifier, sb.String(), startLine, startCol), true, nil

	case isDigit(l.ch) || (l.ch == '.' && isDigit(l.peek())):
		return l.scanNumber(startLine, startCol)

	case l.ch == '"' || l.ch == '\'':
		return l.scanQuoted(startLine, startCol)

	default:
		return l.scanPunct(startLine, startCol)
	}
}

// readChar advances to the next character, resolving backslash-newline
// splices so they never reach tokenization
func (l *Lexer) readChar() {
	for {
		if l.pos >= len(l.input) {
			l.eof = true
			l.ch = 0
			l.chLine = l.line
			l.chCol = l.col + 1
			return
		}
		ch := l.input[l.pos]

		// Line splice: backslash immediately followed by newline
		if ch == '\\' && l.pos+1 < len(l.input) {
			next := l.input[l.pos+1]
			if next == '\n' {
				l.pos += 2
				l.line++
				l.col = 0
				continue
			}
			if next == '\r' {
				skip := 2
				if l.pos+2 < len(l.input) && l.input[l.pos+2] == '\n' {
					skip = 3
				}
				l.pos += skip
				l.line++
				l.col = 0
				continue
			}
		}

		l.pos++
		l.ch = ch
		if ch == '\n' {
			l.chLine = l.line
			l.chCol = l.col + 1
			l.line++
			l.col = 0
		} else {
			l.col++
			l.chLine = l.line
			l.chCol = l.col
		}
		return
	}
}

// peek returns the character after ch without consuming anything,
// looking through splices
func (l *Lexer) peek() rune {
	p := l.pos
	for p < len(l.input) {
		if l.input[p] == '\\' && p+1 < len(l.input) &&
			(l.input[p+1] == '\n' || l.input[p+1] == '\r') {
			if l.input[p+1] == '\r' && p+2 < len(l.input) && l.input[p+2] == '\n' {
				p += 3
			} else {
				p += 2
			}
			continue
		}
		return l.input[p]
	}
	return 0
}

func (l *Lexer) tok(kind token.Kind, text string, line, col int) token.Token {
	return token.Token{Kind: kind, Text: text, Line: line, Col: col}
}

// scanSlash distinguishes comments from the / and /= punctuators.
// Each comment collapses to a single-space whitespace token.
func (l *Lexer) scanSlash(line, col int) (token.Token, bool, error) {
	l.readChar()
	if !l.eof && l.ch == '/' {
		for !l.eof && l.ch != '\n' && l.ch != '\r' {
			l.readChar()
		}
		return l.tok(token.KindWhitespace, " ", line, col), true, nil
	}
	if !l.eof && l.ch == '*' {
		l.readChar()
		var prev rune
		for !l.eof {
			if prev == '*' && l.ch == '/' {
				l.readChar()
				return l.tok(token.KindWhitespace, " ", line, col), true, nil
			}
			prev = l.ch
			l.readChar()
		}
		return token.Token{}, false,
			errors.Lexical(fmt.Sprintf("unterminated block comment starting at line %d", line)).
				At(l.file, line)
	}
	if !l.eof && l.ch == '=' {
		l.readChar()
		return l.tok(token.KindPunct, "/=", line, col), true, nil
	}
	return l.tok(token.KindPunct, "/", line, col), true, nil
}

// scanNumber scans a preprocessing number, which is broader than a C
// numeric constant: it keeps consuming identifier characters, dots, and
// exponent sign pairs so tokens like 1e+5f or 0x1.8p3 stay whole
func (l *Lexer) scanNumber(line, col int) (token.Token, bool, error) {
	var sb strings.Builder
	for !l.eof {
		if (l.ch == 'e' || l.ch == 'E' || l.ch == 'p' || l.ch == 'P') &&
			(l.peek() == '+' || l.peek() == '-') {
			sb.WriteRune(l.ch)
			l.readChar()
			sb.WriteRune(l.ch)
			l.readChar()
			continue
		}
		if token.IsIdentCont(l.ch) || l.ch == '.' {
			sb.WriteRune(l.ch)
			l.readChar()
			continue
		}
		break
	}
	return l.tok(token.KindNumber, sb.String(), line, col), true, nil
}

// scanQuoted scans a string or character literal. The contents are kept
// verbatim, quotes included, and are never rescanned for macro names.
func (l *Lexer) scanQuoted(line, col int) (token.Token, bool, error) {
	quote := l.ch
	kind := token.KindString
	what := "string literal"
	if quote == '\'' {
		kind = token.KindChar
		what = "character constant"
	}

	var sb strings.Builder
	sb.WriteRune(quote)
	l.readChar()
	for !l.eof && l.ch != '\n' && l.ch != '\r' {
		if l.ch == '\\' {
			sb.WriteRune(l.ch)
			l.readChar()
			if l.eof || l.ch == '\n' || l.ch == '\r' {
				break
			}
			sb.WriteRune(l.ch)
			l.readChar()
			continue
		}
		if l.ch == quote {
			sb.WriteRune(quote)
			l.readChar()
			return l.tok(kind, sb.String(), line, col), true, nil
		}
		sb.WriteRune(l.ch)
		l.readChar()
	}
	return token.Token{}, false,
		errors.Lexical(fmt.Sprintf("unterminated %s", what)).At(l.file, line)
}

// puncts lists multi-character punctuators, longest first, so maximal
// munch picks ## over # and <<= over <<
var puncts = []string{
	"<<=", ">>=", "...",
	"##", "->", "++", "--", "<<", ">>", "<=", ">=", "==", "!=",
	"&&", "||", "+=", "-=", "*=", "%=", "&=", "|=", "^=",
}

func (l *Lexer) scanPunct(line, col int) (token.Token, bool, error) {
	for _, p := range puncts {
		if l.match(p) {
			return l.tok(token.KindPunct, p, line, col), true, nil
		}
	}
	ch := l.ch
	l.readChar()
	return l.tok(token.KindPunct, string(ch), line, col), true, nil
}

// match consumes the given punctuator if the input starts with it
func (l *Lexer) match(p string) bool {
	runes := []rune(p)
	if l.ch != runes[0] {
		return false
	}
	if len(runes) >= 2 && l.peek() != runes[1] {
		return false
	}
	if len(runes) == 3 {
		// Third character needs a two-ahead peek; splices make this
		// awkward, so re-lex from a scratch copy
		probe := *l
		probe.readChar()
		if probe.peek() != runes[2] {
			return false
		}
	}
	for range runes {
		l.readChar()
	}
	return true
}

func isDigit(c rune) bool {
	return c >= '0' && c <= '9'
}
