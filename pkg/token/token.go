package token

// Kind represents the lexical class of a token
type Kind int

const (
	// KindIdentifier is an identifier or keyword
	KindIdentifier Kind = iota
	// KindNumber is a preprocessing number literal
	KindNumber
	// KindString is a double-quoted string literal
	KindString
	// KindChar is a single-quoted character constant
	KindChar
	// KindPunct is a punctuator, including # and ##
	KindPunct
	// KindWhitespace is a run of spaces and tabs
	KindWhitespace
	// KindNewline is an explicit logical-line boundary
	KindNewline
	// KindPlacemarker is an empty stand-in used during ## handling,
	// never emitted to output
	KindPlacemarker
)

// String returns a string representation of the token kind
func (k Kind) String() string {
	switch k {
	case KindIdentifier:
		return "IDENTIFIER"
	case KindNumber:
		return "NUMBER"
	case KindString:
		return "STRING"
	case KindChar:
		return "CHAR"
	case KindPunct:
		return "PUNCT"
	case KindWhitespace:
		return "WHITESPACE"
	case KindNewline:
		return "NEWLINE"
	case KindPlacemarker:
		return "PLACEMARKER"
	default:
		return "UNKNOWN"
	}
}

// Token is a single preprocessing token. Tokens are values: expansion
// builds new tokens rather than mutating existing ones.
type Token struct {
	Kind Kind
	Text string
	Line int
	Col  int
	// Hide is the set of macro names that must not re-expand when
	// this token is rescanned
	Hide *HideSet
}

// String returns the token text, which is empty for placemarkers
func (t Token) String() string {
	return t.Text
}

// Is reports whether the token is a punctuator with the given text
func (t Token) Is(punct string) bool {
	return t.Kind == KindPunct && t.Text == punct
}

// IsIdent reports whether the token is an identifier with the given name
func (t Token) IsIdent(name string) bool {
	return t.Kind == KindIdentifier && t.Text == name
}

// Hidden reports whether the token's hide set forbids expanding name
func (t Token) Hidden(name string) bool {
	return t.Hide.Contains(name)
}

// WithHide returns a copy of the token carrying the given hide set
func (t Token) WithHide(hs *HideSet) Token {
	t.Hide = hs
	return t
}

// Blank reports whether the token contributes no visible text
// (whitespace, newline, or placemarker)
func (t Token) Blank() bool {
	return t.Kind == KindWhitespace || t.Kind == KindNewline || t.Kind == KindPlacemarker
}

// IsIdentStart reports whether c can start an identifier
func IsIdentStart(c rune) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_'
}

// IsIdentCont reports whether c can continue an identifier
func IsIdentCont(c rune) bool {
	return IsIdentStart(c) || (c >= '0' && c <= '9')
}

// Text renders a token sequence by plain concatenation, with no
// separating spaces beyond the whitespace tokens already present
func Text(toks []Token) string {
	n := 0
	for _, t := range toks {
		n += len(t.Text)
	}
	buf := make([]byte, 0, n)
	for _, t := range toks {
		buf = append(buf, t.Text...)
	}
	return string(buf)
}
