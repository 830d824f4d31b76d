package macro

import (
	"sort"

	"github.com/akam1o/cprep/pkg/errors"
	"github.com/akam1o/cprep/pkg/token"
)

// Macro is one preprocessor macro definition. Definitions are treated
// as immutable once stored in a Table.
type Macro struct {
	Name string
	// FunctionLike is true when the definition had an opening paren
	// immediately after the name
	FunctionLike bool
	// Params is the ordered parameter name list, nil for object-like
	Params []string
	// Variadic is true for a trailing ... or named variadic parameter
	Variadic bool
	// VariadicName is the parameter receiving the trailing arguments:
	// __VA_ARGS__ for a bare ..., or the name of a named variadic
	// parameter. Empty when Variadic is false.
	VariadicName string
	// Body is the replacement token sequence
	Body []token.Token
	// Builtin marks predefined macros, which cannot be redefined
	// without an explicit #undef first
	Builtin bool
	// Dynamic marks builtins whose expansion is computed at the use
	// site (__LINE__, __FILE__, __DATE__, __TIME__)
	Dynamic bool
	// File and Line record the definition site for diagnostics
	File string
	Line int
}

// Equal reports whether two definitions are identical in the sense of
// the redefinition rule: same shape, same parameter list, and the same
// replacement sequence up to whitespace
func (m *Macro) Equal(other *Macro) bool {
	if m.FunctionLike != other.FunctionLike || m.Variadic != other.Variadic ||
		m.VariadicName != other.VariadicName {
		return false
	}
	if len(m.Params) != len(other.Params) {
		return false
	}
	for i := range m.Params {
		if m.Params[i] != other.Params[i] {
			return false
		}
	}
	a, b := significant(m.Body), significant(other.Body)
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Kind != b[i].Kind || a[i].Text != b[i].Text {
			return false
		}
	}
	return true
}

// significant drops whitespace tokens for body comparison
func significant(toks []token.Token) []token.Token {
	out := make([]token.Token, 0, len(toks))
	for _, t := range toks {
		if !t.Blank() {
			out = append(out, t)
		}
	}
	return out
}

// Table maps macro names to their definitions. One table belongs to one
// driver and is not safe for concurrent use.
type Table struct {
	defs map[string]*Macro
}

// NewTable creates an empty macro table
func NewTable() *Table {
	return &Table{defs: make(map[string]*Macro)}
}

// Lookup returns the definition of name, or nil
func (t *Table) Lookup(name string) *Macro {
	return t.defs[name]
}

// Contains reports whether name is defined
func (t *Table) Contains(name string) bool {
	_, ok := t.defs[name]
	return ok
}

// Define stores a definition. An identical redefinition is a silent
// no-op. A conflicting redefinition replaces the old definition and
// returns redefined=true so the caller can warn. Redefining a builtin
// that has not been #undef'd first is an error.
func (t *Table) Define(m *Macro) (redefined bool, err error) {
	old, ok := t.defs[m.Name]
	if !ok {
		t.defs[m.Name] = m
		return false, nil
	}
	if old.Builtin && !m.Builtin {
		return false, errors.Directive(
			"cannot redefine builtin macro " + m.Name + " without #undef")
	}
	if old.Equal(m) {
		return false, nil
	}
	t.defs[m.Name] = m
	return true, nil
}

// Undef removes a definition. Undefining an unknown name is not an
// error, and undefining a builtin makes the name user-definable again.
func (t *Table) Undef(name string) {
	delete(t.defs, name)
}

// Len returns the number of definitions
func (t *Table) Len() int {
	return len(t.defs)
}

// Names returns all defined names in sorted order
func (t *Table) Names() []string {
	names := make([]string, 0, len(t.defs))
	for n := range t.defs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
