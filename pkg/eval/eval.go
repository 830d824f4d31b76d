// Package eval implements the constant-integer-expression evaluator
// used for #if and #elif directives. Input tokens arrive with defined()
// already resolved and all other macros expanded; any identifier still
// present evaluates to 0.
package eval

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/akam1o/cprep/pkg/errors"
	"github.com/akam1o/cprep/pkg/token"
)

// Eval evaluates the expression with 64-bit signed arithmetic and
// returns its value. Division or modulo by zero is an EvaluationError
// unless it sits on the unevaluated side of a short-circuit. The
// unevaluated side must still parse.
func Eval(toks []token.Token) (int64, error) {
	ev := &evaluator{toks: significant(toks)}
	if len(ev.toks) == 0 {
		return 0, errors.Evaluation("empty #if expression")
	}
	v, err := ev.conditional(true)
	if err != nil {
		return 0, err
	}
	if ev.pos != len(ev.toks) {
		return 0, errors.Evaluation(
			fmt.Sprintf("unexpected token %q after expression", ev.toks[ev.pos].Text))
	}
	return v, nil
}

func significant(toks []token.Token) []token.Token {
	out := make([]token.Token, 0, len(toks))
	for _, t := range toks {
		if !t.Blank() {
			out = append(out, t)
		}
	}
	return out
}

// evaluator walks the token slice with standard C operator precedence.
// The live flag is false on branches skipped by && || ?: so their
// runtime faults (division by zero) go unreported while syntax errors
// still surface.
type evaluator struct {
	toks []token.Token
	pos  int
}

func (ev *evaluator) peek() (token.Token, bool) {
	if ev.pos >= len(ev.toks) {
		return token.Token{}, false
	}
	return ev.toks[ev.pos], true
}

func (ev *evaluator) accept(punct string) bool {
	if t, ok := ev.peek(); ok && t.Is(punct) {
		ev.pos++
		return true
	}
	return false
}

// conditional handles the ternary operator, the lowest precedence level
func (ev *evaluator) conditional(live bool) (int64, error) {
	cond, err := ev.logicalOr(live)
	if err != nil {
		return 0, err
	}
	if !ev.accept("?") {
		return cond, nil
	}
	thenV, err := ev.conditional(live && cond != 0)
	if err != nil {
		return 0, err
	}
	if !ev.accept(":") {
		return 0, errors.Evaluation("expected : in conditional expression")
	}
	elseV, err := ev.conditional(live && cond == 0)
	if err != nil {
		return 0, err
	}
	if cond != 0 {
		return thenV, nil
	}
	return elseV, nil
}

func (ev *evaluator) logicalOr(live bool) (int64, error) {
	left, err := ev.logicalAnd(live)
	if err != nil {
		return 0, err
	}
	for ev.accept("||") {
		right, err := ev.logicalAnd(live && left == 0)
		if err != nil {
			return 0, err
		}
		left = boolVal(left != 0 || right != 0)
	}
	return left, nil
}

func (ev *evaluator) logicalAnd(live bool) (int64, error) {
	left, err := ev.bitOr(live)
	if err != nil {
		return 0, err
	}
	for ev.accept("&&") {
		right, err := ev.bitOr(live && left != 0)
		if err != nil {
			return 0, err
		}
		left = boolVal(left != 0 && right != 0)
	}
	return left, nil
}

func (ev *evaluator) bitOr(live bool) (int64, error) {
	left, err := ev.bitXor(live)
	if err != nil {
		return 0, err
	}
	for ev.accept("|") {
		right, err := ev.bitXor(live)
		if err != nil {
			return 0, err
		}
		left |= right
	}
	return left, nil
}

func (ev *evaluator) bitXor(live bool) (int64, error) {
	left, err := ev.bitAnd(live)
	if err != nil {
		return 0, err
	}
	for ev.accept("^") {
		right, err := ev.bitAnd(live)
		if err != nil {
			return 0, err
		}
		left ^= right
	}
	return left, nil
}

func (ev *evaluator) bitAnd(live bool) (int64, error) {
	left, err := ev.equality(live)
	if err != nil {
		return 0, err
	}
	for ev.accept("&") {
		right, err := ev.equality(live)
		if err != nil {
			return 0, err
		}
		left &= right
	}
	return left, nil
}

func (ev *evaluator) equality(live bool) (int64, error) {
	left, err := ev.relational(live)
	if err != nil {
		return 0, err
	}
	for {
		switch {
		case ev.accept("=="):
			right, err := ev.relational(live)
			if err != nil {
				return 0, err
			}
			left = boolVal(left == right)
		case ev.accept("!="):
			right, err := ev.relational(live)
			if err != nil {
				return 0, err
			}
			left = boolVal(left != right)
		default:
			return left, nil
		}
	}
}

func (ev *evaluator) relational(live bool) (int64, error) {
	left, err := ev.shift(live)
	if err != nil {
		return 0, err
	}
	for {
		switch {
		case ev.accept("<="):
			right, err := ev.shift(live)
			if err != nil {
				return 0, err
			}
			left = boolVal(left <= right)
		case ev.accept(">="):
			right, err := ev.shift(live)
			if err != nil {
				return 0, err
			}
			left = boolVal(left >= right)
		case ev.accept("<"):
			right, err := ev.shift(live)
			if err != nil {
				return 0, err
			}
			left = boolVal(left < right)
		case ev.accept(">"):
			right, err := ev.shift(live)
			if err != nil {
				return 0, err
			}
			left = boolVal(left > right)
		default:
			return left, nil
		}
	}
}

func (ev *evaluator) shift(live bool) (int64, error) {
	left, err := ev.additive(live)
	if err != nil {
		return 0, err
	}
	for {
		switch {
		case ev.accept("<<"):
			right, err := ev.additive(live)
			if err != nil {
				return 0, err
			}
			left <<= uint64(right) & 63
		case ev.accept(">>"):
			right, err := ev.additive(live)
			if err != nil {
				return 0, err
			}
			left >>= uint64(right) & 63
		default:
			return left, nil
		}
	}
}

func (ev *evaluator) additive(live bool) (int64, error) {
	left, err := ev.multiplicative(live)
	if err != nil {
		return 0, err
	}
	for {
		switch {
		case ev.accept("+"):
			right, err := ev.multiplicative(live)
			if err != nil {
				return 0, err
			}
			left += right
		case ev.accept("-"):
			right, err := ev.multiplicative(live)
			if err != nil {
				return 0, err
			}
			left -= right
		default:
			return left, nil
		}
	}
}

func (ev *evaluator) multiplicative(live bool) (int64, error) {
	left, err := ev.unary(live)
	if err != nil {
		return 0, err
	}
	for {
		switch {
		case ev.accept("*"):
			right, err := ev.unary(live)
			if err != nil {
				return 0, err
			}
			left *= right
		case ev.accept("/"):
			right, err := ev.unary(live)
			if err != nil {
				return 0, err
			}
			if right == 0 {
				if live {
					return 0, errors.Evaluation("division by zero in #if expression")
				}
				left = 0
				continue
			}
			left /= right
		case ev.accept("%"):
			right, err := ev.unary(live)
			if err != nil {
				return 0, err
			}
			if right == 0 {
				if live {
					return 0, errors.Evaluation("modulo by zero in #if expression")
				}
				left = 0
				continue
			}
			left %= right
		default:
			return left, nil
		}
	}
}

func (ev *evaluator) unary(live bool) (int64, error) {
	switch {
	case ev.accept("!"):
		v, err := ev.unary(live)
		if err != nil {
			return 0, err
		}
		return boolVal(v == 0), nil
	case ev.accept("-"):
		v, err := ev.unary(live)
		if err != nil {
			return 0, err
		}
		return -v, nil
	case ev.accept("+"):
		return ev.unary(live)
	case ev.accept("~"):
		v, err := ev.unary(live)
		if err != nil {
			return 0, err
		}
		return ^v, nil
	}
	return ev.primary(live)
}

func (ev *evaluator) primary(live bool) (int64, error) {
	t, ok := ev.peek()
	if !ok {
		return 0, errors.Evaluation("unexpected end of #if expression")
	}

	switch t.Kind {
	case token.KindNumber:
		ev.pos++
		return parseInt(t.Text)

	case token.KindIdentifier:
		// Anything the expansion engine left unresolved is 0
		ev.pos++
		return 0, nil

	case token.KindChar:
		ev.pos++
		return charVal(t.Text)

	case token.KindPunct:
		if t.Text == "(" {
			ev.pos++
			v, err := ev.conditional(live)
			if err != nil {
				return 0, err
			}
			if !ev.accept(")") {
				return 0, errors.Evaluation("expected ) in #if expression")
			}
			return v, nil
		}
	}
	return 0, errors.Evaluation(fmt.Sprintf("unexpected token %q in #if expression", t.Text))
}

func boolVal(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// parseInt parses a C integer literal, tolerating u/l suffixes and
// values that only fit when read as unsigned 64-bit
func parseInt(text string) (int64, error) {
	s := strings.TrimRight(text, "uUlL")
	if s == "" {
		return 0, errors.Evaluation(fmt.Sprintf("invalid integer literal %q", text))
	}
	if v, err := strconv.ParseInt(s, 0, 64); err == nil {
		return v, nil
	}
	if v, err := strconv.ParseUint(s, 0, 64); err == nil {
		return int64(v), nil
	}
	return 0, errors.Evaluation(fmt.Sprintf("invalid integer literal %q", text))
}

// charVal evaluates a character constant to its code point
func charVal(text string) (int64, error) {
	s := strings.TrimPrefix(strings.TrimSuffix(text, "'"), "'")
	runes := []rune(s)
	switch {
	case len(runes) == 1 && runes[0] != '\\':
		return int64(runes[0]), nil
	case len(runes) == 2 && runes[0] == '\\':
		switch runes[1] {
		case 'n':
			return '\n', nil
		case 't':
			return '\t', nil
		case 'r':
			return '\r', nil
		case '0':
			return 0, nil
		case '\\', '\'', '"':
			return int64(runes[1]), nil
		}
	}
	return 0, errors.Evaluation(fmt.Sprintf("unsupported character constant %s", text))
}
