package eval

import (
	"testing"

	"github.com/akam1o/cprep/pkg/errors"
	"github.com/akam1o/cprep/pkg/lexer"
)

func eval(t *testing.T, expr string) (int64, error) {
	t.Helper()
	toks, err := lexer.Tokenize(expr, "<test>")
	if err != nil {
		t.Fatalf("tokenize %q: %v", expr, err)
	}
	return Eval(toks)
}

func TestEval(t *testing.T) {
	tests := []struct {
		expr string
		want int64
	}{
		{"1", 1},
		{"0", 0},
		{"42", 42},
		{"0x10", 16},
		{"010", 8},
		{"10UL", 10},
		{"1 + 2 * 3", 7},
		{"(1 + 2) * 3", 9},
		{"10 - 4 - 3", 3},
		{"7 / 2", 3},
		{"7 % 3", 1},
		{"1 << 4", 16},
		{"256 >> 4", 16},
		{"3 & 6", 2},
		{"3 | 4", 7},
		{"3 ^ 5", 6},
		{"~0", -1},
		{"-5 + 3", -2},
		{"+5", 5},
		{"!0", 1},
		{"!7", 0},
		{"!!7", 1},
		{"1 < 2", 1},
		{"2 <= 2", 1},
		{"3 > 4", 0},
		{"4 >= 4", 1},
		{"1 == 1", 1},
		{"1 != 1", 0},
		{"1 && 2", 1},
		{"1 && 0", 0},
		{"0 || 0", 0},
		{"0 || 3", 1},
		{"1 ? 10 : 20", 10},
		{"0 ? 10 : 20", 20},
		{"1 ? 2 : 0 ? 3 : 4", 2}, // right-associative ternary
		{"'A'", 65},
		{"'\\n'", 10},
		{"UNDEFINED_NAME", 0},
		{"UNDEFINED_NAME + 1", 1},
		// Short-circuit skips the faulting side
		{"0 && (1 / 0)", 0},
		{"1 || (1 / 0)", 1},
		{"1 ? 5 : 1 / 0", 5},
		{"0 ? 1 % 0 : 5", 5},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := eval(t, tt.expr)
			if err != nil {
				t.Fatalf("Eval(%q) error = %v", tt.expr, err)
			}
			if got != tt.want {
				t.Errorf("Eval(%q) = %d, want %d", tt.expr, got, tt.want)
			}
		})
	}
}

func TestEvalErrors(t *testing.T) {
	tests := []struct {
		name string
		expr string
	}{
		{"empty", ""},
		{"division by zero", "1 / 0"},
		{"modulo by zero", "1 % 0"},
		{"live division under and", "1 && 1 / 0"},
		{"missing operand", "1 +"},
		{"unbalanced paren", "(1 + 2"},
		{"missing colon", "1 ? 2"},
		{"trailing token", "1 2"},
		{"bare operator", "*"},
		// Short-circuit suppresses the fault, not the syntax
		{"skipped side must still parse", "0 && (1 +)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := eval(t, tt.expr)
			if err == nil {
				t.Fatalf("Eval(%q) expected an error", tt.expr)
			}
			if code := errors.CodeOf(err); code != errors.ErrCodeEvaluation {
				t.Errorf("error code = %q, want %q", code, errors.ErrCodeEvaluation)
			}
		})
	}
}
