package preprocessor

import (
	"strings"
	"sync"
	"testing"

	"github.com/akam1o/cprep/pkg/errors"
)

func run(t *testing.T, input string) string {
	t.Helper()
	p := New(DefaultConfig())
	out, err := p.Process(input)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	return out
}

func runErr(t *testing.T, input string) error {
	t.Helper()
	p := New(DefaultConfig())
	_, err := p.Process(input)
	if err == nil {
		t.Fatalf("Process() expected an error for %q", input)
	}
	return err
}

func TestProcessBasic(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "plain text passes through",
			input: "int main(void) { return 0; }\n",
			want:  "int main(void) { return 0; }\n",
		},
		{
			name:  "object-like macro",
			input: "#define PI 3.14159\nfloat p = PI;\n",
			want:  "float p = 3.14159;\n",
		},
		{
			name:  "directive lines produce no output",
			input: "#define A 1\n#define B 2\nA B\n",
			want:  "1 2\n",
		},
		{
			name:  "null directive",
			input: "#\nx\n",
			want:  "x\n",
		},
		{
			name:  "function-like macro",
			input: "#define ADD(a,b) ((a)+(b))\nx = ADD(2, 3);\n",
			want:  "x = ((2)+(3));\n",
		},
		{
			name:  "argument is expanded before substitution",
			input: "#define ADD(a,b) ((a)+(b))\n#define PI 3.14\nx = ADD(PI, 1);\n",
			want:  "x = ((3.14)+(1));\n",
		},
		{
			name:  "function-like name without parentheses stays",
			input: "#define F(x) x\nint F;\n",
			want:  "int F;\n",
		},
		{
			name:  "empty invocation of zero-parameter macro",
			input: "#define NOW() 42\nt = NOW();\n",
			want:  "t = 42;\n",
		},
		{
			name:  "nested invocation in argument",
			input: "#define ADD(a,b) ((a)+(b))\nADD(ADD(1, 2), 3)\n",
			want:  "((((1)+(2)))+(3))\n",
		},
		{
			name:  "commas inside nested parens do not split",
			input: "#define FIRST(a,b) a\nFIRST(f(1, 2), 3)\n",
			want:  "f(1, 2)\n",
		},
		{
			name:  "macro names inside strings are untouched",
			input: "#define PI 3\ns = \"PI\";\n",
			want:  "s = \"PI\";\n",
		},
		{
			name:  "no trailing newline preserved",
			input: "#define X 1\nX",
			want:  "1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := run(t, tt.input); got != tt.want {
				t.Errorf("Process() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSelfReferenceStopsExpansion(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "direct self-reference",
			input: "#define FOO FOO\nFOO\n",
			want:  "FOO\n",
		},
		{
			name:  "self-reference with growth",
			input: "#define X X + 1\nX\n",
			want:  "X + 1\n",
		},
		{
			name:  "mutual recursion",
			input: "#define A B\n#define B A\nA\n",
			want:  "A\n",
		},
		{
			name:  "function-like self-reference",
			input: "#define F(x) F(x)\nF(1)\n",
			want:  "F(1)\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := run(t, tt.input); got != tt.want {
				t.Errorf("Process() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAdjacentMacroComposition(t *testing.T) {
	// The replacement of g must combine with the following (2) to form
	// an invocation of f
	input := "#define f(a) a\n#define g f\ng(2)\n"
	if got := run(t, input); got != "2\n" {
		t.Errorf("Process() = %q, want %q", got, "2\n")
	}
}

func TestStringify(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "interior whitespace collapses to one space",
			input: "#define S(x) #x\nS(a  +  b)\n",
			want:  "\"a + b\"\n",
		},
		{
			name:  "no whitespace stays glued",
			input: "#define S(x) #x\nS(a+b)\n",
			want:  "\"a+b\"\n",
		},
		{
			name:  "argument is not expanded before stringify",
			input: "#define PI 3\n#define S(x) #x\nS(PI)\n",
			want:  "\"PI\"\n",
		},
		{
			name:  "quotes and backslashes are escaped",
			input: "#define S(x) #x\nS(\"hi\")\n",
			want:  "\"\\\"hi\\\"\"\n",
		},
		{
			name:  "empty argument",
			input: "#define S(x) #x\nS()\n",
			want:  "\"\"\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := run(t, tt.input); got != tt.want {
				t.Errorf("Process() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPaste(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "identifier paste",
			input: "#define CAT(a,b) a##b\nCAT(foo, bar)\n",
			want:  "foobar\n",
		},
		{
			name:  "pasted result is one token",
			input: "#define CAT(a,b) a##b\n#define foobar 9\nCAT(foo, bar)\n",
			want:  "9\n",
		},
		{
			name:  "number paste",
			input: "#define GLUE(a,b) a##b\nGLUE(1, 2)\n",
			want:  "12\n",
		},
		{
			name:  "empty argument leaves the partner",
			input: "#define JOIN(a,b) a##b\nJOIN(, x)\n",
			want:  "x\n",
		},
		{
			name:  "paste operand is not expanded first",
			input: "#define X 1\n#define CAT(a,b) a##b\nCAT(X, Y)\n",
			want:  "XY\n",
		},
		{
			name:  "argument-origin hash-hash does not paste",
			input: "#define ID(x) x\nID(a ## b)\n",
			want:  "a ## b\n",
		},
		{
			name:  "object-like body paste",
			input: "#define AB a##b\nAB\n",
			want:  "ab\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := run(t, tt.input); got != tt.want {
				t.Errorf("Process() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPasteError(t *testing.T) {
	err := runErr(t, "#define CAT(a,b) a##b\nCAT(+, -)\n")
	if code := errors.CodeOf(err); code != errors.ErrCodePaste {
		t.Errorf("error code = %q, want %q", code, errors.ErrCodePaste)
	}
}

func TestVariadicMacros(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "va_args receives the trailing arguments",
			input: "#define LOG(fmt, ...) printf(fmt, __VA_ARGS__)\nLOG(\"x\", 1, 2)\n",
			want:  "printf(\"x\", 1,2)\n",
		},
		{
			name:  "named variadic parameter",
			input: "#define P(args...) f(args)\nP(1, 2)\n",
			want:  "f(1,2)\n",
		},
		{
			name:  "variadic with no extra arguments",
			input: "#define LOG(fmt, ...) printf(fmt)\nLOG(\"x\")\n",
			want:  "printf(\"x\")\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := run(t, tt.input); got != tt.want {
				t.Errorf("Process() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestArgumentCountMismatch(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"too few", "#define ADD(a,b) a+b\nADD(1)\n"},
		{"too many", "#define ADD(a,b) a+b\nADD(1, 2, 3)\n"},
		{"variadic too few", "#define LOG(fmt, x, ...) fmt\nLOG(1)\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := runErr(t, tt.input)
			if code := errors.CodeOf(err); code != errors.ErrCodeDirective {
				t.Errorf("error code = %q, want %q", code, errors.ErrCodeDirective)
			}
		})
	}
}

func TestUnterminatedArgumentList(t *testing.T) {
	err := runErr(t, "#define F(a) a\nF(1\n")
	if code := errors.CodeOf(err); code != errors.ErrCodeDirective {
		t.Errorf("error code = %q, want %q", code, errors.ErrCodeDirective)
	}
}

func TestRecursionLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RecursionLimit = 3
	p := New(cfg)
	input := "#define A0 A1\n#define A1 A2\n#define A2 A3\n#define A3 A4\nA0\n"
	_, err := p.Process(input)
	if err == nil {
		t.Fatal("Process() expected a recursion limit error")
	}
	if code := errors.CodeOf(err); code != errors.ErrCodeRecursionLimit {
		t.Errorf("error code = %q, want %q", code, errors.ErrCodeRecursionLimit)
	}
}

func TestOutputSpacing(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "minus tokens stay two tokens",
			input: "#define NEG -\nx = NEG-1;\n",
			want:  "x = - -1;\n",
		},
		{
			name:  "number and dot-number stay apart",
			input: "#define PI 3\nPI.5\n",
			want:  "3 .5\n",
		},
		{
			name:  "number and identifier stay apart",
			input: "#define N 1\n#define E e\nN E\n",
			want:  "1 e\n",
		},
		{
			name:  "no space where tokens cannot merge",
			input: "#define OPEN (\nf OPEN 1 );\n",
			want:  "f ( 1 );\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := run(t, tt.input); got != tt.want {
				t.Errorf("Process() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStatePersistsAcrossProcessCalls(t *testing.T) {
	p := New(DefaultConfig())

	if _, err := p.Process("#define X 5\n"); err != nil {
		t.Fatal(err)
	}
	out, err := p.Process("X\n")
	if err != nil {
		t.Fatal(err)
	}
	if out != "5\n" {
		t.Errorf("macro table should persist: got %q", out)
	}

	// Conditional stack persists too: a #if left open suppresses the
	// next call's lines until its #endif arrives
	if _, err := p.Process("#if 0\n"); err != nil {
		t.Fatal(err)
	}
	out, err = p.Process("hidden\n")
	if err != nil {
		t.Fatal(err)
	}
	if out != "" {
		t.Errorf("lines inside an open #if 0 should vanish: got %q", out)
	}
	if _, err := p.Process("#endif\n"); err != nil {
		t.Fatal(err)
	}
	out, err = p.Process("visible\n")
	if err != nil {
		t.Fatal(err)
	}
	if out != "visible\n" {
		t.Errorf("lines after #endif should emit: got %q", out)
	}
}

func TestStateSurvivesFailedProcess(t *testing.T) {
	p := New(DefaultConfig())
	_, err := p.Process("#define A 5\n#error stop\n")
	if err == nil {
		t.Fatal("expected #error to fail the call")
	}
	if p.LastError() == nil {
		t.Error("LastError() should return the failure")
	}

	out, err := p.Process("A\n")
	if err != nil {
		t.Fatal(err)
	}
	if out != "5\n" {
		t.Errorf("definitions before the failure should survive: got %q", out)
	}
}

func TestProgrammaticDefine(t *testing.T) {
	p := New(DefaultConfig())

	if err := p.Define("FLAG"); err != nil {
		t.Fatal(err)
	}
	if err := p.Define("MAX=10"); err != nil {
		t.Fatal(err)
	}
	if err := p.Define("ADD(a,b)=((a)+(b))"); err != nil {
		t.Fatal(err)
	}

	out, err := p.Process("FLAG MAX ADD(1,2)\n")
	if err != nil {
		t.Fatal(err)
	}
	if out != "1 10 ((1)+(2))\n" {
		t.Errorf("Process() = %q", out)
	}

	p.Undef("MAX")
	if p.IsDefined("MAX") {
		t.Error("MAX should be gone after Undef")
	}
	if !p.IsDefined("FLAG") {
		t.Error("FLAG should still be defined")
	}
}

func TestMacroNamesIncludesPredefined(t *testing.T) {
	p := New(DefaultConfig())
	names := p.MacroNames()
	found := false
	for _, n := range names {
		if n == "__linux__" {
			found = true
		}
	}
	if !found {
		t.Error("MacroNames() should include predefined __linux__")
	}
	if !sortedStrings(names) {
		t.Error("MacroNames() should be sorted")
	}
}

func sortedStrings(s []string) bool {
	for i := 1; i < len(s); i++ {
		if s[i-1] > s[i] {
			return false
		}
	}
	return true
}

func TestErrorLocation(t *testing.T) {
	p := New(DefaultConfig())
	_, err := p.ProcessFile("int x;\n\n#if 1/0\n#endif\n", "bad.c")
	if err == nil {
		t.Fatal("expected an evaluation error")
	}
	var e *errors.Error
	if !errors.As(err, &e) {
		t.Fatalf("error is not a *errors.Error: %v", err)
	}
	if e.File != "bad.c" || e.Line != 3 {
		t.Errorf("location = %s:%d, want bad.c:3", e.File, e.Line)
	}
}

func TestConcurrentDrivers(t *testing.T) {
	// Distinct drivers share nothing; interleaved use from separate
	// goroutines must not interfere
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			p := New(DefaultConfig())
			val := strings.Repeat("9", n+1)
			if err := p.Define("V=" + val); err != nil {
				t.Error(err)
				return
			}
			for j := 0; j < 50; j++ {
				out, err := p.Process("V\n")
				if err != nil {
					t.Error(err)
					return
				}
				if out != val+"\n" {
					t.Errorf("driver %d: Process() = %q, want %q", n, out, val+"\n")
					return
				}
			}
		}(i)
	}
	wg.Wait()
}

func TestEndToEnd(t *testing.T) {
	input := `#define PI 3.14159
#define ADD(a, b) ((a) + (b))
#define TWO_PI ADD(PI, PI)
double circumference = TWO_PI * r;
#ifdef PI
double area = PI * r * r;
#endif
`
	want := "double circumference = ((3.14159) + (3.14159)) * r;\n" +
		"double area = 3.14159 * r * r;\n"
	if got := run(t, input); got != want {
		t.Errorf("Process() = %q, want %q", got, want)
	}
}
