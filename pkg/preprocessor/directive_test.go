package preprocessor

import (
	"strings"
	"testing"

	"github.com/akam1o/cprep/pkg/errors"
	"github.com/akam1o/cprep/pkg/include"
)

func TestConditionals(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "if taken",
			input: "#if 1\na\n#else\nb\n#endif\n",
			want:  "a\n",
		},
		{
			name:  "if not taken",
			input: "#if 0\na\n#else\nb\n#endif\n",
			want:  "b\n",
		},
		{
			name:  "elif chain picks the first true branch",
			input: "#define V 2\n#if V == 1\none\n#elif V == 2\ntwo\n#elif V == 3\nthree\n#else\nfour\n#endif\n",
			want:  "two\n",
		},
		{
			name:  "later true elif stays off after a taken branch",
			input: "#if 1\na\n#elif 1\nb\n#endif\n",
			want:  "a\n",
		},
		{
			name:  "ifdef",
			input: "#define FOO 1\n#ifdef FOO\nyes\n#endif\n",
			want:  "yes\n",
		},
		{
			name:  "ifndef",
			input: "#ifndef NOPE\nyes\n#endif\n",
			want:  "yes\n",
		},
		{
			name:  "nested conditionals",
			input: "#if 1\n#if 0\na\n#else\nb\n#endif\n#endif\n",
			want:  "b\n",
		},
		{
			name:  "nesting balances inside dead branches",
			input: "#if 0\n#if 1\na\n#endif\nb\n#endif\nc\n",
			want:  "c\n",
		},
		{
			name:  "defined operator",
			input: "#define FOO 1\n#if defined(FOO) && !defined(BAR)\nyes\n#endif\n",
			want:  "yes\n",
		},
		{
			name:  "defined without parentheses",
			input: "#define FOO 1\n#if defined FOO\nyes\n#endif\n",
			want:  "yes\n",
		},
		{
			name:  "undefined identifiers evaluate to zero",
			input: "#if MYSTERY\na\n#else\nb\n#endif\n",
			want:  "b\n",
		},
		{
			name:  "undef turns a branch off",
			input: "#define X 1\n#undef X\n#ifdef X\na\n#endif\nb\n",
			want:  "b\n",
		},
		{
			name:  "short-circuit protects the dead side",
			input: "#if 0 && (1 / 0)\na\n#endif\nok\n",
			want:  "ok\n",
		},
		{
			name:  "directives other than conditionals are skipped when dead",
			input: "#if 0\n#define X 1\n#unknown\n#error never\n#endif\n#ifdef X\nbad\n#endif\nok\n",
			want:  "ok\n",
		},
		{
			name:  "conditions in dead branches are not evaluated",
			input: "#if 0\n#if 1/0\na\n#endif\n#endif\nok\n",
			want:  "ok\n",
		},
		{
			name:  "elif in dead enclosing scope is not evaluated",
			input: "#if 0\n#if 0\n#elif 1/0\n#endif\n#endif\nok\n",
			want:  "ok\n",
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

func TestConditionalErrors(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantCode string
	}{
		{"stray endif", "#endif\n", errors.ErrCodeDirective},
		{"stray else", "#else\n", errors.ErrCodeDirective},
		{"stray elif", "#elif 1\n", errors.ErrCodeDirective},
		{"elif after else", "#if 0\n#else\n#elif 1\n#endif\n", errors.ErrCodeDirective},
		{"duplicate else", "#if 0\n#else\n#else\n#endif\n", errors.ErrCodeDirective},
		{"division by zero in live if", "#if 1/0\n#endif\n", errors.ErrCodeEvaluation},
		{"empty if expression", "#if\n#endif\n", errors.ErrCodeEvaluation},
		{"malformed defined", "#if defined(1)\n#endif\n", errors.ErrCodeEvaluation},
		{"ifdef without name", "#ifdef\n#endif\n", errors.ErrCodeDirective},
		{"unknown directive", "#frobnicate\n", errors.ErrCodeDirective},
		{"non-identifier directive", "#1\n", errors.ErrCodeDirective},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := runErr(t, tt.input)
			if code := errors.CodeOf(err); code != tt.wantCode {
				t.Errorf("error code = %q, want %q", code, tt.wantCode)
			}
		})
	}
}

func TestDefineErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"missing name", "#define\n"},
		{"paste at body start", "#define BAD ##x\n"},
		{"paste at body end", "#define BAD x##\n"},
		{"duplicate parameter", "#define F(a,a) a\n"},
		{"parameter after ellipsis", "#define F(..., a) a\n"},
		{"unterminated parameter list", "#define F(a\n"},
		{"stringify of non-parameter", "#define S(x) #y\nS(1)\n"},
		{"redefine builtin", "#define __linux__ 2\n"},
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

func TestRedefinitionWarning(t *testing.T) {
	var warnings []string
	cfg := DefaultConfig()
	cfg.OnWarning = func(msg string) { warnings = append(warnings, msg) }
	p := New(cfg)

	// Identical redefinition is silent, conflicting redefinition warns
	input := "#define M 1\n#define M 1\n#define M 2\nM\n"
	out, err := p.Process(input)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if out != "2\n" {
		t.Errorf("Process() = %q, the new body should win", out)
	}
	if len(warnings) != 1 || !strings.Contains(warnings[0], "M") {
		t.Errorf("warnings = %v, want one mentioning M", warnings)
	}
}

func TestUndefThenRedefineBuiltin(t *testing.T) {
	input := "#undef __linux__\n#define __linux__ 2\n__linux__\n"
	if got := run(t, input); got != "2\n" {
		t.Errorf("Process() = %q, want %q", got, "2\n")
	}
}

func TestErrorDirective(t *testing.T) {
	err := runErr(t, "#error unsupported platform\n")
	if code := errors.CodeOf(err); code != errors.ErrCodeUser {
		t.Errorf("error code = %q, want %q", code, errors.ErrCodeUser)
	}
	if !strings.Contains(err.Error(), "unsupported platform") {
		t.Errorf("error = %v, want the directive text", err)
	}
}

func TestWarningDirective(t *testing.T) {
	var warnings []string
	cfg := DefaultConfig()
	cfg.OnWarning = func(msg string) { warnings = append(warnings, msg) }
	p := New(cfg)

	out, err := p.Process("#warning deprecated header\nok\n")
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if out != "ok\n" {
		t.Errorf("Process() = %q", out)
	}
	if len(warnings) != 1 || !strings.Contains(warnings[0], "deprecated header") {
		t.Errorf("warnings = %v", warnings)
	}
}

func TestWarningDirectiveIgnoredUnderMSVC(t *testing.T) {
	var warnings []string
	cfg := WindowsConfig()
	cfg.OnWarning = func(msg string) { warnings = append(warnings, msg) }
	p := New(cfg)

	if _, err := p.Process("#warning nope\n"); err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("MSVC has no #warning, got %v", warnings)
	}
}

func TestUnknownPragmaWarns(t *testing.T) {
	var warnings []string
	cfg := DefaultConfig()
	cfg.OnWarning = func(msg string) { warnings = append(warnings, msg) }
	p := New(cfg)

	if _, err := p.Process("#pragma pack(1)\nok\n"); err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if len(warnings) != 1 || !strings.Contains(warnings[0], "pragma") {
		t.Errorf("warnings = %v", warnings)
	}
}

func TestPragmaOperator(t *testing.T) {
	t.Run("dispatched as a pragma directive", func(t *testing.T) {
		var warnings []string
		cfg := DefaultConfig()
		cfg.OnWarning = func(msg string) { warnings = append(warnings, msg) }
		p := New(cfg)

		out, err := p.Process("_Pragma(\"GCC poison printf\")\nx\n")
		if err != nil {
			t.Fatalf("Process() error = %v", err)
		}
		if out != "x\n" {
			t.Errorf("Process() = %q, want %q", out, "x\n")
		}
		if len(warnings) != 1 || !strings.Contains(warnings[0], "GCC poison printf") {
			t.Errorf("warnings = %v", warnings)
		}
	})

	t.Run("once in an included file", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Loader = include.MapLoader{
			"op.h": "_Pragma(\"once\")\nint op;\n",
		}
		p := New(cfg)

		out, err := p.Process("#include \"op.h\"\n#include \"op.h\"\n")
		if err != nil {
			t.Fatalf("Process() error = %v", err)
		}
		if out != "int op;\n" {
			t.Errorf("Process() = %q, want a single emission", out)
		}
	})

	t.Run("escaped quotes destringized", func(t *testing.T) {
		var warnings []string
		cfg := DefaultConfig()
		cfg.OnWarning = func(msg string) { warnings = append(warnings, msg) }
		p := New(cfg)

		if _, err := p.Process("_Pragma(\"message \\\"hi\\\"\")\n"); err != nil {
			t.Fatalf("Process() error = %v", err)
		}
		if len(warnings) != 1 || !strings.Contains(warnings[0], `message "hi"`) {
			t.Errorf("warnings = %v", warnings)
		}
	})

	t.Run("mid-line operator drops out", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.OnWarning = func(string) {}
		p := New(cfg)

		out, err := p.Process("int x; _Pragma(\"pack(1)\")\n")
		if err != nil {
			t.Fatalf("Process() error = %v", err)
		}
		if out != "int x; \n" {
			t.Errorf("Process() = %q, want %q", out, "int x; \n")
		}
	})

	t.Run("bare identifier passes through", func(t *testing.T) {
		p := New(nil)
		out, err := p.Process("_Pragma + 1\n")
		if err != nil {
			t.Fatalf("Process() error = %v", err)
		}
		if out != "_Pragma + 1\n" {
			t.Errorf("Process() = %q, want %q", out, "_Pragma + 1\n")
		}
	})
}

func TestPragmaOperatorErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"non-string operand", "_Pragma(42)\n"},
		{"missing close paren", "_Pragma(\"x\"\n"},
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

func TestInclude(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Loader = include.MapLoader{
		"config.h": "#define VERSION 3\n",
		"plain.h":  "int helper(void);\n",
		"sys.h":    "typedef int sysint;\n",
	}
	p := New(cfg)

	out, err := p.Process("#include \"config.h\"\n#include \"plain.h\"\n#include <sys.h>\nv = VERSION;\n")
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	want := "int helper(void);\ntypedef int sysint;\nv = 3;\n"
	if out != want {
		t.Errorf("Process() = %q, want %q", out, want)
	}
}

func TestIncludeMacroFormedName(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Loader = include.MapLoader{"config.h": "int ok;\n"}
	p := New(cfg)

	out, err := p.Process("#define HDR \"config.h\"\n#include HDR\n")
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if out != "int ok;\n" {
		t.Errorf("Process() = %q", out)
	}
}

func TestIncludeErrors(t *testing.T) {
	tests := []struct {
		name   string
		loader include.Loader
		input  string
	}{
		{
			name:   "no loader configured",
			loader: nil,
			input:  "#include \"a.h\"\n",
		},
		{
			name:   "not found",
			loader: include.MapLoader{},
			input:  "#include \"missing.h\"\n",
		},
		{
			name: "cycle",
			loader: include.MapLoader{
				"a.h": "#include \"b.h\"\n",
				"b.h": "#include \"a.h\"\n",
			},
			input: "#include \"a.h\"\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Loader = tt.loader
			p := New(cfg)
			_, err := p.Process(tt.input)
			if err == nil {
				t.Fatal("Process() expected an error")
			}
			if code := errors.CodeOf(err); code != errors.ErrCodeLoader {
				t.Errorf("error code = %q, want %q", code, errors.ErrCodeLoader)
			}
		})
	}
}

func TestIncludeDepthLimit(t *testing.T) {
	// A linear chain longer than the limit, so the depth bound fires
	// before the cycle check could
	loader := include.MapLoader{
		"h0.h": "#include \"h1.h\"\n",
		"h1.h": "#include \"h2.h\"\n",
		"h2.h": "#include \"h3.h\"\n",
		"h3.h": "int deep;\n",
	}
	cfg := DefaultConfig()
	cfg.Loader = loader
	cfg.RecursionLimit = 2
	p := New(cfg)

	_, err := p.Process("#include \"h0.h\"\n")
	if err == nil {
		t.Fatal("Process() expected a depth error")
	}
	if code := errors.CodeOf(err); code != errors.ErrCodeRecursionLimit {
		t.Errorf("error code = %q, want %q", code, errors.ErrCodeRecursionLimit)
	}
}

func TestPragmaOnce(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Loader = include.MapLoader{
		"once.h": "#pragma once\nint one;\n",
	}
	p := New(cfg)

	out, err := p.Process("#include \"once.h\"\n#include \"once.h\"\n")
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if out != "int one;\n" {
		t.Errorf("Process() = %q, want a single emission", out)
	}
}

func TestIncludeGuardPattern(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Loader = include.MapLoader{
		"guard.h": "#ifndef GUARD_H\n#define GUARD_H\nint g;\n#endif\n",
	}
	p := New(cfg)

	out, err := p.Process("#include \"guard.h\"\n#include \"guard.h\"\n")
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if out != "int g;\n" {
		t.Errorf("Process() = %q, want a single emission", out)
	}
}

func TestLineDirective(t *testing.T) {
	p := New(DefaultConfig())
	out, err := p.ProcessFile("#line 100 \"other.c\"\nint x = __LINE__;\ns = __FILE__;\n", "orig.c")
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	want := "int x = 100;\ns = \"other.c\";\n"
	if out != want {
		t.Errorf("Process() = %q, want %q", out, want)
	}
}

func TestLineDirectiveNumberOnly(t *testing.T) {
	p := New(DefaultConfig())
	out, err := p.ProcessFile("#line 50\nx = __LINE__;\nf = __FILE__;\n", "keep.c")
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	want := "x = 50;\nf = \"keep.c\";\n"
	if out != want {
		t.Errorf("Process() = %q, want %q", out, want)
	}
}

func TestDynamicMacros(t *testing.T) {
	p := New(DefaultConfig())
	out, err := p.ProcessFile("a = __LINE__;\nb = __LINE__;\nf = __FILE__;\n", "dyn.c")
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	want := "a = 1;\nb = 2;\nf = \"dyn.c\";\n"
	if out != want {
		t.Errorf("Process() = %q, want %q", out, want)
	}
}

func TestDateTimeMacros(t *testing.T) {
	p := New(DefaultConfig())
	out, err := p.Process("__DATE__ __TIME__\n")
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	// "Mmm dd yyyy" "hh:mm:ss" splits into four fields
	if !strings.HasPrefix(out, `"`) || len(strings.Fields(out)) != 4 {
		t.Errorf("Process() = %q, want quoted date and time", out)
	}
}

func TestPredefinedMacroSets(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *Config
		defined []string
		absent  []string
	}{
		{
			name:    "linux gcc",
			cfg:     DefaultConfig(),
			defined: []string{"__linux__", "__unix__", "__GNUC__", "__SIZEOF_POINTER__"},
			absent:  []string{"_WIN32", "__APPLE__", "__clang__", "_MSC_VER"},
		},
		{
			name:    "windows msvc",
			cfg:     WindowsConfig(),
			defined: []string{"_WIN32", "WIN32", "_MSC_VER"},
			absent:  []string{"__linux__", "__GNUC__"},
		},
		{
			name:    "macos clang",
			cfg:     MacOSConfig(),
			defined: []string{"__APPLE__", "__MACH__", "__clang__"},
			absent:  []string{"__linux__", "_WIN32", "_MSC_VER"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(tt.cfg)
			for _, n := range tt.defined {
				if !p.IsDefined(n) {
					t.Errorf("%s should be predefined", n)
				}
			}
			for _, n := range tt.absent {
				if p.IsDefined(n) {
					t.Errorf("%s should not be defined", n)
				}
			}
		})
	}
}

func TestPredefinedVersionValues(t *testing.T) {
	p := New(DefaultConfig())
	out, err := p.Process("#if __GNUC__ >= 4\nmodern\n#endif\n")
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if out != "modern\n" {
		t.Errorf("Process() = %q", out)
	}
}

func TestConfigFingerprint(t *testing.T) {
	a := DefaultConfig()
	b := DefaultConfig()
	if a.Fingerprint() != b.Fingerprint() {
		t.Error("identical configs should share a fingerprint")
	}
	c := WindowsConfig()
	if a.Fingerprint() == c.Fingerprint() {
		t.Error("different configs should differ")
	}
}
