package preprocessor

import (
	"fmt"
	"time"

	"github.com/akam1o/cprep/pkg/lexer"
	"github.com/akam1o/cprep/pkg/macro"
)

// Predefined macro sets per target and compiler. Values follow GCC
// 11.2, Clang 14.0 and MSVC 19.20 (VS 2019).
var targetMacros = map[Target][][2]string{
	TargetLinux: {
		{"__linux__", "1"},
		{"__unix__", "1"},
		{"__LP64__", "1"},
	},
	TargetWindows: {
		{"_WIN32", "1"},
		{"WIN32", "1"},
		{"_WINDOWS", "1"},
	},
	TargetMacOS: {
		{"__APPLE__", "1"},
		{"__MACH__", "1"},
		{"TARGET_OS_MAC", "1"},
		{"__LP64__", "1"},
	},
}

var compilerMacros = map[Compiler][][2]string{
	CompilerGCC: {
		{"__GNUC__", "11"},
		{"__GNUC_MINOR__", "2"},
		{"__GNUC_PATCHLEVEL__", "0"},
		{"_GNU_SOURCE", "1"},
	},
	CompilerClang: {
		{"__clang__", "1"},
		{"__clang_major__", "14"},
		{"__clang_minor__", "0"},
		{"__clang_patchlevel__", "0"},
	},
	CompilerMSVC: {
		{"_MSC_VER", "1920"},
		{"_MSC_FULL_VER", "192027508"},
		{"WIN32_LEAN_AND_MEAN", ""},
		{"_CRT_SECURE_NO_WARNINGS", ""},
	},
}

// Compiler intrinsics defined empty so their presence tests succeed
// without the engine understanding them
var intrinsicStubs = []string{
	"__builtin_va_start",
	"__builtin_va_end",
	"__builtin_va_arg",
	"__builtin_offsetof",
	"__builtin_types_compatible_p",
	"__builtin_constant_p",
	"__builtin_expect",
	"__builtin_clz",
	"__builtin_ctz",
	"__builtin_popcount",
	"__builtin_bswap16",
	"__builtin_bswap32",
	"__builtin_bswap64",
}

var sizeofStubs = [][2]string{
	{"__SIZEOF_INT__", "4"},
	{"__SIZEOF_LONG__", "8"},
	{"__SIZEOF_POINTER__", "8"},
	{"__SIZEOF_LONG_LONG__", "8"},
}

// dynamicMacros are builtins whose replacement is computed at the
// point of use rather than stored in the table
var dynamicMacros = []string{"__LINE__", "__FILE__", "__DATE__", "__TIME__"}

// seedPredefined populates a fresh macro table from the configuration
func seedPredefined(table *macro.Table, cfg *Config) {
	for _, kv := range targetMacros[cfg.Target] {
		defineBuiltin(table, kv[0], kv[1], false)
	}
	for _, kv := range compilerMacros[cfg.Compiler] {
		defineBuiltin(table, kv[0], kv[1], false)
	}
	for _, name := range intrinsicStubs {
		defineBuiltin(table, name, "", false)
	}
	for _, kv := range sizeofStubs {
		defineBuiltin(table, kv[0], kv[1], false)
	}
	for _, name := range dynamicMacros {
		defineBuiltin(table, name, "", true)
	}
}

func defineBuiltin(table *macro.Table, name, body string, dynamic bool) {
	toks, err := lexer.Tokenize(body, "<builtin>")
	if err != nil {
		// Builtin bodies are literals under our control
		panic(fmt.Sprintf("bad builtin macro %s: %v", name, err))
	}
	// Ignoring the result: seeding happens on an empty table
	_, _ = table.Define(&macro.Macro{
		Name:    name,
		Body:    toks,
		Builtin: true,
		Dynamic: dynamic,
		File:    "<builtin>",
	})
}

// formatDate renders the __DATE__ spelling "Mmm dd yyyy" with a
// space-padded day, matching GCC
func formatDate(now time.Time) string {
	return fmt.Sprintf("%s %2d %d", now.Format("Jan"), now.Day(), now.Year())
}

// formatTime renders the __TIME__ spelling "hh:mm:ss"
func formatTime(now time.Time) string {
	return now.Format("15:04:05")
}
