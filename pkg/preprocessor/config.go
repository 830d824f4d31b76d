package preprocessor

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/akam1o/cprep/pkg/include"
	"github.com/akam1o/cprep/pkg/logger"
)

// Target selects the operating system whose predefined macros are
// seeded into a new driver
type Target int

const (
	// TargetLinux predefines __linux__, __unix__, __LP64__
	TargetLinux Target = iota
	// TargetWindows predefines _WIN32, WIN32, _WINDOWS
	TargetWindows
	// TargetMacOS predefines __APPLE__, __MACH__, TARGET_OS_MAC, __LP64__
	TargetMacOS
)

// String returns a string representation of the target
func (t Target) String() string {
	switch t {
	case TargetWindows:
		return "windows"
	case TargetMacOS:
		return "macos"
	default:
		return "linux"
	}
}

// ParseTarget converts a target name to a Target
func ParseTarget(s string) (Target, error) {
	switch strings.ToLower(s) {
	case "linux":
		return TargetLinux, nil
	case "windows":
		return TargetWindows, nil
	case "macos", "darwin":
		return TargetMacOS, nil
	}
	return TargetLinux, fmt.Errorf("unknown target %q (want linux, windows, or macos)", s)
}

// Compiler selects the compiler dialect whose predefined macros and
// quirks are seeded into a new driver
type Compiler int

const (
	// CompilerGCC predefines the __GNUC__ family
	CompilerGCC Compiler = iota
	// CompilerClang predefines the __clang__ family
	CompilerClang
	// CompilerMSVC predefines the _MSC_VER family
	CompilerMSVC
)

// String returns a string representation of the compiler
func (c Compiler) String() string {
	switch c {
	case CompilerClang:
		return "clang"
	case CompilerMSVC:
		return "msvc"
	default:
		return "gcc"
	}
}

// ParseCompiler converts a compiler name to a Compiler
func ParseCompiler(s string) (Compiler, error) {
	switch strings.ToLower(s) {
	case "gcc":
		return CompilerGCC, nil
	case "clang":
		return CompilerClang, nil
	case "msvc":
		return CompilerMSVC, nil
	}
	return CompilerGCC, fmt.Errorf("unknown compiler %q (want gcc, clang, or msvc)", s)
}

// DefaultRecursionLimit bounds macro-expansion and include depth when
// the configuration does not say otherwise
const DefaultRecursionLimit = 128

// WarningHandler receives each warning message synchronously at the
// point of detection. Warnings never abort processing.
type WarningHandler func(msg string)

// Config holds driver configuration. The zero value is not usable;
// start from DefaultConfig or one of its siblings.
type Config struct {
	// Target selects the predefined OS macro set
	Target Target
	// Compiler selects the predefined compiler macro set and dialect
	// quirks (e.g. #warning is ignored under MSVC)
	Compiler Compiler
	// RecursionLimit bounds expansion and include depth
	RecursionLimit int
	// Loader resolves #include names to source text; nil makes every
	// #include a LoaderError
	Loader include.Loader
	// OnWarning, if set, receives warnings (differing redefinition,
	// unknown pragma, #warning)
	OnWarning WarningHandler
	// Logger receives structured engine diagnostics; nil disables them
	Logger *logger.Logger
}

// DefaultConfig returns the Linux/GCC configuration
func DefaultConfig() *Config {
	return &Config{
		Target:         TargetLinux,
		Compiler:       CompilerGCC,
		RecursionLimit: DefaultRecursionLimit,
	}
}

// WindowsConfig returns the Windows/MSVC configuration
func WindowsConfig() *Config {
	cfg := DefaultConfig()
	cfg.Target = TargetWindows
	cfg.Compiler = CompilerMSVC
	return cfg
}

// MacOSConfig returns the macOS/Clang configuration
func MacOSConfig() *Config {
	cfg := DefaultConfig()
	cfg.Target = TargetMacOS
	cfg.Compiler = CompilerClang
	return cfg
}

// Fingerprint returns a stable digest of the semantic configuration
// fields, used by callers that key caches on (input, config)
func (c *Config) Fingerprint() string {
	h := sha256.New()
	fmt.Fprintf(h, "target=%s;compiler=%s;limit=%d", c.Target, c.Compiler, c.RecursionLimit)
	return hex.EncodeToString(h.Sum(nil))
}
