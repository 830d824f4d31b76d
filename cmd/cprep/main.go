package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strings"

	"github.com/akam1o/cprep/pkg/cache"
	"github.com/akam1o/cprep/pkg/include"
	"github.com/akam1o/cprep/pkg/logger"
	"github.com/akam1o/cprep/pkg/preprocessor"
	"github.com/akam1o/cprep/pkg/profile"
)

var (
	// Version information (set by ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// Exit codes
const (
	ExitSuccess        = 0
	ExitOperationError = 1
	ExitUsageError     = 2
)

// stringList collects repeatable flags (-I, -D, -U)
type stringList []string

func (s *stringList) String() string {
	return strings.Join(*s, ",")
}

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

type flags struct {
	profilePath    string
	target         string
	compiler       string
	recursionLimit int
	includeDirs    stringList
	defines        stringList
	undefines      stringList
	output         string
	diff           bool
	cacheEnabled   bool
	cacheBackend   string
	cachePath      string
	jobs           int
	interactive    bool
	logLevel       string
	showVersion    bool
}

func main() {
	f := parseFlags()

	if f.showVersion {
		fmt.Printf("cprep version %s (commit: %s, built: %s)\n", Version, Commit, BuildDate)
		os.Exit(ExitSuccess)
	}

	level, err := parseLogLevel(f.logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitUsageError)
	}
	logCfg := logger.DefaultConfig()
	logCfg.Level = level
	log := logger.New("cprep", logCfg)

	cfg, err := buildConfig(f, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitUsageError)
	}

	var store cache.Cache
	if f.cacheEnabled {
		store, err = openCache(f)
		if err != nil {
			log.Error("Failed to open result cache", slog.Any("error", err))
			os.Exit(ExitOperationError)
		}
	}

	var code int
	switch {
	case f.interactive:
		code = runInteractive(cfg, f, log)
	case flag.NArg() < 1:
		// No inputs named, read from stdin
		code = runBatch([]string{"-"}, cfg, f, store, log)
	default:
		code = runBatch(flag.Args(), cfg, f, store, log)
	}

	if store != nil {
		if err := store.Close(); err != nil {
			log.Error("Failed to close result cache", slog.Any("error", err))
		}
	}
	os.Exit(code)
}

func parseFlags() *flags {
	f := &flags{}

	flag.StringVar(&f.profilePath, "profile", "",
		"Path to a YAML preprocessing profile")
	flag.StringVar(&f.target, "target", "",
		"Target OS for predefined macros (linux, windows, macos)")
	flag.StringVar(&f.compiler, "compiler", "",
		"Compiler dialect for predefined macros (gcc, clang, msvc)")
	flag.IntVar(&f.recursionLimit, "recursion-limit", 0,
		"Maximum macro expansion and include depth (0 = default)")
	flag.Var(&f.includeDirs, "I",
		"Add a directory to the #include search path (repeatable)")
	flag.Var(&f.defines, "D",
		"Define a macro as NAME or NAME=VALUE (repeatable)")
	flag.Var(&f.undefines, "U",
		"Undefine a predefined macro (repeatable)")
	flag.StringVar(&f.output, "o", "",
		"Write output to file instead of stdout")
	flag.BoolVar(&f.diff, "diff", false,
		"Print a diff between input and preprocessed output")
	flag.BoolVar(&f.cacheEnabled, "cache", false,
		"Cache preprocessing results")
	flag.StringVar(&f.cacheBackend, "cache-backend", "sqlite",
		"Cache backend (memory, sqlite)")
	flag.StringVar(&f.cachePath, "cache-path", defaultCachePath(),
		"SQLite cache database path")
	flag.IntVar(&f.jobs, "jobs", runtime.NumCPU(),
		"Number of files to preprocess in parallel")
	flag.BoolVar(&f.interactive, "interactive", false,
		"Start an interactive session")
	flag.StringVar(&f.logLevel, "log-level", "warn",
		"Log level (debug, info, warn, error)")
	flag.BoolVar(&f.showVersion, "version", false,
		"Show version information")

	flag.Usage = showUsage
	flag.Parse()

	return f
}

// buildConfig layers profile, flags, and -D/-U definitions into a
// driver configuration. Flags override profile fields.
func buildConfig(f *flags, log *logger.Logger) (*preprocessor.Config, error) {
	cfg := preprocessor.DefaultConfig()
	cfg.Logger = log

	var dirs []string
	if f.profilePath != "" {
		prof, err := profile.Load(f.profilePath, log)
		if err != nil {
			return nil, err
		}
		if err := prof.Apply(cfg); err != nil {
			return nil, err
		}
		dirs = append(dirs, prof.IncludeDirs...)
		for name, value := range prof.Defines {
			def := name
			if value != "" {
				def = name + "=" + value
			}
			f.defines = append(f.defines, def)
		}
		f.undefines = append(f.undefines, prof.Undefines...)
	}

	if f.target != "" {
		t, err := preprocessor.ParseTarget(f.target)
		if err != nil {
			return nil, err
		}
		cfg.Target = t
	}
	if f.compiler != "" {
		c, err := preprocessor.ParseCompiler(f.compiler)
		if err != nil {
			return nil, err
		}
		cfg.Compiler = c
	}
	if f.recursionLimit > 0 {
		cfg.RecursionLimit = f.recursionLimit
	}

	dirs = append(dirs, f.includeDirs...)
	cfg.Loader = include.NewDirLoader(dirs...)

	cfg.OnWarning = func(msg string) {
		fmt.Fprintf(os.Stderr, "cprep: warning: %s\n", msg)
	}

	return cfg, nil
}

// newDriver creates a driver and installs the command-line macro
// definitions. Each input file gets its own driver so per-file state
// (conditionals, #pragma once, __FILE__) never leaks across inputs.
func newDriver(cfg *preprocessor.Config, f *flags) (*preprocessor.Preprocessor, error) {
	p := preprocessor.New(cfg)
	for _, def := range f.defines {
		if err := p.Define(def); err != nil {
			return nil, fmt.Errorf("-D %s: %w", def, err)
		}
	}
	for _, name := range f.undefines {
		p.Undef(name)
	}
	return p, nil
}

func openCache(f *flags) (cache.Cache, error) {
	cfg := &cache.Config{
		Backend:    cache.Backend(f.cacheBackend),
		SQLitePath: f.cachePath,
	}
	return cache.New(cfg)
}

func defaultCachePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".cprep-cache.db"
	}
	return home + "/.cache/cprep/results.db"
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q (want debug, info, warn, or error)", s)
}

func showUsage() {
	fmt.Fprintf(os.Stderr, `Usage: cprep [options] [file ...]

With no file arguments, input is read from stdin.

Preprocess C source files: expand macros, evaluate conditionals, and
resolve #include directives.

Options:
  -profile <path>        YAML preprocessing profile
  -target <name>         Target OS (linux, windows, macos; default: linux)
  -compiler <name>       Compiler dialect (gcc, clang, msvc; default: gcc)
  -recursion-limit <n>   Expansion and include depth bound (default: %d)
  -I <dir>               Add #include search directory (repeatable)
  -D <name[=value]>      Define a macro (repeatable)
  -U <name>              Undefine a macro (repeatable)
  -o <path>              Write output to file instead of stdout
  -diff                  Show a diff between input and output
  -cache                 Cache preprocessing results
  -cache-backend <name>  Cache backend: memory or sqlite (default: sqlite)
  -cache-path <path>     SQLite cache database path
  -jobs <n>              Parallel workers for multiple files
  -interactive           Start an interactive session
  -log-level <level>     debug, info, warn, error (default: warn)
  -version               Show version information

Examples:
  cprep main.c
  cprep -D DEBUG -D 'MAX(a,b)=((a)>(b)?(a):(b))' -I include main.c
  cprep -target windows -compiler msvc winmain.c
  cprep -profile build.yaml -o out.i src/*.c
  cprep -interactive

`, preprocessor.DefaultRecursionLimit)
}
