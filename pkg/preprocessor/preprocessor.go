// Package preprocessor implements a standalone C preprocessing engine:
// it consumes raw C source text and produces fully macro-expanded,
// directive-resolved output text. It performs no parsing of C proper
// beyond the constant expressions of #if/#elif.
package preprocessor

import (
	"log/slog"
	"strings"

	"github.com/akam1o/cprep/pkg/errors"
	"github.com/akam1o/cprep/pkg/lexer"
	"github.com/akam1o/cprep/pkg/macro"
	"github.com/akam1o/cprep/pkg/token"
)

// Preprocessor is a stateful preprocessing session. The macro table
// and conditional stack persist across Process calls, so one driver
// can preprocess a translation unit fed in pieces. A driver must not
// be used concurrently from multiple goroutines; distinct drivers
// share nothing and may run in parallel.
type Preprocessor struct {
	cfg   Config
	table *macro.Table
	cond  []frame

	// Include handling
	includeDepth int
	includeStack []string
	onceFiles    map[string]bool

	// Diagnostic position: physical file plus the #line overrides
	curFile      string
	lineDelta    int
	fileOverride string

	lastErr error
}

// New creates a driver from the given configuration, seeding the macro
// table with the target/compiler predefined macros. A nil cfg selects
// DefaultConfig.
func New(cfg *Config) *Preprocessor {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	c := *cfg
	if c.RecursionLimit <= 0 {
		c.RecursionLimit = DefaultRecursionLimit
	}
	p := &Preprocessor{
		cfg:       c,
		table:     macro.NewTable(),
		onceFiles: make(map[string]bool),
		curFile:   "<input>",
	}
	seedPredefined(p.table, &c)
	return p
}

// Process preprocesses one piece of input text and returns the output
// text. On failure the error is also recorded in the driver's
// last-error slot. Macro table and conditional stack mutations applied
// before the failure stay applied.
func (p *Preprocessor) Process(input string) (string, error) {
	return p.ProcessFile(input, "<input>")
}

// ProcessFile is Process with an explicit file name for diagnostics,
// __FILE__, and relative include resolution.
func (p *Preprocessor) ProcessFile(input, file string) (string, error) {
	out, err := p.processText(input, file)
	if err != nil {
		p.lastErr = err
		if p.cfg.Logger != nil {
			p.cfg.Logger.Error("preprocessing failed",
				slog.String("file", file),
				slog.Any("error", err),
			)
		}
		return "", err
	}
	return out, nil
}

// LastError returns the most recent failing Process error, or nil.
// The slot is per-driver, so concurrent drivers never observe each
// other's failures.
func (p *Preprocessor) LastError() error {
	return p.lastErr
}

// Define installs a macro programmatically. The definition uses
// command-line spelling: "NAME", "NAME=VALUE", or a full form such as
// "ADD(a,b)=((a)+(b))". A bare NAME defines it as 1.
func (p *Preprocessor) Define(def string) error {
	name, value := def, "1"
	if i := strings.IndexByte(def, '='); i >= 0 {
		name, value = def[:i], def[i+1:]
	}
	// NAME(params) keeps its adjacency because only the body is
	// separated by the inserted space
	toks, err := lexer.Tokenize(name+" "+value, "<define>")
	if err != nil {
		return err
	}
	return p.handleDefine(toks, 0)
}

// Undef removes a macro definition, builtin or not
func (p *Preprocessor) Undef(name string) {
	p.table.Undef(name)
}

// IsDefined reports whether name is currently defined
func (p *Preprocessor) IsDefined(name string) bool {
	return p.table.Contains(name)
}

// MacroNames returns the sorted names of all current definitions
func (p *Preprocessor) MacroNames() []string {
	return p.table.Names()
}

// processText runs the full lex/directive/expand pipeline over one
// text, which is either a Process input or an included fragment
func (p *Preprocessor) processText(input, file string) (string, error) {
	prevFile, prevDelta, prevOverride := p.curFile, p.lineDelta, p.fileOverride
	p.curFile, p.lineDelta, p.fileOverride = file, 0, ""
	defer func() {
		p.curFile, p.lineDelta, p.fileOverride = prevFile, prevDelta, prevOverride
	}()

	toks, err := lexer.Tokenize(input, file)
	if err != nil {
		return "", err
	}

	var out strings.Builder
	for start := 0; start < len(toks); {
		end := start
		for end < len(toks) && toks[end].Kind != token.KindNewline {
			end++
		}
		line := toks[start:end]
		hasNewline := end < len(toks)
		if hasNewline {
			end++
		}

		if hash, rest, ok := directiveLine(line); ok {
			if err := p.handleDirective(rest, hash.Line, &out); err != nil {
				return "", p.locate(err, hash.Line)
			}
		} else if p.active() && len(line) > 0 {
			physLine := line[0].Line
			line, err := p.rewritePragmaOperators(line)
			if err != nil {
				return "", p.locate(err, physLine)
			}
			if len(trimBlank(line)) == 0 {
				// The line held only _Pragma operators; consume it
				// like a directive line
				start = end
				continue
			}
			expanded, err := p.expand(line)
			if err != nil {
				return "", p.locate(err, physLine)
			}
			out.WriteString(assemble(expanded))
			if hasNewline {
				out.WriteByte('\n')
			}
		}
		start = end
	}
	return out.String(), nil
}

// directiveLine reports whether the line's first non-whitespace token
// is #, returning that token and the rest of the line
func directiveLine(line []token.Token) (token.Token, []token.Token, bool) {
	for i, t := range line {
		if t.Kind == token.KindWhitespace {
			continue
		}
		if t.Is("#") {
			return t, line[i+1:], true
		}
		return token.Token{}, nil, false
	}
	return token.Token{}, nil, false
}

// locate annotates an engine error with the reported file and line if
// it does not already carry a location
func (p *Preprocessor) locate(err error, physLine int) error {
	var e *errors.Error
	if errors.As(err, &e) && e.File == "" {
		return e.At(p.reportedFile(), p.reportedLine(physLine))
	}
	return err
}

// reportedLine maps a physical line to the diagnostic line, honoring
// #line overrides
func (p *Preprocessor) reportedLine(physLine int) int {
	return physLine + p.lineDelta
}

// reportedFile returns the diagnostic file name, honoring #line
func (p *Preprocessor) reportedFile() string {
	if p.fileOverride != "" {
		return p.fileOverride
	}
	return p.curFile
}

// warn delivers a warning to the configured handler, if any. Warnings
// never abort processing.
func (p *Preprocessor) warn(msg string) {
	if p.cfg.Logger != nil {
		p.cfg.Logger.Debug("warning", slog.String("message", msg))
	}
	if p.cfg.OnWarning != nil {
		p.cfg.OnWarning(msg)
	}
}
