package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/google/uuid"

	"github.com/akam1o/cprep/pkg/logger"
	"github.com/akam1o/cprep/pkg/preprocessor"
)

// interactiveShell feeds lines to a persistent driver so macro
// definitions and conditional state carry from one input to the next
type interactiveShell struct {
	p       *preprocessor.Preprocessor
	cfg     *preprocessor.Config
	f       *flags
	rl      *readline.Instance
	session string
}

func newInteractiveShell(cfg *preprocessor.Config, f *flags) (*interactiveShell, error) {
	p, err := newDriver(cfg, f)
	if err != nil {
		return nil, err
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:            "cprep> ",
		HistoryFile:       filepath.Join(os.TempDir(), ".cprep-history"),
		AutoComplete:      createCompleter(),
		InterruptPrompt:   "^C",
		EOFPrompt:         ":quit",
		HistorySearchFold: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize readline: %w", err)
	}

	return &interactiveShell{
		p:       p,
		cfg:     cfg,
		f:       f,
		rl:      rl,
		session: uuid.New().String(),
	}, nil
}

func (sh *interactiveShell) run() error {
	defer sh.rl.Close()

	fmt.Println("cprep interactive session")
	fmt.Println("Enter source lines or directives; type ':help' for commands")
	fmt.Println()

	for {
		line, err := sh.rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}

		if strings.HasPrefix(strings.TrimSpace(line), ":") {
			if sh.command(strings.TrimSpace(line)) {
				break
			}
			continue
		}

		output, err := sh.p.Process(line + "\n")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			continue
		}
		// Directive and inactive lines produce no output
		if output != "" {
			fmt.Print(output)
		}
	}

	return nil
}

// command handles shell meta commands; returns true to exit
func (sh *interactiveShell) command(line string) bool {
	parts := strings.Fields(line)
	switch parts[0] {
	case ":help":
		fmt.Println("Commands:")
		fmt.Println("  :defines          List defined macros")
		fmt.Println("  :defined <name>   Check whether a macro is defined")
		fmt.Println("  :reset            Discard all state and start a fresh session")
		fmt.Println("  :quit, :exit      Leave the session")

	case ":defines":
		for _, name := range sh.p.MacroNames() {
			fmt.Println(name)
		}

	case ":defined":
		if len(parts) != 2 {
			fmt.Fprintln(os.Stderr, "Usage: :defined <name>")
			return false
		}
		fmt.Println(sh.p.IsDefined(parts[1]))

	case ":reset":
		p, err := newDriver(sh.cfg, sh.f)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return false
		}
		sh.p = p
		sh.session = uuid.New().String()
		fmt.Println("Session reset")

	case ":quit", ":exit":
		return true

	default:
		fmt.Fprintf(os.Stderr, "Unknown command %s. Type ':help' for available commands\n", parts[0])
	}
	return false
}

func createCompleter() *readline.PrefixCompleter {
	return readline.NewPrefixCompleter(
		readline.PcItem(":help"),
		readline.PcItem(":defines"),
		readline.PcItem(":defined"),
		readline.PcItem(":reset"),
		readline.PcItem(":quit"),
		readline.PcItem(":exit"),
		readline.PcItem("#define"),
		readline.PcItem("#undef"),
		readline.PcItem("#ifdef"),
		readline.PcItem("#ifndef"),
		readline.PcItem("#if"),
		readline.PcItem("#elif"),
		readline.PcItem("#else"),
		readline.PcItem("#endif"),
		readline.PcItem("#include"),
		readline.PcItem("#pragma"),
	)
}

// runInteractive starts the interactive shell
func runInteractive(cfg *preprocessor.Config, f *flags, log *logger.Logger) int {
	shell, err := newInteractiveShell(cfg, f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to initialize interactive shell: %v\n", err)
		return ExitOperationError
	}

	log.Debug("Interactive session started", slog.String("session", shell.session))

	if err := shell.run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitOperationError
	}
	return ExitSuccess
}
