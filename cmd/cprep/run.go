package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/akam1o/cprep/pkg/cache"
	"github.com/akam1o/cprep/pkg/logger"
	"github.com/akam1o/cprep/pkg/preprocessor"
)

// result holds one file's outcome, kept in input order
type result struct {
	file   string
	input  string
	output string
	cached bool
	err    error
}

// runBatch preprocesses the given files and writes the combined output
// to stdout or -o. Files are distributed over a worker pool; each
// worker builds a fresh driver per file.
func runBatch(files []string, cfg *preprocessor.Config, f *flags, store cache.Cache, log *logger.Logger) int {
	session := uuid.New().String()
	log.Debug("Starting batch run",
		slog.String("session", session),
		slog.Int("files", len(files)),
		slog.Int("jobs", f.jobs),
	)

	jobs := make(chan int)
	results := make([]result, len(files))

	workers := f.jobs
	if workers < 1 {
		workers = 1
	}
	if workers > len(files) {
		workers = len(files)
	}

	var mu sync.Mutex // serializes cache access across workers
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = processOne(files[i], cfg, f, store, &mu, session, log)
			}
		}()
	}
	for i := range files {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	out := os.Stdout
	if f.output != "" {
		file, err := os.Create(f.output)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return ExitOperationError
		}
		defer file.Close()
		out = file
	}

	exitCode := ExitSuccess
	for _, r := range results {
		if r.err != nil {
			fmt.Fprintf(os.Stderr, "cprep: %s: %v\n", r.file, r.err)
			exitCode = ExitOperationError
			continue
		}
		if r.cached {
			log.Debug("Cache hit", slog.String("file", r.file))
		}
		if f.diff {
			printDiff(out, r.file, r.input, r.output)
		} else {
			fmt.Fprint(out, r.output)
		}
	}
	return exitCode
}

func processOne(path string, cfg *preprocessor.Config, f *flags, store cache.Cache, mu *sync.Mutex, session string, log *logger.Logger) result {
	var data []byte
	var err error
	if path == "-" {
		path = "<stdin>"
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return result{file: path, err: err}
	}
	input := string(data)

	var key string
	if store != nil {
		key = cache.Key(input, cfg.Fingerprint())
		mu.Lock()
		entry, ok, err := store.Get(key)
		mu.Unlock()
		if err != nil {
			log.Debug("Cache read failed",
				slog.String("file", path),
				slog.Any("error", err),
			)
		} else if ok {
			return result{file: path, input: input, output: entry.Output, cached: true}
		}
	}

	p, err := newDriver(cfg, f)
	if err != nil {
		return result{file: path, err: err}
	}
	output, err := p.ProcessFile(input, path)
	if err != nil {
		return result{file: path, err: err}
	}

	if store != nil {
		mu.Lock()
		// Cache write failures are not fatal; the output is already
		// in hand
		_ = store.Put(&cache.Entry{
			Key:     key,
			File:    path,
			Output:  output,
			Session: session,
		})
		mu.Unlock()
	}

	return result{file: path, input: input, output: output}
}

// printDiff renders an input/output comparison in unified style using
// line-level diffing
func printDiff(out *os.File, path, input, output string) {
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(input, output)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	fmt.Fprintf(out, "--- %s\n+++ %s (preprocessed)\n", path, path)
	for _, d := range diffs {
		prefix := " "
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			prefix = "-"
		case diffmatchpatch.DiffInsert:
			prefix = "+"
		}
		for _, line := range splitKeepNonEmpty(d.Text) {
			fmt.Fprintf(out, "%s%s\n", prefix, line)
		}
	}
}

func splitKeepNonEmpty(text string) []string {
	lines := strings.Split(strings.TrimSuffix(text, "\n"), "\n")
	if len(lines) == 1 && lines[0] == "" {
		return nil
	}
	return lines
}
