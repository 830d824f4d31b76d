// Package profile loads preprocessing profiles: YAML files bundling a
// target/compiler selection, recursion limit, include search
// directories, and command-line style macro definitions for the CLI.
package profile

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/akam1o/cprep/pkg/errors"
	"github.com/akam1o/cprep/pkg/logger"
	"github.com/akam1o/cprep/pkg/preprocessor"
)

// Profile is the YAML shape of a preprocessing profile
type Profile struct {
	// Target is linux, windows, or macos
	Target string `yaml:"target"`
	// Compiler is gcc, clang, or msvc
	Compiler string `yaml:"compiler"`
	// RecursionLimit bounds expansion/include depth; 0 means default
	RecursionLimit int `yaml:"recursion_limit"`
	// IncludeDirs are the #include search directories
	IncludeDirs []string `yaml:"include_dirs"`
	// Defines maps macro names to replacement text; an empty value
	// defines the name as 1
	Defines map[string]string `yaml:"defines"`
	// Undefines lists predefined macros to remove
	Undefines []string `yaml:"undefines"`
}

// Load reads and validates a profile from a YAML file
// Note: This function logs diagnostic information if a logger is provided
func Load(path string, log *logger.Logger) (*Profile, error) {
	if log != nil {
		log.Debug("Loading preprocessing profile", slog.String("path", path))
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, errors.ProfileNotFound(path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(
			err,
			errors.ErrCodeProfileParseError,
			fmt.Sprintf("failed to read profile: %s", path),
			"Permission denied or file is not readable",
			"Check file permissions and ensure the profile is readable",
		)
	}

	// Strict mode rejects unknown fields so typos surface early
	var p Profile
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&p); err != nil {
		return nil, errors.ProfileParseError(path, err)
	}

	if err := Validate(&p); err != nil {
		return nil, errors.Wrap(
			err,
			errors.ErrCodeProfileValidation,
			fmt.Sprintf("profile validation failed: %s", path),
			"The profile contains invalid values",
			"Review the error details and fix the profile file",
		)
	}

	if log != nil {
		log.Info("Profile loaded",
			slog.String("target", p.Target),
			slog.String("compiler", p.Compiler),
			slog.Int("include_dirs", len(p.IncludeDirs)),
			slog.Int("defines", len(p.Defines)),
		)
	}
	return &p, nil
}

// Validate checks enum fields and ranges
func Validate(p *Profile) error {
	if p == nil {
		return fmt.Errorf("profile is nil")
	}
	if p.Target != "" {
		if _, err := preprocessor.ParseTarget(p.Target); err != nil {
			return err
		}
	}
	if p.Compiler != "" {
		if _, err := preprocessor.ParseCompiler(p.Compiler); err != nil {
			return err
		}
	}
	if p.RecursionLimit < 0 || p.RecursionLimit > 10000 {
		return fmt.Errorf("recursion_limit %d out of range (0-10000)", p.RecursionLimit)
	}
	for _, dir := range p.IncludeDirs {
		if dir == "" {
			return fmt.Errorf("include_dirs contains an empty entry")
		}
	}
	for name := range p.Defines {
		if name == "" {
			return fmt.Errorf("defines contains an empty macro name")
		}
	}
	return nil
}

// Apply merges the profile into a preprocessor configuration. Flags
// parsed after the profile can still override individual fields.
func (p *Profile) Apply(cfg *preprocessor.Config) error {
	if p.Target != "" {
		t, err := preprocessor.ParseTarget(p.Target)
		if err != nil {
			return err
		}
		cfg.Target = t
	}
	if p.Compiler != "" {
		c, err := preprocessor.ParseCompiler(p.Compiler)
		if err != nil {
			return err
		}
		cfg.Compiler = c
	}
	if p.RecursionLimit > 0 {
		cfg.RecursionLimit = p.RecursionLimit
	}
	return nil
}
