package errors

import (
	"errors"
	"fmt"
)

// Error represents a cprep error with context
type Error struct {
	// Code is the error code (e.g., "DIRECTIVE_ERROR")
	Code string
	// Message is the human-readable error message
	Message string
	// Cause describes why the error occurred
	Cause string
	// Action suggests what the user should do
	Action string
	// File is the source file being preprocessed when the error occurred
	File string
	// Line is the 1-based source line of the error, 0 if unknown
	Line int
	// Underlying is the wrapped error
	Underlying error
}

// Error implements the error interface
func (e *Error) Error() string {
	loc := ""
	if e.File != "" && e.Line > 0 {
		loc = fmt.Sprintf("%s:%d: ", e.File, e.Line)
	}
	if e.Underlying != nil {
		return fmt.Sprintf("%s[%s] %s: %v", loc, e.Code, e.Message, e.Underlying)
	}
	return fmt.Sprintf("%s[%s] %s", loc, e.Code, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *Error) Unwrap() error {
	return e.Underlying
}

// At returns a copy of the error annotated with a source location
func (e *Error) At(file string, line int) *Error {
	clone := *e
	clone.File = file
	clone.Line = line
	return &clone
}

// New creates a new Error
func New(code, message, cause, action string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
		Action:  action,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(err error, code, message, cause, action string) *Error {
	return &Error{
		Code:       code,
		Message:    message,
		Cause:      cause,
		Action:     action,
		Underlying: err,
	}
}

// Common error codes
const (
	// Engine errors (fatal to the current Process call)
	ErrCodeLexical        = "LEXICAL_ERROR"
	ErrCodeDirective      = "DIRECTIVE_ERROR"
	ErrCodeRecursionLimit = "RECURSION_LIMIT_EXCEEDED"
	ErrCodeEvaluation     = "EVALUATION_ERROR"
	ErrCodePaste          = "PASTE_ERROR"
	ErrCodeLoader         = "LOADER_ERROR"
	ErrCodeUser           = "USER_ERROR"

	// Profile errors
	ErrCodeProfileNotFound   = "PROFILE_NOT_FOUND"
	ErrCodeProfileParseError = "PROFILE_PARSE_ERROR"
	ErrCodeProfileValidation = "PROFILE_VALIDATION_ERROR"

	// Cache errors
	ErrCodeCacheBackend   = "CACHE_BACKEND_ERROR"
	ErrCodeCacheOperation = "CACHE_OPERATION_ERROR"
)

// Common error constructors

// Lexical creates a lexical error (unterminated literal or comment)
func Lexical(detail string) *Error {
	return New(
		ErrCodeLexical,
		detail,
		"The source text contains a construct the lexer cannot finish scanning",
		"Close the unterminated string, character constant, or block comment",
	)
}

// Directive creates a malformed-directive error
func Directive(detail string) *Error {
	return New(
		ErrCodeDirective,
		detail,
		"A preprocessor directive is malformed or used out of context",
		"Fix the directive syntax or the conditional nesting around it",
	)
}

// ArgMismatch creates an argument-count mismatch error for a macro call
func ArgMismatch(name string, want, got int, variadic bool) *Error {
	rel := "exactly"
	if variadic {
		rel = "at least"
	}
	return New(
		ErrCodeDirective,
		fmt.Sprintf("macro %s expects %s %d argument(s) but got %d", name, rel, want, got),
		"The macro invocation does not match the parameter list of its definition",
		"Adjust the invocation argument list to match the macro definition",
	)
}

// RecursionLimit creates a recursion-limit error
func RecursionLimit(kind string, limit int) *Error {
	return New(
		ErrCodeRecursionLimit,
		fmt.Sprintf("%s depth exceeded recursion limit %d", kind, limit),
		"Macro expansion or include nesting did not terminate within the configured ceiling",
		"Break the recursive macro or include chain, or raise RecursionLimit in the config",
	)
}

// Evaluation creates a constant-expression evaluation error
func Evaluation(detail string) *Error {
	return New(
		ErrCodeEvaluation,
		detail,
		"The #if/#elif constant expression is malformed or divides by zero",
		"Correct the conditional expression",
	)
}

// Paste creates a token-pasting error
func Paste(lhs, rhs string) *Error {
	return New(
		ErrCodePaste,
		fmt.Sprintf("pasting %q and %q does not form a single valid token", lhs, rhs),
		"The ## operator produced text that does not re-lex as one token",
		"Rework the macro so both paste operands concatenate into a valid token",
	)
}

// LoaderFailure creates an include-loader error
func LoaderFailure(name string, err error) *Error {
	return Wrap(
		err,
		ErrCodeLoader,
		fmt.Sprintf("cannot load include %q", name),
		"The injected include loader could not resolve or read the file",
		"Check the include name and the loader's search directories",
	)
}

// User creates a #error directive error
func User(msg string) *Error {
	return New(
		ErrCodeUser,
		msg,
		"The source contains a #error directive on an active branch",
		"Inspect the failing #error condition in the source",
	)
}

// ProfileNotFound creates a profile not found error
func ProfileNotFound(path string) *Error {
	return New(
		ErrCodeProfileNotFound,
		fmt.Sprintf("profile file not found: %s", path),
		"The specified profile file does not exist",
		"Check the file path passed to -profile",
	)
}

// ProfileParseError creates a profile parse error
func ProfileParseError(path string, err error) *Error {
	return Wrap(
		err,
		ErrCodeProfileParseError,
		fmt.Sprintf("failed to parse profile file: %s", path),
		"The profile file contains invalid YAML syntax or unknown fields",
		"Review the profile syntax and field names",
	)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// CodeOf returns the cprep error code of err, or "" if err carries none
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
