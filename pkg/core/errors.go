package core

import (
	"errors"
	"fmt"

	"github.com/leapstack-labs/leaptmpl/pkg/token"
)

// =============================================================================
// Error kinds
// =============================================================================

// Kind classifies every failure the engine can report.
//
// Kind implements error so that callers can match on it directly:
//
//	if errors.Is(err, core.MissingParent) { ... }
type Kind int

// Error kinds, grouped by the stage that reports them.
const (
	KindUnknown Kind = iota

	// Parse and analysis
	SyntaxError
	DuplicateBlock
	DuplicateMacro
	DuplicateExtends

	// Registration and resolution
	DuplicateTemplate
	MissingParent
	CircularInheritance
	MissingMacroFile
	TemplateNotFound
	RegistryNotResolved

	// Evaluation and rendering
	UndefinedVariable
	FilterNotFound
	FilterArgumentError
	TypeMismatch
	DivisionByZero
	MacroNotFound
	MacroArgumentError
	RecursionLimitExceeded
)

var kindNames = map[Kind]string{
	KindUnknown:            "Unknown",
	SyntaxError:            "SyntaxError",
	DuplicateBlock:         "DuplicateBlock",
	DuplicateMacro:         "DuplicateMacro",
	DuplicateExtends:       "DuplicateExtends",
	DuplicateTemplate:      "DuplicateTemplate",
	MissingParent:          "MissingParent",
	CircularInheritance:    "CircularInheritance",
	MissingMacroFile:       "MissingMacroFile",
	TemplateNotFound:       "TemplateNotFound",
	RegistryNotResolved:    "RegistryNotResolved",
	UndefinedVariable:      "UndefinedVariable",
	FilterNotFound:         "FilterNotFound",
	FilterArgumentError:    "FilterArgumentError",
	TypeMismatch:           "TypeMismatch",
	DivisionByZero:         "DivisionByZero",
	MacroNotFound:          "MacroNotFound",
	MacroArgumentError:     "MacroArgumentError",
	RecursionLimitExceeded: "RecursionLimitExceeded",
}

// String returns the name of the kind.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Error makes a bare Kind usable as an errors.Is target.
func (k Kind) Error() string { return k.String() }

// =============================================================================
// Error
// =============================================================================

// Error is the single error type returned by the parser, analyzer, registry
// and renderer.
type Error struct {
	Kind     Kind
	Template string         // template name, empty when unknown
	Pos      token.Position // zero when the error has no source location
	Msg      string
	Cause    error // underlying error, if any
}

// Error formats as template:line:col: message, dropping unknown parts.
func (e *Error) Error() string {
	msg := e.Msg
	if e.Cause != nil {
		if msg == "" {
			msg = e.Cause.Error()
		} else {
			msg = fmt.Sprintf("%s: %v", msg, e.Cause)
		}
	}

	switch {
	case e.Template != "" && e.Pos.IsValid():
		return fmt.Sprintf("%s:%d:%d: %s", e.Template, e.Pos.Line, e.Pos.Column, msg)
	case e.Template != "":
		return fmt.Sprintf("%s: %s", e.Template, msg)
	case e.Pos.IsValid():
		return fmt.Sprintf("%d:%d: %s", e.Pos.Line, e.Pos.Column, msg)
	default:
		return msg
	}
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is this error's Kind.
func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == e.Kind
}

// Errorf creates an error of the given kind at pos.
func Errorf(kind Kind, pos token.Position, format string, args ...any) *Error {
	return &Error{Kind: kind, Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

// Wrap creates an error of the given kind wrapping cause.
func Wrap(kind Kind, pos token.Position, msg string, cause error) *Error {
	return &Error{Kind: kind, Pos: pos, Msg: msg, Cause: cause}
}

// WithTemplate stamps the template name onto err when it is an *Error
// without one. Other errors are returned unchanged.
func WithTemplate(err error, name string) error {
	var e *Error
	if errors.As(err, &e) && e.Template == "" {
		e.Template = name
	}
	return err
}

// KindOf returns the Kind of the first *Error in err's chain, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
