package parser

// Common error messages
const (
	ErrUnexpectedToken    = "unexpected token %s, expected %s"
	ErrUnterminatedString = "unterminated string literal"
	ErrInvalidNumber      = "invalid number literal %q"
	ErrUnknownTag         = "unknown tag %q"
	ErrUnexpectedTag      = "unexpected %q"
	ErrUnclosedTag        = "unclosed %q (missing %s)"
	ErrMismatchedEnd      = "%q closes %q %q"
	ErrTrailingTokens     = "unexpected %s after %q"
	ErrNoFunctionCalls    = "%s(...) is not callable: use a filter or a namespaced macro call"
	ErrSuperAlone         = "super() must be the only expression in its {{ }} tag"
)
