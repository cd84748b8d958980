// Package core defines the shared language of the leaptmpl engine.
//
// This package contains the error model used by every stage of the pipeline:
// the Kind enumeration and the positioned *Error type.
//
// The Golden Rule: pkg/core imports ONLY pkg/token and stdlib.
// All other packages depend on core, not the reverse.
package core
