// Package errors provides structured, actionable error messages for
// treeline's operator-facing surfaces: the CLI, server logs, and the
// error frames sent to clients.
//
// Each registered error has a stable code (e.g., "T200") that maps to
// a category, a short message, a detailed explanation, and optionally
// a fix suggestion. Codes group by concern: T0xx protocol, T1xx
// render, T2xx component registry, T3xx session, T4xx configuration.
//
// Usage:
//
//	err := errors.New("T200").Wrap(cause)
//	errors.PrintError(err)
package errors
