// Package logger provides a small wrapper around zap to offer:
//   - a global sugared logger with a console encoder on stderr,
//   - context helpers (ToContext/FromContext/WithName/WithKV),
//   - level configuration and parsing utilities,
//   - convenience functions (InfoKV, WarnKV, etc.).
//
// Services accept a context and extract the logger from it, so tests can
// swap in an observer core and assert on emitted warnings.
package logger
