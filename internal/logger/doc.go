// Package logger wraps zap to give the deployment tool:
//   - a global sugared logger writing a console format to stderr,
//   - context helpers (ToContext/FromContext/WithName/WithKV),
//   - level parsing and switching,
//   - leveled shortcuts (Infof, WarnKV, etc.) that take a context.
//
// The deployment session and the CLI service both receive a context and pull
// the logger from it, so every request line carries the operation name.
package logger
