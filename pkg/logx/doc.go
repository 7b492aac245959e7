// Package logx configures recurd's structured logging.
//
// Logger is a small value type over zerolog. Loggers derived from a Service
// follow Service.Apply, so level and sinks can change on config reload
// without re-wiring components. Console output is human readable on a
// terminal and JSON otherwise (journald friendly); the file sink is always
// JSON.
package logx
