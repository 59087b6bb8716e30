// Package logging provides structured logging for the Lumiere LIFX bridge.
//
// It wraps log/slog with a JSON or text handler, level filtering and
// default service/version fields.
//
// Levels accept names (debug, info, warn, error) and the numeric levels
// used by earlier Lumiere clients (10, 20, 30, 40):
//
//	logging:
//	  level: "info"
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Never log the LIFX token.
package logging
