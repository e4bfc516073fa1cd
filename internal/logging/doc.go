// Package logging builds the structured zap logger shared by the CLI and the
// HTTP server.
package logging
