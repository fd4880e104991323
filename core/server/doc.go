// Package server holds the HTTP server configuration.
//
// The start command owns the fiber application; this package defines the settings
// it reads: the listen port, the optional API key protecting the timeline routes,
// and the graceful shutdown budget.
package server
