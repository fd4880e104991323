// Package middleware groups the fiber middleware of the HTTP API: rayid tags
// every request with an id, auth checks the API key. Register rayid first so
// rejected requests are still traceable.
package middleware
