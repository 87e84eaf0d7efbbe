// Package httpserver wraps net/http.Server with address validation,
// configurable timeouts, graceful shutdown and request logging.
package httpserver
