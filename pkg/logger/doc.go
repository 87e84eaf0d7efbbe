// Package logger builds the structured slog logger used across the relay.
// Records are JSON in prod and text elsewhere, filtered by the configured
// level, and always carry the service and environment attributes.
package logger
