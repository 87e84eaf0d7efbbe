// Package config loads the relay configuration from an optional YAML file,
// a .env file and environment variables. It resolves the backend base URL
// (NEXT_PUBLIC_BACKEND_URL, falling back to DefaultBackendURL), the Postgres
// connection string (POSTGRES_URL, then DATABASE_URL) and the server, health
// check, metrics and logging settings, and validates the result.
package config
