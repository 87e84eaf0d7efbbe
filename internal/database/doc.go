// Package database owns the Postgres connection pool. The pool is built
// once at startup from POSTGRES_URL (or DATABASE_URL) with SSL required,
// at most 10 connections, a 20 second idle timeout and a 10 second connect
// timeout. No queries are issued here beyond readiness pings.
package database
