// Package mysql provides repositories and data access helpers backed by MySQL.
// It encapsulates schema migrations and strongly typed queries for persisting
// collection records and session event history.
package mysql
