// Package datastore publishes flattened library rows to a local SQLite file
// or a remote Datasette instance.
package datastore

import "context"

// Store is a destination for exported rows.
type Store interface {
	// Connect establishes a connection to the data store
	Connect() error

	// CreateTable creates a new table with the given schema if it doesn't exist
	CreateTable(schema string) error

	// BatchInsert inserts or replaces multiple records in the specified table
	BatchInsert(ctx context.Context, database string, table string, records []map[string]any) error

	// Close closes the connection to the data store
	Close() error
}
