// Package store implements core.Store.
//
// [Postgres] keeps connectors, forms, bindings and the delivery queue in
// PostgreSQL through a pgx pool; [EnsureSchema] creates its tables.
// [Memory] keeps everything in process.
package store

import "context"

// Pinger is implemented by stores that can report their health.
type Pinger interface {
	Ping(ctx context.Context) error
}
