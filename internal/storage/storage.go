package storage

import "context"

// Row is one durable record: a string identity key plus a JSON blob.
// Numeric keys are stored in decimal form. For ordered list collections
// the key is a surrogate position index.
type Row struct {
	Key  string
	Data []byte
}

// Backend defines the interface for the durable key-value tables every
// collection and counter is persisted through.
type Backend interface {
	// LoadRows returns every row of the named collection in stored order.
	LoadRows(ctx context.Context, collection string) ([]Row, error)

	// UpsertRows writes the given rows into the collection with
	// last-writer-wins semantics, inside a single transaction. Rows absent
	// from the slice are left untouched (keyed map save).
	UpsertRows(ctx context.Context, collection string, rows []Row) error

	// ReplaceRows deletes every prior row of the collection and inserts
	// the given rows in order, inside a single transaction (ordered list
	// save: the durable copy becomes exactly the given contents).
	ReplaceRows(ctx context.Context, collection string, rows []Row) error

	// Counter operations
	LoadCounter(ctx context.Context, name string, def int64) (int64, error)
	SaveCounter(ctx context.Context, name string, value int64) error

	// Lifecycle
	Initialize(ctx context.Context) error
	Close() error
}
