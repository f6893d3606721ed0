package ports

import "context"

// Snapshotter is a durable home for a single JSON-serializable value
type Snapshotter interface {
	// Load decodes the stored snapshot into v. It reports false when nothing was stored yet.
	Load(ctx context.Context, v interface{}) (bool, error)
	Save(ctx context.Context, v interface{}) error
}
