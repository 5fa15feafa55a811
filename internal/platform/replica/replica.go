// Package replica defines the remote document replica: a single-document
// mailbox with get, set and subscribe, not a query engine. The sync engine
// treats every operation here as best-effort; remote failures are recovered
// locally.
package replica

import "context"

// Snapshot is one observed state of the remote document.
type Snapshot struct {
	Exists bool
	Data   []byte
}

// Replica mirrors the whole serialized document in a remote store.
type Replica interface {
	// Get fetches the current remote document.
	Get(ctx context.Context) (Snapshot, error)
	// Set replaces the remote document and notifies subscribers.
	Set(ctx context.Context, data []byte) error
	// Subscribe delivers every remote change to onChange until the returned
	// cancel function is called. Subscribers receive the full document on
	// each notification, including echoes of their own writes.
	Subscribe(ctx context.Context, onChange func(Snapshot)) (cancel func(), err error)
}
