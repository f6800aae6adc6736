package ledger

import "context"

// Ports for outbound adapters.
type (
	// Slot is a single named storage cell holding the serialized ledger.
	Slot interface {
		// Read returns the stored bytes, or nil when the slot was never written.
		Read(ctx context.Context) ([]byte, error)
		// Write replaces the stored bytes.
		Write(ctx context.Context, data []byte) error
	}

	// Subscriber receives a snapshot after every successful mutation.
	Subscriber func(Snapshot)
)
