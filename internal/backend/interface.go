package backend

import (
	"context"

	"ledger/internal/ledger"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// Pinger is implemented by backends that can report their health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// BackendResult contains the slot and an optional cleanup function
type BackendResult struct {
	Slot    ledger.Slot
	Pinger  Pinger // nil when the backend has nothing to check
	Cleanup CleanupFunc
}

// Close runs the cleanup function, if any.
func (r *BackendResult) Close() error {
	if r == nil || r.Cleanup == nil {
		return nil
	}
	return r.Cleanup()
}

// Factory creates backends based on configuration
type Factory interface {
	// CreateBackend creates a backend instance based on the provided config
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config selects a backend and carries the settings it needs.
type Config struct {
	Type         BackendType
	SlotName     string // sqlite only; a database may hold several slots
	DataFile     string // file only
	SQLiteDBPath string // sqlite only
}

// BackendType names a slot implementation.
type BackendType string

const (
	MemoryBackend BackendType = "memory"
	FileBackend   BackendType = "file"
	SQLiteBackend BackendType = "sqlite"
)

func (bt BackendType) String() string { return string(bt) }

// IsValid reports whether bt is one of Types.
func (bt BackendType) IsValid() bool {
	for _, t := range Types {
		if bt == t {
			return true
		}
	}
	return false
}
