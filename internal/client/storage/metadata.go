package storage

import "context"

//go:generate moq -out metadata_mock.go . MetadataStorage

// MetadataStorage defines interface for storing client metadata
type MetadataStorage interface {
	// SaveClock persists the Lamport clock counter across restarts
	SaveClock(ctx context.Context, timestamp int64) error

	// GetClock retrieves the persisted Lamport clock counter
	// Returns 0 if the client has never written anything
	GetClock(ctx context.Context) (int64, error)

	// SaveNodeID persists the client node identifier
	SaveNodeID(ctx context.Context, nodeID string) error

	// GetNodeID retrieves the persisted node identifier
	// Returns empty string on first run
	GetNodeID(ctx context.Context) (string, error)
}
