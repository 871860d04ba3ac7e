package boltdb

import (
	"context"
	"encoding/binary"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/iudanet/scenesync/internal/client/storage"
)

const (
	keyClock  = "lamport_clock"
	keyNodeID = "node_id"
)

// SaveClock persists the Lamport clock counter across restarts
func (s *Storage) SaveClock(ctx context.Context, timestamp int64) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketMetadata)
		if bucket == nil {
			return fmt.Errorf("metadata bucket not found")
		}

		// Конвертируем int64 в bytes
		timestampBytes := make([]byte, 8)
		binary.BigEndian.PutUint64(timestampBytes, uint64(timestamp))

		if err := bucket.Put([]byte(keyClock), timestampBytes); err != nil {
			return fmt.Errorf("failed to save clock: %w", err)
		}

		return nil
	})
}

// GetClock retrieves the persisted Lamport clock counter
// Returns 0 if the client has never written anything
func (s *Storage) GetClock(ctx context.Context) (int64, error) {
	if s.db == nil {
		return 0, storage.ErrStorageClosed
	}

	var timestamp int64

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketMetadata)
		if bucket == nil {
			return fmt.Errorf("metadata bucket not found")
		}

		timestampBytes := bucket.Get([]byte(keyClock))
		if timestampBytes == nil {
			// Первый запуск
			timestamp = 0
			return nil
		}

		timestamp = int64(binary.BigEndian.Uint64(timestampBytes))
		return nil
	})

	if err != nil {
		return 0, fmt.Errorf("failed to get clock: %w", err)
	}

	return timestamp, nil
}

// SaveNodeID persists the client node identifier
func (s *Storage) SaveNodeID(ctx context.Context, nodeID string) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketMetadata)
		if bucket == nil {
			return fmt.Errorf("metadata bucket not found")
		}

		if err := bucket.Put([]byte(keyNodeID), []byte(nodeID)); err != nil {
			return fmt.Errorf("failed to save node id: %w", err)
		}

		return nil
	})
}

// GetNodeID retrieves the persisted node identifier
// Returns empty string on first run
func (s *Storage) GetNodeID(ctx context.Context) (string, error) {
	if s.db == nil {
		return "", storage.ErrStorageClosed
	}

	var nodeID string

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketMetadata)
		if bucket == nil {
			return fmt.Errorf("metadata bucket not found")
		}

		if data := bucket.Get([]byte(keyNodeID)); data != nil {
			nodeID = string(data)
		}
		return nil
	})

	if err != nil {
		return "", fmt.Errorf("failed to get node id: %w", err)
	}

	return nodeID, nil
}
