package boltdb

import (
	"context"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/iudanet/scenesync/internal/client/storage"
	"github.com/iudanet/scenesync/internal/models"
)

// Append persists a queued operation at the tail of the log.
// Ключом служит ULID операции: лексикографический порядок ключей в bbolt
// совпадает с порядком постановки, поэтому курсорный обход bucket'а
// возвращает операции строго в enqueue order.
func (s *Storage) Append(ctx context.Context, op *models.QueuedOperation) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}

	data, err := json.Marshal(op)
	if err != nil {
		return fmt.Errorf("failed to marshal queued operation: %w", err)
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketQueue)
		if bucket == nil {
			return fmt.Errorf("queue bucket not found")
		}

		if err := bucket.Put([]byte(op.ID), data); err != nil {
			return fmt.Errorf("failed to append operation: %w", err)
		}

		return nil
	})

	if err != nil {
		return fmt.Errorf("append transaction failed: %w", err)
	}

	return nil
}

// List returns all pending operations in enqueue order
func (s *Storage) List(ctx context.Context) ([]*models.QueuedOperation, error) {
	if s.db == nil {
		return nil, storage.ErrStorageClosed
	}

	var ops []*models.QueuedOperation

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketQueue)
		if bucket == nil {
			return nil
		}

		// ForEach обходит ключи в порядке возрастания
		return bucket.ForEach(func(k, v []byte) error {
			var op models.QueuedOperation
			if err := json.Unmarshal(v, &op); err != nil {
				return fmt.Errorf("failed to unmarshal operation: %w", err)
			}
			ops = append(ops, &op)
			return nil
		})
	})

	if err != nil {
		return nil, fmt.Errorf("failed to list operations: %w", err)
	}

	return ops, nil
}

// Update rewrites a stored operation in place (retry counter)
func (s *Storage) Update(ctx context.Context, op *models.QueuedOperation) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}

	data, err := json.Marshal(op)
	if err != nil {
		return fmt.Errorf("failed to marshal queued operation: %w", err)
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketQueue)
		if bucket == nil {
			return storage.ErrOperationNotFound
		}

		if bucket.Get([]byte(op.ID)) == nil {
			return storage.ErrOperationNotFound
		}

		if err := bucket.Put([]byte(op.ID), data); err != nil {
			return fmt.Errorf("failed to update operation: %w", err)
		}

		return nil
	})

	if err != nil {
		return err
	}

	return nil
}

// Delete removes a consumed operation from the log
func (s *Storage) Delete(ctx context.Context, opID string) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketQueue)
		if bucket == nil {
			return nil
		}

		if err := bucket.Delete([]byte(opID)); err != nil {
			return fmt.Errorf("failed to delete operation: %w", err)
		}

		return nil
	})

	if err != nil {
		return fmt.Errorf("delete transaction failed: %w", err)
	}

	return nil
}

// Count returns the number of pending operations
func (s *Storage) Count(ctx context.Context) (int, error) {
	if s.db == nil {
		return 0, storage.ErrStorageClosed
	}

	var count int

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketQueue)
		if bucket == nil {
			return nil
		}

		count = bucket.Stats().KeyN
		return nil
	})

	if err != nil {
		return 0, fmt.Errorf("failed to count operations: %w", err)
	}

	return count, nil
}

// Clear removes all pending operations
func (s *Storage) Clear(ctx context.Context) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		// Удаляем bucket полностью и создаем заново пустой
		if err := tx.DeleteBucket(bucketQueue); err != nil && err != bbolt.ErrBucketNotFound {
			return fmt.Errorf("failed to delete bucket: %w", err)
		}

		if _, err := tx.CreateBucket(bucketQueue); err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}

		return nil
	})

	if err != nil {
		return fmt.Errorf("clear transaction failed: %w", err)
	}

	return nil
}
