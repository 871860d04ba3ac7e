package cli

import (
	"context"
	"errors"

	"github.com/iudanet/scenesync/internal/models"
	"github.com/iudanet/scenesync/pkg/api"
)

func (c *Cli) runWatch(ctx context.Context) error {
	svc, err := c.ensureSync(ctx)
	if err != nil {
		return err
	}

	svc.OnCollectionChange(func(records map[string]*models.Record) {
		c.io.Printf("collection changed: %d record(s)\n", len(records))
	})

	svc.OnConflict(func(recordID string, err error) {
		c.io.Printf("conflict: record %s: %v\n", recordID, err)
	})

	svc.OnPresenceChange(func(states []api.PresenceState) {
		online := 0
		for _, state := range states {
			if state.Online {
				online++
			}
		}
		c.io.Printf("presence: %d participant(s) online\n", online)
	})

	c.io.Println("Watching collection. Press Ctrl+C to stop.")

	if err := svc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	return nil
}
