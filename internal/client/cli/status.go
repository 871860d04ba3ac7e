package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iudanet/scenesync/internal/client/auth"
)

func (c *Cli) runStatus(ctx context.Context) error {
	c.io.Println("=== Session Status ===")
	c.io.Println()

	session, err := c.authService.Session(ctx)
	if err != nil {
		if errors.Is(err, auth.ErrNotAuthenticated) {
			c.io.Println("Status: not authenticated")
			c.io.Println()
			c.io.Println("Run 'scenesync login' to authenticate.")
			return nil
		}
		if errors.Is(err, auth.ErrSessionExpired) {
			c.io.Println("Status: session expired")
			c.io.Println()
			c.io.Println("Run 'scenesync login' to start a new session.")
			return nil
		}
		return fmt.Errorf("failed to read session: %w", err)
	}

	expiresAt := time.Unix(session.ExpiresAt, 0)

	c.io.Println("Status: authenticated")
	c.io.Printf("Username: %s\n", session.Username)
	c.io.Printf("Name: %s\n", session.Name)
	c.io.Printf("Token expires: %s (in %s)\n",
		expiresAt.Format(time.RFC3339),
		time.Until(expiresAt).Round(time.Second))

	svc, err := c.syncFactory(session)
	if err != nil {
		return err
	}

	pending, err := svc.PendingCount(ctx)
	if err != nil {
		return fmt.Errorf("failed to read offline queue: %w", err)
	}

	c.io.Println()
	if pending > 0 {
		c.io.Printf("Pending: %d queued operation(s), run 'scenesync sync' to push them\n", pending)
	} else {
		c.io.Println("Pending: none")
	}

	return nil
}
