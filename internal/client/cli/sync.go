package cli

import (
	"context"
	"fmt"
	"time"
)

const (
	// flushTimeout ограничивает ожидание соединения одноразовой командой
	flushTimeout = 10 * time.Second

	flushPollInterval = 100 * time.Millisecond
)

func (c *Cli) runSync(ctx context.Context) error {
	svc, err := c.ensureSync(ctx)
	if err != nil {
		return err
	}

	pending, err := svc.PendingCount(ctx)
	if err != nil {
		return fmt.Errorf("failed to read offline queue: %w", err)
	}

	if pending == 0 {
		c.io.Println("Nothing to sync.")
		return nil
	}

	c.io.Printf("Pushing %d queued operation(s)...\n", pending)

	return c.flush(ctx, svc)
}

// flush запускает движок, пока очередь не опустеет или не истечет
// таймаут. Недоступный сервер не ошибка: операции остаются в очереди.
func (c *Cli) flush(ctx context.Context, svc syncEngine) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = svc.Run(runCtx)
	}()

	deadline := time.Now().Add(flushTimeout)
	for time.Now().Before(deadline) {
		if svc.Connected() {
			pending, err := svc.PendingCount(ctx)
			if err != nil {
				break
			}
			if pending == 0 {
				cancel()
				<-done
				c.io.Println("Synchronized.")
				return nil
			}
		}

		select {
		case <-ctx.Done():
			cancel()
			<-done
			return ctx.Err()
		case <-time.After(flushPollInterval):
		}
	}

	cancel()
	<-done

	pending, err := svc.PendingCount(ctx)
	if err != nil {
		return fmt.Errorf("failed to read offline queue: %w", err)
	}
	if pending > 0 {
		c.io.Printf("Server unreachable: %d operation(s) stay queued and will sync later.\n", pending)
	}

	return nil
}

// refreshIfOnline подтягивает снапшот перед мутацией существующей записи.
// Оффлайн-старт не ошибка: мутация уйдет в очередь.
func (c *Cli) refreshIfOnline(ctx context.Context, svc syncEngine) error {
	refreshCtx, cancel := context.WithTimeout(ctx, flushTimeout)
	defer cancel()

	if err := svc.Refresh(refreshCtx); err != nil {
		c.io.Println("Server unreachable, operating on queued state.")
	}

	return nil
}
