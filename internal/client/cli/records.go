package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

func (c *Cli) runCreate(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("missing payload. Usage: scenesync create '<json>'")
	}

	payload, err := parsePayload(args[0])
	if err != nil {
		return err
	}

	svc, err := c.ensureSync(ctx)
	if err != nil {
		return err
	}

	id, err := svc.CreateRecord(ctx, payload)
	if err != nil {
		return err
	}

	c.io.Printf("Created record %s\n", id)

	return c.flush(ctx, svc)
}

func (c *Cli) runUpdate(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("missing arguments. Usage: scenesync update <id> '<json>'")
	}

	id := args[0]
	partial, err := parsePayload(args[1])
	if err != nil {
		return err
	}

	svc, err := c.ensureSync(ctx)
	if err != nil {
		return err
	}

	// Одноразовая команда стартует без представления коллекции
	if err := c.refreshIfOnline(ctx, svc); err != nil {
		return err
	}

	if err := svc.UpdateRecord(ctx, id, partial); err != nil {
		return err
	}

	c.io.Printf("Updated record %s\n", id)

	return c.flush(ctx, svc)
}

func (c *Cli) runDelete(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("missing record id. Usage: scenesync delete <id>")
	}

	id := args[0]

	confirmed, err := c.io.Confirm(fmt.Sprintf("Delete record %s?", id))
	if err != nil {
		return fmt.Errorf("failed to read confirmation: %w", err)
	}
	if !confirmed {
		c.io.Println("Aborted.")
		return nil
	}

	svc, err := c.ensureSync(ctx)
	if err != nil {
		return err
	}

	if err := c.refreshIfOnline(ctx, svc); err != nil {
		return err
	}

	if err := svc.DeleteRecord(ctx, id); err != nil {
		return err
	}

	c.io.Printf("Deleted record %s\n", id)

	return c.flush(ctx, svc)
}

func (c *Cli) runList(ctx context.Context) error {
	svc, err := c.ensureSync(ctx)
	if err != nil {
		return err
	}

	if err := svc.Refresh(ctx); err != nil {
		return err
	}

	records := svc.Collection()
	if len(records) == 0 {
		c.io.Println("Collection is empty.")
		return nil
	}

	ids := make([]string, 0, len(records))
	for id := range records {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	c.io.Printf("Found %d record(s):\n", len(records))
	c.io.Println()

	for _, id := range ids {
		record := records[id]
		c.io.Printf("%s (timestamp %d)\n", record.ID, record.Timestamp)
		c.io.Printf("  %s\n", formatPayload(record.Payload))
	}

	return nil
}

// parsePayload разбирает JSON объект из аргумента команды
func parsePayload(arg string) (map[string]any, error) {
	var payload map[string]any
	if err := json.Unmarshal([]byte(arg), &payload); err != nil {
		return nil, fmt.Errorf("payload must be a JSON object: %w", err)
	}
	return payload, nil
}

// formatPayload печатает payload с детерминированным порядком ключей
func formatPayload(payload map[string]any) string {
	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, payload[k]))
	}

	return strings.Join(parts, " ")
}
