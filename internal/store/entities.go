package store

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"

	"github.com/leapstack-labs/leapingest/internal/mapping"
)

// deleteChunkSize bounds the number of ids bound into a single DELETE.
const deleteChunkSize = 500

// EntityTable is an EntityGateway backed by one table with a unique
// external-id column and a JSON attributes column.
type EntityTable struct {
	store     *SQLStore
	table     string
	keyColumn string
}

// Institutions returns the gateway for IPEDS institutions.
func (s *SQLStore) Institutions() *EntityTable {
	return &EntityTable{store: s, table: "institutions", keyColumn: "ipeds_id"}
}

// Scholarships returns the gateway for Peterson's scholarships.
func (s *SQLStore) Scholarships() *EntityTable {
	return &EntityTable{store: s, table: "scholarships", keyColumn: "petersons_id"}
}

// Name returns the table name.
func (t *EntityTable) Name() string {
	return t.table
}

// FindOrCreate returns the entity for externalID, inserting it when absent.
func (t *EntityTable) FindOrCreate(ctx context.Context, externalID string) (*Entity, error) {
	if t.store.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	if externalID == "" {
		return nil, errors.New("external id is required")
	}

	now := nullTime{Time: t.store.now(), Valid: true}
	query := t.store.rebind(fmt.Sprintf(
		`INSERT INTO %s (%s, attributes, created_at, updated_at) VALUES (?, ?, ?, ?) ON CONFLICT (%s) DO NOTHING`,
		t.table, t.keyColumn, t.keyColumn))
	if _, err := t.store.db.ExecContext(ctx, query, externalID, "{}", now, now); err != nil {
		return nil, fmt.Errorf("failed to create %s %s: %w", t.table, externalID, err)
	}

	e, err := t.FindByExternalID(ctx, externalID)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, fmt.Errorf("%s %s vanished after insert", t.table, externalID)
	}
	return e, nil
}

// FindByExternalID returns the entity or nil when it does not exist.
func (t *EntityTable) FindByExternalID(ctx context.Context, externalID string) (*Entity, error) {
	if t.store.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	query := t.store.rebind(fmt.Sprintf(
		`SELECT id, %s, attributes, created_at, updated_at FROM %s WHERE %s = ?`,
		t.keyColumn, t.table, t.keyColumn))

	var (
		e                Entity
		raw              []byte
		created, updated nullTime
	)
	err := t.store.db.QueryRowContext(ctx, query, externalID).
		Scan(&e.ID, &e.ExternalID, &raw, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s %s: %w", t.table, externalID, err)
	}

	attrs, err := decodeAttributes(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s %s attributes: %w", t.table, externalID, err)
	}
	e.Attributes = attrs
	e.CreatedAt = created.Time
	e.UpdatedAt = updated.Time
	return &e, nil
}

// Update writes attrs over the entity's attributes and saves it.
func (t *EntityTable) Update(ctx context.Context, e *Entity, attrs mapping.AttributeSet) error {
	if t.store.db == nil {
		return fmt.Errorf("database not opened")
	}
	if e == nil || e.ID == 0 {
		return errors.New("entity has not been saved")
	}

	merged := make(mapping.AttributeSet, len(e.Attributes)+len(attrs))
	maps.Copy(merged, e.Attributes)
	maps.Copy(merged, attrs)

	raw, err := json.Marshal(merged)
	if err != nil {
		return fmt.Errorf("failed to encode %s %s attributes: %w", t.table, e.ExternalID, err)
	}

	now := nullTime{Time: t.store.now(), Valid: true}
	query := t.store.rebind(fmt.Sprintf(`UPDATE %s SET attributes = ?, updated_at = ? WHERE id = ?`, t.table))
	if _, err := t.store.db.ExecContext(ctx, query, string(raw), now, e.ID); err != nil {
		return fmt.Errorf("failed to update %s %s: %w", t.table, e.ExternalID, err)
	}

	e.Attributes = merged
	e.UpdatedAt = now.Time
	return nil
}

// Upsert finds or creates the entity for key and writes attrs to it.
func (t *EntityTable) Upsert(ctx context.Context, key string, attrs mapping.AttributeSet) error {
	e, err := t.FindOrCreate(ctx, key)
	if err != nil {
		return err
	}
	return t.Update(ctx, e, attrs)
}

// ExternalIDs returns every stored external id.
func (t *EntityTable) ExternalIDs(ctx context.Context) ([]string, error) {
	if t.store.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	rows, err := t.store.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT %s FROM %s ORDER BY %s`, t.keyColumn, t.table, t.keyColumn))
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", t.table, err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan %s id: %w", t.table, err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Count returns the number of stored entities.
func (t *EntityTable) Count(ctx context.Context) (int, error) {
	if t.store.db == nil {
		return 0, fmt.Errorf("database not opened")
	}
	var n int
	if err := t.store.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, t.table)).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", t.table, err)
	}
	return n, nil
}

// DeleteAllExcept removes every entity whose external id is not in keep.
func (t *EntityTable) DeleteAllExcept(ctx context.Context, keep map[string]struct{}) (int, error) {
	ids, err := t.ExternalIDs(ctx)
	if err != nil {
		return 0, err
	}

	var stale []string
	for _, id := range ids {
		if _, ok := keep[id]; !ok {
			stale = append(stale, id)
		}
	}
	if len(stale) == 0 {
		return 0, nil
	}

	tx, err := t.store.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	deleted := 0
	for start := 0; start < len(stale); start += deleteChunkSize {
		end := min(start+deleteChunkSize, len(stale))
		chunk := stale[start:end]

		args := make([]any, len(chunk))
		for i, id := range chunk {
			args[i] = id
		}
		query := t.store.rebind(fmt.Sprintf(`DELETE FROM %s WHERE %s IN (%s)`,
			t.table, t.keyColumn, placeholders(len(chunk))))

		result, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return 0, fmt.Errorf("failed to delete %s: %w", t.table, err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("failed to count deleted %s: %w", t.table, err)
		}
		deleted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit delete: %w", err)
	}

	t.store.logger.Debug("deleted stale records", slog.String("table", t.table), slog.Int("count", deleted))
	return deleted, nil
}

// decodeAttributes parses stored JSON, turning numbers into int64 where they
// are integral and float64 otherwise.
func decodeAttributes(raw []byte) (mapping.AttributeSet, error) {
	attrs := make(mapping.AttributeSet)
	if len(bytes.TrimSpace(raw)) == 0 {
		return attrs, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&attrs); err != nil {
		return nil, err
	}
	for k, v := range attrs {
		attrs[k] = fromJSON(v)
	}
	return attrs, nil
}

func fromJSON(v any) any {
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	case []any:
		for i := range x {
			x[i] = fromJSON(x[i])
		}
		return x
	case map[string]any:
		for k := range x {
			x[k] = fromJSON(x[k])
		}
		return x
	default:
		return v
	}
}

var _ EntityGateway = (*EntityTable)(nil)
