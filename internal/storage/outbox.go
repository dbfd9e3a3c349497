package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"pocketbook/internal/core"
)

// Enqueue appends a mutation to the outbox. The payload is the entity's full
// state at enqueue time; for deletes, its pre-deletion snapshot.
func (s *SQLiteStore) Enqueue(ctx context.Context, collection core.Collection, kind core.MutationKind, payload any) (int64, error) {
	if !collection.Valid() {
		return 0, fmt.Errorf("enqueue mutation: invalid collection %q", collection)
	}
	if !kind.Valid() {
		return 0, fmt.Errorf("enqueue mutation: invalid kind %q", kind)
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("encode mutation payload: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO pending_mutations (collection, kind, payload, enqueued_at)
		 VALUES (?, ?, ?, ?)`,
		string(collection), string(kind), string(raw), core.NowMillis())
	if err != nil {
		return 0, fmt.Errorf("enqueue mutation: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("enqueue mutation id: %w", err)
	}

	slog.DebugContext(ctx, "Mutation enqueued",
		"mutation_id", id,
		"collection", collection,
		"kind", kind)
	return id, nil
}

// PendingMutations returns every outbox entry in enqueue order.
func (s *SQLiteStore) PendingMutations(ctx context.Context) ([]core.PendingMutation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, collection, kind, payload, enqueued_at
		 FROM pending_mutations ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("read pending mutations: %w", err)
	}
	defer rows.Close()

	var pending []core.PendingMutation
	for rows.Next() {
		var (
			m       core.PendingMutation
			col     string
			kind    string
			payload string
		)
		if err := rows.Scan(&m.ID, &col, &kind, &payload, &m.EnqueuedAt); err != nil {
			return nil, fmt.Errorf("scan pending mutation: %w", err)
		}
		m.Collection = core.Collection(col)
		m.Kind = core.MutationKind(kind)
		m.Payload = json.RawMessage(payload)
		pending = append(pending, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending mutations: %w", err)
	}
	return pending, nil
}

// ClearMutationsThrough removes exactly the outbox prefix up to and including
// maxID. Mutations enqueued while a push was in flight carry a higher id and
// survive the clear.
func (s *SQLiteStore) ClearMutationsThrough(ctx context.Context, maxID int64) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM pending_mutations WHERE id <= ?`, maxID)
	if err != nil {
		return fmt.Errorf("clear pending mutations: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil {
		slog.DebugContext(ctx, "Outbox prefix cleared", "through_id", maxID, "removed", n)
	}
	return nil
}

// PendingCount returns the number of queued mutations.
func (s *SQLiteStore) PendingCount(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM pending_mutations`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count pending mutations: %w", err)
	}
	return n, nil
}
