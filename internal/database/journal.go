package database

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"cribb-companion/internal/models"
)

// Journal records transfers that left an item in both the pantry and the cart.
type Journal interface {
	Record(ctx context.Context, entry models.TransferJournalEntry) error
	// Resolve marks every open entry for the cart item as resolved.
	Resolve(ctx context.Context, cartItemID string) error
	// Unresolved lists open entries, newest first.
	Unresolved(ctx context.Context) ([]models.TransferJournalEntry, error)
}

type PostgresJournal struct {
	db *DB
}

func NewPostgresJournal(db *DB) *PostgresJournal {
	return &PostgresJournal{db: db}
}

func (j *PostgresJournal) Record(ctx context.Context, entry models.TransferJournalEntry) error {
	_, err := j.db.Exec(ctx,
		`INSERT INTO transfer_journal (id, cart_item_id, item_name, group_name, pantry_item_id, stage, message, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		entry.ID, entry.CartItemID, entry.ItemName, entry.GroupName, entry.PantryItemID,
		entry.Stage, entry.Message, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record transfer journal entry: %w", err)
	}
	return nil
}

func (j *PostgresJournal) Resolve(ctx context.Context, cartItemID string) error {
	_, err := j.db.Exec(ctx,
		`UPDATE transfer_journal SET resolved_at = CURRENT_TIMESTAMP
		 WHERE cart_item_id = $1 AND resolved_at IS NULL`,
		cartItemID)
	if err != nil {
		return fmt.Errorf("failed to resolve transfer journal entries: %w", err)
	}
	return nil
}

func (j *PostgresJournal) Unresolved(ctx context.Context) ([]models.TransferJournalEntry, error) {
	rows, err := j.db.Query(ctx,
		`SELECT id, cart_item_id, item_name, group_name, pantry_item_id, stage, message, created_at, resolved_at
		 FROM transfer_journal
		 WHERE resolved_at IS NULL
		 ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query transfer journal: %w", err)
	}
	defer rows.Close()

	entries := []models.TransferJournalEntry{}
	for rows.Next() {
		var entry models.TransferJournalEntry
		err := rows.Scan(&entry.ID, &entry.CartItemID, &entry.ItemName, &entry.GroupName,
			&entry.PantryItemID, &entry.Stage, &entry.Message, &entry.CreatedAt, &entry.ResolvedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transfer journal entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read transfer journal: %w", err)
	}
	return entries, nil
}

// MemoryJournal is used when no database is configured. Entries live for the process.
type MemoryJournal struct {
	mu      sync.Mutex
	entries []models.TransferJournalEntry
	now     func() time.Time
}

func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{now: time.Now}
}

func (j *MemoryJournal) Record(ctx context.Context, entry models.TransferJournalEntry) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, entry)
	return nil
}

func (j *MemoryJournal) Resolve(ctx context.Context, cartItemID string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	now := j.now().UTC()
	for i := range j.entries {
		if j.entries[i].CartItemID == cartItemID && j.entries[i].ResolvedAt == nil {
			resolved := now
			j.entries[i].ResolvedAt = &resolved
		}
	}
	return nil
}

func (j *MemoryJournal) Unresolved(ctx context.Context) ([]models.TransferJournalEntry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	open := []models.TransferJournalEntry{}
	for _, entry := range j.entries {
		if entry.ResolvedAt == nil {
			open = append(open, entry)
		}
	}
	sort.SliceStable(open, func(a, b int) bool {
		return open[a].CreatedAt.After(open[b].CreatedAt)
	})
	return open, nil
}
