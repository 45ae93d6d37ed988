package database

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cribb-companion/internal/models"
)

func entry(cartItemID string, at time.Time) models.TransferJournalEntry {
	return models.TransferJournalEntry{
		ID:           uuid.NewString(),
		CartItemID:   cartItemID,
		ItemName:     "Milk",
		GroupName:    "Apt 4",
		PantryItemID: "p-" + cartItemID,
		Stage:        "cart",
		Message:      "failed to remove from cart: boom",
		CreatedAt:    at,
	}
}

// exerciseJournal checks the behaviour every Journal implementation shares.
func exerciseJournal(t *testing.T, j Journal, cartA, cartB string) {
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Millisecond)

	require.NoError(t, j.Record(ctx, entry(cartA, base)))
	require.NoError(t, j.Record(ctx, entry(cartB, base.Add(time.Second))))

	open, err := j.Unresolved(ctx)
	require.NoError(t, err)
	require.Len(t, open, 2)
	assert.Equal(t, cartB, open[0].CartItemID)
	assert.Equal(t, cartA, open[1].CartItemID)
	assert.Nil(t, open[0].ResolvedAt)

	require.NoError(t, j.Resolve(ctx, cartA))
	require.NoError(t, j.Resolve(ctx, "unknown"))

	open, err = j.Unresolved(ctx)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, cartB, open[0].CartItemID)
	assert.Equal(t, "p-"+cartB, open[0].PantryItemID)
}

func TestMemoryJournal(t *testing.T) {
	exerciseJournal(t, NewMemoryJournal(), "c1", "c2")
}

func TestMemoryJournalEmpty(t *testing.T) {
	open, err := NewMemoryJournal().Unresolved(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, open)
	assert.Empty(t, open)
}

func TestPostgresJournal(t *testing.T) {
	databaseURL := os.Getenv("TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	db, err := Connect(ctx, databaseURL)
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, Migrate(ctx, db))
	require.NoError(t, Migrate(ctx, db), "migrations are idempotent")

	cartA, cartB := "test-"+uuid.NewString(), "test-"+uuid.NewString()
	t.Cleanup(func() {
		db.Exec(context.Background(), "DELETE FROM transfer_journal WHERE cart_item_id IN ($1, $2)", cartA, cartB)
	})

	journal := NewPostgresJournal(db)
	require.NoError(t, journal.Resolve(ctx, cartA))

	// Other rows may exist in a shared database; only look at ours.
	scoped := scopedJournal{Journal: journal, keep: map[string]bool{cartA: true, cartB: true}}
	exerciseJournal(t, scoped, cartA, cartB)
}

type scopedJournal struct {
	Journal
	keep map[string]bool
}

func (s scopedJournal) Unresolved(ctx context.Context) ([]models.TransferJournalEntry, error) {
	all, err := s.Journal.Unresolved(ctx)
	if err != nil {
		return nil, err
	}
	var mine []models.TransferJournalEntry
	for _, e := range all {
		if s.keep[e.CartItemID] {
			mine = append(mine, e)
		}
	}
	return mine, nil
}
