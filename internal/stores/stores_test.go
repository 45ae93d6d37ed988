package stores

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cribb-companion/internal/auth"
	"cribb-companion/internal/logger"
	"cribb-companion/internal/models"
)

type staticHeaders struct {
	err error
}

func (s staticHeaders) AuthHeaders() (http.Header, error) {
	if s.err != nil {
		return nil, s.err
	}
	h := http.Header{}
	h.Set("Authorization", "Bearer tok")
	return h, nil
}

type fakeCart struct {
	items     []models.ShoppingCartItem
	deleteErr error
	listErr   error
	calls     []string
}

func (f *fakeCart) ListCartItems(ctx context.Context, headers http.Header) ([]models.ShoppingCartItem, error) {
	f.calls = append(f.calls, "list")
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]models.ShoppingCartItem(nil), f.items...), nil
}

func (f *fakeCart) DeleteCartItem(ctx context.Context, headers http.Header, id string) error {
	f.calls = append(f.calls, "delete:"+id)
	if f.deleteErr != nil {
		return f.deleteErr
	}
	for i, item := range f.items {
		if item.ID == id {
			f.items = append(f.items[:i], f.items[i+1:]...)
			break
		}
	}
	return nil
}

type fakePantry struct {
	got models.AddPantryItemRequest
	err error
}

func (f *fakePantry) AddPantryItem(ctx context.Context, headers http.Header, req models.AddPantryItemRequest) (*models.PantryItem, error) {
	f.got = req
	if f.err != nil {
		return nil, f.err
	}
	return &models.PantryItem{ID: "p1", Name: req.Name}, nil
}

func TestCartDeleteRefetches(t *testing.T) {
	backend := &fakeCart{items: []models.ShoppingCartItem{{ID: "c1", ItemName: "Milk"}, {ID: "c2", ItemName: "Eggs"}}}
	store := NewCartStore(backend, staticHeaders{}, logger.Discard())

	_, err := store.Refresh(context.Background())
	require.NoError(t, err)
	assert.Len(t, store.Items(), 2)

	require.NoError(t, store.Delete(context.Background(), "c1"))
	assert.Equal(t, []string{"list", "delete:c1", "list"}, backend.calls)
	require.Len(t, store.Items(), 1)
	assert.Equal(t, "c2", store.Items()[0].ID)

	_, found := store.Item("c1")
	assert.False(t, found)
	item, found := store.Item("c2")
	assert.True(t, found)
	assert.Equal(t, "Eggs", item.ItemName)
}

func TestCartDeleteFailureKeepsList(t *testing.T) {
	backend := &fakeCart{items: []models.ShoppingCartItem{{ID: "c1"}}, deleteErr: errors.New("boom")}
	store := NewCartStore(backend, staticHeaders{}, logger.Discard())
	_, err := store.Refresh(context.Background())
	require.NoError(t, err)

	err = store.Delete(context.Background(), "c1")
	require.Error(t, err)
	assert.Len(t, store.Items(), 1)
	assert.Equal(t, []string{"list", "delete:c1"}, backend.calls)
}

func TestCartRefreshFailureAfterDeleteIsNotAnError(t *testing.T) {
	backend := &fakeCart{items: []models.ShoppingCartItem{{ID: "c1"}}}
	store := NewCartStore(backend, staticHeaders{}, logger.Discard())
	backend.listErr = errors.New("list down")

	assert.NoError(t, store.Delete(context.Background(), "c1"))
}

func TestCartSubscribe(t *testing.T) {
	backend := &fakeCart{items: []models.ShoppingCartItem{{ID: "c1"}}}
	store := NewCartStore(backend, staticHeaders{}, logger.Discard())

	updates, cancel := store.Subscribe()
	defer cancel()
	assert.Empty(t, <-updates)

	_, err := store.Refresh(context.Background())
	require.NoError(t, err)
	assert.Len(t, <-updates, 1)

	store.Reset()
	assert.Empty(t, <-updates)
}

func TestStoresRequireAuth(t *testing.T) {
	cart := NewCartStore(&fakeCart{}, staticHeaders{err: auth.ErrNotAuthenticated}, logger.Discard())
	_, err := cart.Refresh(context.Background())
	assert.ErrorIs(t, err, auth.ErrNotAuthenticated)
	assert.ErrorIs(t, cart.Delete(context.Background(), "c1"), auth.ErrNotAuthenticated)

	pantry := NewPantryStore(&fakePantry{}, staticHeaders{err: auth.ErrNotAuthenticated}, logger.Discard())
	_, err = pantry.Add(context.Background(), models.AddPantryItemRequest{Name: "Milk"})
	assert.ErrorIs(t, err, auth.ErrNotAuthenticated)
}

func TestPantryAdd(t *testing.T) {
	backend := &fakePantry{}
	pantry := NewPantryStore(backend, staticHeaders{}, logger.Discard())

	item, err := pantry.Add(context.Background(), models.AddPantryItemRequest{Name: "Milk", Quantity: 2, Unit: "units", Category: "Dairy", GroupName: "Apt 4"})
	require.NoError(t, err)
	assert.Equal(t, "p1", item.ID)
	assert.Equal(t, "Apt 4", backend.got.GroupName)

	backend.err = errors.New("boom")
	_, err = pantry.Add(context.Background(), models.AddPantryItemRequest{Name: "Milk"})
	assert.Error(t, err)
}
