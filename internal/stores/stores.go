// Package stores wraps the pantry and shopping-cart endpoints of the Cribb API. The cart
// keeps the last list fetched from the backend as observable state; it is never patched
// locally, only refetched after a change.
package stores

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"

	"cribb-companion/internal/models"
	"cribb-companion/internal/observable"
)

// HeaderSource yields the headers that authenticate a backend request.
type HeaderSource interface {
	AuthHeaders() (http.Header, error)
}

type PantryBackend interface {
	AddPantryItem(ctx context.Context, auth http.Header, req models.AddPantryItemRequest) (*models.PantryItem, error)
}

type CartBackend interface {
	ListCartItems(ctx context.Context, auth http.Header) ([]models.ShoppingCartItem, error)
	DeleteCartItem(ctx context.Context, auth http.Header, itemID string) error
}

type PantryStore struct {
	backend PantryBackend
	auth    HeaderSource
	log     logrus.FieldLogger
}

func NewPantryStore(backend PantryBackend, auth HeaderSource, log logrus.FieldLogger) *PantryStore {
	return &PantryStore{
		backend: backend,
		auth:    auth,
		log:     log.WithField("component", "pantry"),
	}
}

func (s *PantryStore) Add(ctx context.Context, req models.AddPantryItemRequest) (*models.PantryItem, error) {
	headers, err := s.auth.AuthHeaders()
	if err != nil {
		return nil, err
	}

	item, err := s.backend.AddPantryItem(ctx, headers, req)
	if err != nil {
		return nil, fmt.Errorf("add pantry item: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"pantry_item_id": item.ID,
		"name":           req.Name,
		"group":          req.GroupName,
	}).Info("Pantry item added")
	return item, nil
}

type CartStore struct {
	backend CartBackend
	auth    HeaderSource
	log     logrus.FieldLogger
	items   *observable.Value[[]models.ShoppingCartItem]
}

func NewCartStore(backend CartBackend, auth HeaderSource, log logrus.FieldLogger) *CartStore {
	return &CartStore{
		backend: backend,
		auth:    auth,
		log:     log.WithField("component", "cart"),
		items:   observable.NewValue([]models.ShoppingCartItem{}),
	}
}

// Items returns the last cart list fetched from the backend.
func (s *CartStore) Items() []models.ShoppingCartItem {
	return s.items.Get()
}

// Item looks up a cart entry in the last fetched list.
func (s *CartStore) Item(id string) (models.ShoppingCartItem, bool) {
	for _, item := range s.items.Get() {
		if item.ID == id {
			return item, true
		}
	}
	return models.ShoppingCartItem{}, false
}

func (s *CartStore) Subscribe() (<-chan []models.ShoppingCartItem, func()) {
	return s.items.Subscribe()
}

func (s *CartStore) Refresh(ctx context.Context) ([]models.ShoppingCartItem, error) {
	headers, err := s.auth.AuthHeaders()
	if err != nil {
		return nil, err
	}

	items, err := s.backend.ListCartItems(ctx, headers)
	if err != nil {
		return nil, fmt.Errorf("list cart items: %w", err)
	}

	s.items.Set(items)
	return items, nil
}

// Delete removes a cart entry on the backend, then refetches the list. A failed refetch
// is logged; the delete itself already succeeded.
func (s *CartStore) Delete(ctx context.Context, id string) error {
	headers, err := s.auth.AuthHeaders()
	if err != nil {
		return err
	}

	if err := s.backend.DeleteCartItem(ctx, headers, id); err != nil {
		return fmt.Errorf("delete cart item %s: %w", id, err)
	}
	s.log.WithField("cart_item_id", id).Info("Cart item deleted")

	if _, err := s.Refresh(ctx); err != nil {
		s.log.WithError(err).Warn("Failed to refresh cart after delete")
	}
	return nil
}

// Reset forgets the cached list, used on logout.
func (s *CartStore) Reset() {
	s.items.Set([]models.ShoppingCartItem{})
}
