package backend

import (
	"context"
	"net/http"
	"net/url"

	"cribb-companion/internal/models"
)

func (c *Client) Login(ctx context.Context, username, password string) (*models.LoginResponse, error) {
	var resp models.LoginResponse
	req := models.LoginRequest{Username: username, Password: password}
	if err := c.do(ctx, http.MethodPost, "/api/login", nil, nil, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) UserByUsername(ctx context.Context, auth http.Header, username string) (*models.Profile, error) {
	var profile models.Profile
	q := url.Values{"username": {username}}
	if err := c.do(ctx, http.MethodGet, "/api/users/by-username", q, auth, nil, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

func (c *Client) AddPantryItem(ctx context.Context, auth http.Header, req models.AddPantryItemRequest) (*models.PantryItem, error) {
	var item models.PantryItem
	if err := c.do(ctx, http.MethodPost, "/api/pantry/add", nil, auth, req, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

func (c *Client) ListCartItems(ctx context.Context, auth http.Header) ([]models.ShoppingCartItem, error) {
	var resp models.ShoppingCartListResponse
	if err := c.do(ctx, http.MethodGet, "/api/shopping-cart/list", nil, auth, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Data == nil {
		return []models.ShoppingCartItem{}, nil
	}
	return resp.Data, nil
}

func (c *Client) DeleteCartItem(ctx context.Context, auth http.Header, itemID string) error {
	return c.do(ctx, http.MethodDelete, "/api/shopping-cart/delete/"+url.PathEscape(itemID), nil, auth, nil, nil)
}
