package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"cribb-companion/internal/stores"
	"cribb-companion/internal/transfer"
)

type CartHandler struct {
	cart     *stores.CartStore
	transfer *transfer.Transfer
}

func NewCartHandler(cart *stores.CartStore, transfer *transfer.Transfer) *CartHandler {
	return &CartHandler{cart: cart, transfer: transfer}
}

// GetItems returns the cart as last fetched from the backend.
func (h *CartHandler) GetItems(c *gin.Context) {
	items := h.cart.Items()
	c.JSON(http.StatusOK, gin.H{"items": items, "count": len(items)})
}

func (h *CartHandler) Refresh(c *gin.Context) {
	items, err := h.cart.Refresh(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "count": len(items)})
}

// OpenTransfer starts moving a cart item into the pantry. An item not in the cached list
// is looked up again after a refresh.
func (h *CartHandler) OpenTransfer(c *gin.Context) {
	id := c.Param("id")
	item, found := h.cart.Item(id)
	if !found {
		if _, err := h.cart.Refresh(c.Request.Context()); err != nil {
			respondError(c, err)
			return
		}
		item, found = h.cart.Item(id)
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "Cart item not found"})
		return
	}

	if err := h.transfer.Open(item); err != nil {
		if errors.Is(err, transfer.ErrSubmitting) {
			c.JSON(http.StatusConflict, gin.H{"error": "A transfer is being submitted"})
			return
		}
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.transfer.State())
}
