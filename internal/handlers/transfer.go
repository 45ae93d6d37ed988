package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"cribb-companion/internal/auth"
	"cribb-companion/internal/database"
	"cribb-companion/internal/models"
	"cribb-companion/internal/transfer"
)

type TransferHandler struct {
	transfer *transfer.Transfer
	journal  database.Journal
	history  database.History
	log      logrus.FieldLogger
}

func NewTransferHandler(transfer *transfer.Transfer, journal database.Journal, history database.History, log logrus.FieldLogger) *TransferHandler {
	return &TransferHandler{transfer: transfer, journal: journal, history: history, log: log}
}

func (h *TransferHandler) GetState(c *gin.Context) {
	c.JSON(http.StatusOK, h.transfer.State())
}

// Confirm submits the open transfer. Every failure answers with the modal's new state so
// the UI can show the same message the state carries.
func (h *TransferHandler) Confirm(c *gin.Context) {
	var req models.ConfirmTransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	var itemName string
	if open := h.transfer.State().Item; open != nil {
		itemName = open.ItemName
	}

	item, err := h.transfer.Confirm(c.Request.Context(), req.Category, req.ExpirationDate)
	if err != nil {
		var validationErr *transfer.ValidationError
		var stageErr *transfer.StageError
		switch {
		case errors.As(err, &validationErr):
			c.JSON(http.StatusBadRequest, gin.H{"error": validationErr.Message, "state": h.transfer.State()})
		case errors.As(err, &stageErr):
			c.JSON(http.StatusBadGateway, gin.H{
				"error": stageErr.Error(),
				"stage": stageErr.Stage,
				"state": h.transfer.State(),
			})
		case errors.Is(err, transfer.ErrNotOpen):
			c.JSON(http.StatusConflict, gin.H{"error": "No transfer is open"})
		case errors.Is(err, transfer.ErrSubmitting):
			c.JSON(http.StatusConflict, gin.H{"error": "A transfer is being submitted"})
		default:
			respondError(c, err)
		}
		return
	}

	h.remember(c, itemName, req.Category)
	c.JSON(http.StatusOK, gin.H{"pantry_item": item, "state": h.transfer.State()})
}

// remember feeds the category memory. The transfer already succeeded, so failures are logged only.
func (h *TransferHandler) remember(c *gin.Context, itemName, category string) {
	userID, ok := auth.GetUserID(c)
	if !ok || itemName == "" {
		return
	}
	err := h.history.Add(c.Request.Context(), models.TransferHistoryEntry{
		ID:            uuid.NewString(),
		UserID:        userID,
		ItemName:      itemName,
		Category:      strings.TrimSpace(category),
		TransferredAt: time.Now().UTC(),
	})
	if err != nil {
		h.log.WithError(err).WithField("item_name", itemName).Warn("Failed to record transfer history")
	}
}

func (h *TransferHandler) Cancel(c *gin.Context) {
	if err := h.transfer.Cancel(); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "A transfer is being submitted"})
		return
	}
	c.JSON(http.StatusOK, h.transfer.State())
}

// GetJournal lists transfers that left an item in both the pantry and the cart.
func (h *TransferHandler) GetJournal(c *gin.Context) {
	entries, err := h.journal.Unresolved(c.Request.Context())
	if err != nil {
		h.log.WithError(err).Error("Failed to read transfer journal")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read transfer journal"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries, "count": len(entries)})
}
