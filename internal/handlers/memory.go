package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"cribb-companion/internal/auth"
	"cribb-companion/internal/database"
	"cribb-companion/internal/models"
)

// MemoryHandler serves the categories a user filed past transfers under, for autocomplete
// in the transfer form.
type MemoryHandler struct {
	history database.History
	log     logrus.FieldLogger
}

func NewMemoryHandler(history database.History, log logrus.FieldLogger) *MemoryHandler {
	return &MemoryHandler{history: history, log: log}
}

func queryLimit(c *gin.Context) int {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit <= 0 || limit > 100 {
		limit = 20
	}
	return limit
}

func (h *MemoryHandler) GetMemory(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	items, err := h.history.Items(c.Request.Context(), userID, models.MemoryQuery{
		Query:    c.Query("q"),
		Category: c.Query("category"),
		Limit:    queryLimit(c),
	})
	if err != nil {
		h.log.WithError(err).Error("Failed to fetch memory items")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch memory items"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *MemoryHandler) GetCategories(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	categories, err := h.history.Categories(c.Request.Context(), userID, c.Query("q"), queryLimit(c))
	if err != nil {
		h.log.WithError(err).Error("Failed to fetch categories")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch categories"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"categories": categories})
}

func (h *MemoryHandler) GetMemoryStats(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	stats, err := h.history.Stats(c.Request.Context(), userID)
	if err != nil {
		h.log.WithError(err).Error("Failed to get memory stats")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get memory stats"})
		return
	}

	c.JSON(http.StatusOK, stats)
}
