package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"gastos-cloud/internal/domain"
	"gastos-cloud/internal/remote"
	"gastos-cloud/internal/service"
)

// ExpenseHandler mantiene dependencias para los endpoints de gastos.
type ExpenseHandler struct {
	logger   *zap.Logger
	expenses *service.ExpenseService
}

// NewExpenseHandler crea una instancia de ExpenseHandler.
func NewExpenseHandler(logger *zap.Logger, expenses *service.ExpenseService) *ExpenseHandler {
	return &ExpenseHandler{
		logger:   logger,
		expenses: expenses,
	}
}

type expenseBody struct {
	Title    string    `json:"title" binding:"required"`
	Value    float64   `json:"value"`
	ImageURL string    `json:"imageUrl"`
	Dtg      time.Time `json:"dtg"`
}

// List maneja GET /expenses: refresca el cache desde el store remoto.
func (h *ExpenseHandler) List(c *gin.Context) {
	expenses, err := h.expenses.FetchAll(c.Request.Context())
	if err != nil {
		h.writeExpenseError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"expenses": expenses,
		"total":    domain.Total(expenses),
	})
}

// Total maneja GET /expenses/total sobre el snapshot vigente del cache.
func (h *ExpenseHandler) Total(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"total": h.expenses.Total()})
}

// GetOne maneja GET /expenses/:id sin tocar el cache.
func (h *ExpenseHandler) GetOne(c *gin.Context) {
	expense, err := h.expenses.FetchOne(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeExpenseError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"expense": expense})
}

// Create maneja POST /expenses.
func (h *ExpenseHandler) Create(c *gin.Context) {
	var req expenseBody
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid create expense request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	if req.Dtg.IsZero() {
		req.Dtg = time.Now().UTC()
	}

	expense, err := h.expenses.Add(c.Request.Context(), req.Title, req.Value, req.Dtg, req.ImageURL)
	if err != nil {
		h.writeExpenseError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"expense": expense})
}

// Update maneja PUT /expenses/:id.
func (h *ExpenseHandler) Update(c *gin.Context) {
	var req expenseBody
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid update expense request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	expense, err := h.expenses.Update(c.Request.Context(), c.Param("id"), req.Title, req.Value, req.Dtg)
	if err != nil {
		h.writeExpenseError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"expense": expense})
}

// Delete maneja DELETE /expenses/:id.
func (h *ExpenseHandler) Delete(c *gin.Context) {
	if err := h.expenses.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.writeExpenseError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// Upload maneja POST /expenses/image (multipart, campo image).
func (h *ExpenseHandler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing image"})
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable image"})
		return
	}
	defer file.Close()

	result, err := h.expenses.StoreImage(c.Request.Context(), fileHeader.Filename, file)
	if err != nil {
		h.writeExpenseError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"imageUrl":  result.ImageURL,
		"imagePath": result.ImagePath,
	})
}

func (h *ExpenseHandler) writeExpenseError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNoSession):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
	case errors.Is(err, remote.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "expense not found"})
	case errors.Is(err, service.ErrInvalidExpense):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid expense"})
	default:
		h.logger.Error("expense operation failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "expense store unavailable"})
	}
}
