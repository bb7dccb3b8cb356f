package handler

import (
	"net/http"

	"backend/internal/service"
	"backend/pkg/pagination"
	"backend/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type StockHandler struct {
	ledgerService service.LedgerService
}

func NewStockHandler(ledgerService service.LedgerService) *StockHandler {
	return &StockHandler{ledgerService: ledgerService}
}

func (h *StockHandler) RegisterRoutes(router *gin.RouterGroup) {
	stock := router.Group("/stock")
	{
		stock.POST("/adjustments", h.AdjustStock)
		stock.GET("/movements", h.ListMovements)
	}
}

// AdjustStock applies a manual signed stock adjustment
// @Summary      Adjust stock
// @Description  Applies a signed delta to a variant's on-hand quantity and appends the matching ledger movement
// @Tags         stock
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.AdjustStockRequest  true  "Adjust Stock Payload"
// @Success      201      {object}  response.Response{data=model.StockMovement}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Failure      500      {object}  response.Response
// @Router       /api/stock/adjustments [post]
func (h *StockHandler) AdjustStock(c *gin.Context) {
	var req service.AdjustStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	userID := c.GetString("userID")

	movement, err := h.ledgerService.Adjust(c.Request.Context(), userID, req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, movement))
}

// ListMovements retrieves the stock movement history
// @Summary      List stock movements
// @Description  Retrieves ledger movements newest first, optionally filtered to one variant
// @Tags         stock
// @Security     BearerAuth
// @Produce      json
// @Param        page        query     int     false  "Page number (default 1)"
// @Param        limit       query     int     false  "Number of items per page (default 20)"
// @Param        variant_id  query     string  false  "Filter by variant ID"
// @Success      200  {object}  response.Response{data=object}
// @Failure      400  {object}  response.Response
// @Failure      500  {object}  response.Response
// @Router       /api/stock/movements [get]
func (h *StockHandler) ListMovements(c *gin.Context) {
	params := pagination.Parse(c)

	var variantID *uuid.UUID
	if raw := c.Query("variant_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid variant_id: "+raw))
			return
		}
		variantID = &id
	}

	movements, total, err := h.ledgerService.Movements(c.Request.Context(), variantID, params.Page, params.Limit)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, map[string]interface{}{
		"movements": movements,
		"total":     total,
		"page":      params.Page,
		"limit":     params.Limit,
	}))
}
