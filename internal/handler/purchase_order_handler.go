package handler

import (
	"net/http"

	"backend/internal/service"
	"backend/pkg/pagination"
	"backend/pkg/response"

	"github.com/gin-gonic/gin"
)

type PurchaseOrderHandler struct {
	poService service.PurchaseOrderService
}

func NewPurchaseOrderHandler(poService service.PurchaseOrderService) *PurchaseOrderHandler {
	return &PurchaseOrderHandler{poService: poService}
}

func (h *PurchaseOrderHandler) RegisterRoutes(router *gin.RouterGroup) {
	orders := router.Group("/purchase-orders")
	{
		orders.GET("", h.ListPurchaseOrders)
		orders.POST("", h.CreatePurchaseOrder)
		orders.GET("/:id", h.GetPurchaseOrder)
		orders.PUT("/:id", h.UpdatePurchaseOrder)
		orders.POST("/:id/submit", h.SubmitPurchaseOrder)
		orders.POST("/:id/receive", h.ReceivePurchaseOrder)
	}
}

// ListPurchaseOrders retrieves purchase orders
// @Summary      List purchase orders
// @Tags         purchase-orders
// @Security     BearerAuth
// @Produce      json
// @Param        page    query     int     false  "Page number (default 1)"
// @Param        limit   query     int     false  "Number of items per page (default 20)"
// @Param        status  query     string  false  "Filter by status (draft, submitted, received)"
// @Success      200  {object}  response.Response{data=object}
// @Failure      500  {object}  response.Response
// @Router       /api/purchase-orders [get]
func (h *PurchaseOrderHandler) ListPurchaseOrders(c *gin.Context) {
	params := pagination.Parse(c)

	orders, total, err := h.poService.List(c.Request.Context(), c.Query("status"), params.Page, params.Limit)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, map[string]interface{}{
		"purchase_orders": orders,
		"total":           total,
		"page":            params.Page,
		"limit":           params.Limit,
	}))
}

// GetPurchaseOrder retrieves a purchase order with its lines
// @Summary      Get purchase order
// @Tags         purchase-orders
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Purchase Order ID"
// @Success      200  {object}  response.Response{data=model.PurchaseOrder}
// @Failure      404  {object}  response.Response
// @Router       /api/purchase-orders/{id} [get]
func (h *PurchaseOrderHandler) GetPurchaseOrder(c *gin.Context) {
	order, err := h.poService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, order))
}

// CreatePurchaseOrder creates a draft purchase order
// @Summary      Create purchase order
// @Description  Creates a purchase order in draft status; stock is untouched until receiving
// @Tags         purchase-orders
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreatePurchaseOrderRequest  true  "Create Purchase Order Payload"
// @Success      201      {object}  response.Response{data=model.PurchaseOrder}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Failure      500      {object}  response.Response
// @Router       /api/purchase-orders [post]
func (h *PurchaseOrderHandler) CreatePurchaseOrder(c *gin.Context) {
	var req service.CreatePurchaseOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	userID := c.GetString("userID")

	order, err := h.poService.Create(c.Request.Context(), userID, req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, order))
}

// UpdatePurchaseOrder updates a draft purchase order
// @Summary      Update purchase order
// @Description  Replaces a draft's supplier, lines and notes; orders past draft are frozen
// @Tags         purchase-orders
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                              true  "Purchase Order ID"
// @Param        payload  body      service.UpdatePurchaseOrderRequest  true  "Update Purchase Order Payload"
// @Success      200      {object}  response.Response{data=model.PurchaseOrder}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Failure      500      {object}  response.Response
// @Router       /api/purchase-orders/{id} [put]
func (h *PurchaseOrderHandler) UpdatePurchaseOrder(c *gin.Context) {
	var req service.UpdatePurchaseOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	userID := c.GetString("userID")

	order, err := h.poService.Update(c.Request.Context(), userID, c.Param("id"), req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, order))
}

// SubmitPurchaseOrder moves a draft order to submitted
// @Summary      Submit purchase order
// @Description  Transitions a draft order to submitted, making it receivable and freezing its lines
// @Tags         purchase-orders
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Purchase Order ID"
// @Success      200  {object}  response.Response{data=model.PurchaseOrder}
// @Failure      404  {object}  response.Response
// @Failure      409  {object}  response.Response
// @Failure      500  {object}  response.Response
// @Router       /api/purchase-orders/{id}/submit [post]
func (h *PurchaseOrderHandler) SubmitPurchaseOrder(c *gin.Context) {
	userID := c.GetString("userID")

	order, err := h.poService.Submit(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, order))
}

// ReceivePurchaseOrder records a delivery against a submitted order
// @Summary      Receive purchase order
// @Description  Credits stock for the received quantities through the ledger; with no lines in the body every outstanding remainder is received. The order becomes received once all lines are complete
// @Tags         purchase-orders
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                             true   "Purchase Order ID"
// @Param        payload  body      object{lines=[]service.ReceiveLine}  false  "Receive Payload"
// @Success      200      {object}  response.Response{data=model.PurchaseOrder}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Failure      500      {object}  response.Response
// @Router       /api/purchase-orders/{id}/receive [post]
func (h *PurchaseOrderHandler) ReceivePurchaseOrder(c *gin.Context) {
	var req struct {
		Lines []service.ReceiveLine `json:"lines" binding:"omitempty,dive"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
			return
		}
	}

	userID := c.GetString("userID")

	order, err := h.poService.Receive(c.Request.Context(), userID, c.Param("id"), req.Lines)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, order))
}
