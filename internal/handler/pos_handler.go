package handler

import (
	"net/http"

	"backend/internal/service"
	"backend/pkg/pagination"
	"backend/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// POSHandler exposes the checkout flow: one cart per operator session plus
// the commit endpoint that turns it into a sale.
type POSHandler struct {
	cartService service.CartService
	saleService service.SaleService
}

func NewPOSHandler(cartService service.CartService, saleService service.SaleService) *POSHandler {
	return &POSHandler{cartService: cartService, saleService: saleService}
}

func (h *POSHandler) RegisterRoutes(router *gin.RouterGroup) {
	cart := router.Group("/cart")
	{
		cart.GET("", h.GetCart)
		cart.POST("/items", h.AddCartItem)
		cart.PUT("/items/:itemId", h.UpdateCartItem)
		cart.DELETE("/items/:itemId", h.RemoveCartItem)
		cart.PUT("/discount", h.SetCartDiscount)
		cart.DELETE("", h.ClearCart)
	}
	sales := router.Group("/sales")
	{
		sales.POST("", h.CommitSale)
		sales.GET("", h.ListSales)
		sales.GET("/:id", h.GetSale)
	}
}

// sessionID keys the operator's cart. An explicit header wins so one user can
// run several registers; otherwise the authenticated user id is the session.
func sessionID(c *gin.Context) string {
	if sid := c.GetHeader("X-Session-ID"); sid != "" {
		return sid
	}
	return c.GetString("userID")
}

// GetCart retrieves the session's active cart
// @Summary      Get cart
// @Tags         pos
// @Security     BearerAuth
// @Produce      json
// @Param        X-Session-ID  header    string  false  "Cart session key (defaults to user ID)"
// @Success      200  {object}  response.Response{data=model.Cart}
// @Failure      400  {object}  response.Response
// @Router       /api/cart [get]
func (h *POSHandler) GetCart(c *gin.Context) {
	cart, err := h.cartService.Get(c.Request.Context(), sessionID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, cart))
}

// AddCartItem adds a variant to the cart
// @Summary      Add cart item
// @Description  Adds a variant to the cart, merging with an existing line for the same variant; price is snapshotted now, stock is checked live
// @Tags         pos
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        X-Session-ID  header    string                    false  "Cart session key (defaults to user ID)"
// @Param        payload       body      service.AddToCartRequest  true   "Add Item Payload"
// @Success      200  {object}  response.Response{data=model.Cart}
// @Failure      400  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Failure      409  {object}  response.Response
// @Router       /api/cart/items [post]
func (h *POSHandler) AddCartItem(c *gin.Context) {
	var req service.AddToCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	cart, err := h.cartService.AddItem(c.Request.Context(), sessionID(c), req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, cart))
}

// UpdateCartItem changes a cart line's quantity
// @Summary      Update cart item
// @Description  Sets a cart line's quantity against live stock; zero or less removes the line
// @Tags         pos
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        X-Session-ID  header    string                false  "Cart session key (defaults to user ID)"
// @Param        itemId        path      string                true   "Cart Item ID"
// @Param        payload       body      object{quantity=int}  true   "Update Item Payload"
// @Success      200  {object}  response.Response{data=model.Cart}
// @Failure      400  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Failure      409  {object}  response.Response
// @Router       /api/cart/items/{itemId} [put]
func (h *POSHandler) UpdateCartItem(c *gin.Context) {
	var req struct {
		Quantity int `json:"quantity"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	cart, err := h.cartService.UpdateItem(c.Request.Context(), sessionID(c), c.Param("itemId"), req.Quantity)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, cart))
}

// RemoveCartItem removes a cart line
// @Summary      Remove cart item
// @Tags         pos
// @Security     BearerAuth
// @Produce      json
// @Param        X-Session-ID  header    string  false  "Cart session key (defaults to user ID)"
// @Param        itemId        path      string  true   "Cart Item ID"
// @Success      200  {object}  response.Response{data=model.Cart}
// @Failure      400  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /api/cart/items/{itemId} [delete]
func (h *POSHandler) RemoveCartItem(c *gin.Context) {
	cart, err := h.cartService.RemoveItem(c.Request.Context(), sessionID(c), c.Param("itemId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, cart))
}

// SetCartDiscount applies a flat discount to the cart
// @Summary      Set cart discount
// @Tags         pos
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        X-Session-ID  header    string                   false  "Cart session key (defaults to user ID)"
// @Param        payload       body      object{discount=string}  true   "Discount Payload"
// @Success      200  {object}  response.Response{data=model.Cart}
// @Failure      400  {object}  response.Response
// @Router       /api/cart/discount [put]
func (h *POSHandler) SetCartDiscount(c *gin.Context) {
	var req struct {
		Discount string `json:"discount" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}
	discount, err := decimal.NewFromString(req.Discount)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid discount: "+req.Discount))
		return
	}

	cart, err := h.cartService.SetDiscount(c.Request.Context(), sessionID(c), discount)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, cart))
}

// ClearCart empties the session's cart
// @Summary      Clear cart
// @Tags         pos
// @Security     BearerAuth
// @Produce      json
// @Param        X-Session-ID  header    string  false  "Cart session key (defaults to user ID)"
// @Success      200  {object}  response.Response{data=model.Cart}
// @Router       /api/cart [delete]
func (h *POSHandler) ClearCart(c *gin.Context) {
	cart, err := h.cartService.Clear(c.Request.Context(), sessionID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, cart))
}

// CommitSale converts the cart into a sale
// @Summary      Commit sale
// @Description  Re-validates every cart line against live stock, then records the sale and its ledger decrements atomically; any shortage rejects the whole sale listing all failing lines
// @Tags         pos
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        X-Session-ID  header    string               false  "Cart session key (defaults to user ID)"
// @Param        payload       body      service.PaymentInfo  true   "Payment Payload"
// @Success      201  {object}  response.Response{data=model.Sale}
// @Failure      400  {object}  response.Response
// @Failure      409  {object}  response.Response
// @Failure      500  {object}  response.Response
// @Router       /api/sales [post]
func (h *POSHandler) CommitSale(c *gin.Context) {
	var payment service.PaymentInfo
	if err := c.ShouldBindJSON(&payment); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	userID := c.GetString("userID")

	sale, err := h.saleService.Commit(c.Request.Context(), sessionID(c), userID, payment)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, sale))
}

// ListSales retrieves completed sales
// @Summary      List sales
// @Tags         pos
// @Security     BearerAuth
// @Produce      json
// @Param        page   query     int  false  "Page number (default 1)"
// @Param        limit  query     int  false  "Number of items per page (default 20)"
// @Success      200  {object}  response.Response{data=object}
// @Failure      500  {object}  response.Response
// @Router       /api/sales [get]
func (h *POSHandler) ListSales(c *gin.Context) {
	params := pagination.Parse(c)

	sales, total, err := h.saleService.List(c.Request.Context(), params.Page, params.Limit)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, map[string]interface{}{
		"sales": sales,
		"total": total,
		"page":  params.Page,
		"limit": params.Limit,
	}))
}

// GetSale retrieves a sale with its line items
// @Summary      Get sale
// @Tags         pos
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Sale ID"
// @Success      200  {object}  response.Response{data=model.Sale}
// @Failure      404  {object}  response.Response
// @Router       /api/sales/{id} [get]
func (h *POSHandler) GetSale(c *gin.Context) {
	sale, err := h.saleService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, sale))
}
