package handler

import (
	"net/http"

	"backend/internal/service"
	"backend/pkg/pagination"
	"backend/pkg/response"

	"github.com/gin-gonic/gin"
)

type CatalogHandler struct {
	catalogService service.CatalogService
}

func NewCatalogHandler(catalogService service.CatalogService) *CatalogHandler {
	return &CatalogHandler{catalogService: catalogService}
}

func (h *CatalogHandler) RegisterRoutes(router *gin.RouterGroup) {
	products := router.Group("/products")
	{
		products.GET("", h.ListProducts)
		products.POST("", h.CreateProduct)
		products.GET("/:id", h.GetProduct)
		products.PUT("/:id", h.UpdateProduct)
		products.DELETE("/:id", h.DeleteProduct)
		products.POST("/:id/variants", h.CreateVariant)
	}
	router.GET("/variants/:id", h.GetVariant)
	router.PUT("/variants/:id", h.UpdateVariant)

	router.GET("/categories", h.ListCategories)
	router.POST("/categories", h.CreateCategory)
	router.GET("/brands", h.ListBrands)
	router.POST("/brands", h.CreateBrand)
	router.GET("/suppliers", h.ListSuppliers)
	router.POST("/suppliers", h.CreateSupplier)
}

// ListProducts handles retrieving the filtered, paginated catalog
// @Summary      List products
// @Description  Retrieves products with variants, filterable by category, brand, supplier, active flag and name/description search
// @Tags         catalog
// @Security     BearerAuth
// @Produce      json
// @Param        page         query     int     false  "Page number (default 1)"
// @Param        limit        query     int     false  "Number of items per page (default 20)"
// @Param        category_id  query     string  false  "Filter by category ID"
// @Param        brand_id     query     string  false  "Filter by brand ID"
// @Param        supplier_id  query     string  false  "Filter by supplier ID"
// @Param        active       query     bool    false  "Filter by active flag"
// @Param        search       query     string  false  "Search by product name or description"
// @Success      200  {object}  response.Response{data=object}
// @Failure      400  {object}  response.Response
// @Failure      500  {object}  response.Response
// @Router       /api/products [get]
func (h *CatalogHandler) ListProducts(c *gin.Context) {
	params := pagination.Parse(c)

	filter := service.ProductListFilter{
		CategoryID: c.Query("category_id"),
		BrandID:    c.Query("brand_id"),
		SupplierID: c.Query("supplier_id"),
		Search:     c.Query("search"),
		Page:       params.Page,
		Limit:      params.Limit,
	}
	if raw := c.Query("active"); raw != "" {
		active := raw == "true"
		filter.Active = &active
	}

	products, total, err := h.catalogService.ListProducts(c.Request.Context(), filter)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, map[string]interface{}{
		"products": products,
		"total":    total,
		"page":     params.Page,
		"limit":    params.Limit,
	}))
}

// GetProduct retrieves a single product with its variants
// @Summary      Get product
// @Description  Retrieves a product by ID, including variants and stock aggregates
// @Tags         catalog
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Product ID"
// @Success      200  {object}  response.Response{data=model.Product}
// @Failure      404  {object}  response.Response
// @Failure      500  {object}  response.Response
// @Router       /api/products/{id} [get]
func (h *CatalogHandler) GetProduct(c *gin.Context) {
	product, err := h.catalogService.GetProduct(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, product))
}

// CreateProduct creates a product together with its variants
// @Summary      Create product
// @Description  Creates a product with at least one variant; the variant batch is atomic and every SKU must be unique
// @Tags         catalog
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreateProductRequest  true  "Create Product Payload"
// @Success      201      {object}  response.Response{data=model.Product}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Failure      500      {object}  response.Response
// @Router       /api/products [post]
func (h *CatalogHandler) CreateProduct(c *gin.Context) {
	var req service.CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	userID := c.GetString("userID")

	product, err := h.catalogService.CreateProduct(c.Request.Context(), userID, req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, product))
}

// UpdateProduct updates a product's metadata
// @Summary      Update product
// @Description  Updates name, description, references and active flag; variants are managed separately
// @Tags         catalog
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                        true  "Product ID"
// @Param        payload  body      service.UpdateProductRequest  true  "Update Product Payload"
// @Success      200      {object}  response.Response{data=model.Product}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Failure      500      {object}  response.Response
// @Router       /api/products/{id} [put]
func (h *CatalogHandler) UpdateProduct(c *gin.Context) {
	var req service.UpdateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	userID := c.GetString("userID")

	product, err := h.catalogService.UpdateProduct(c.Request.Context(), userID, c.Param("id"), req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, product))
}

// DeleteProduct soft deletes a product and its variants
// @Summary      Delete product
// @Description  Soft deletes a product; rejected while open purchase order lines still reference it
// @Tags         catalog
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Product ID"
// @Success      200  {object}  response.Response
// @Failure      400  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Failure      500  {object}  response.Response
// @Router       /api/products/{id} [delete]
func (h *CatalogHandler) DeleteProduct(c *gin.Context) {
	userID := c.GetString("userID")

	if err := h.catalogService.DeleteProduct(c.Request.Context(), userID, c.Param("id")); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, "Product deleted successfully"))
}

// CreateVariant adds a variant to an existing product
// @Summary      Create variant
// @Description  Adds a variant to a product; the SKU must be unique across the catalog
// @Tags         catalog
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                true  "Product ID"
// @Param        payload  body      service.VariantInput  true  "Create Variant Payload"
// @Success      201      {object}  response.Response{data=model.ProductVariant}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Failure      500      {object}  response.Response
// @Router       /api/products/{id}/variants [post]
func (h *CatalogHandler) CreateVariant(c *gin.Context) {
	var req service.VariantInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	userID := c.GetString("userID")

	variant, err := h.catalogService.CreateVariant(c.Request.Context(), userID, c.Param("id"), req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, variant))
}

// GetVariant retrieves a single variant
// @Summary      Get variant
// @Tags         catalog
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Variant ID"
// @Success      200  {object}  response.Response{data=model.ProductVariant}
// @Failure      404  {object}  response.Response
// @Router       /api/variants/{id} [get]
func (h *CatalogHandler) GetVariant(c *gin.Context) {
	variant, err := h.catalogService.GetVariant(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, variant))
}

// UpdateVariant updates a variant's attributes and prices
// @Summary      Update variant
// @Description  Updates a variant's SKU, prices and attributes; on-hand quantity only changes through stock operations
// @Tags         catalog
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                        true  "Variant ID"
// @Param        payload  body      service.UpdateVariantRequest  true  "Update Variant Payload"
// @Success      200      {object}  response.Response{data=model.ProductVariant}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Failure      500      {object}  response.Response
// @Router       /api/variants/{id} [put]
func (h *CatalogHandler) UpdateVariant(c *gin.Context) {
	var req service.UpdateVariantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	userID := c.GetString("userID")

	variant, err := h.catalogService.UpdateVariant(c.Request.Context(), userID, c.Param("id"), req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, variant))
}

// ListCategories lists product categories
// @Summary      List categories
// @Tags         catalog
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=[]model.Category}
// @Failure      500  {object}  response.Response
// @Router       /api/categories [get]
func (h *CatalogHandler) ListCategories(c *gin.Context) {
	categories, err := h.catalogService.ListCategories(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, categories))
}

// CreateCategory creates a product category
// @Summary      Create category
// @Tags         catalog
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      object{name=string,description=string}  true  "Create Category Payload"
// @Success      201      {object}  response.Response{data=model.Category}
// @Failure      400      {object}  response.Response
// @Failure      500      {object}  response.Response
// @Router       /api/categories [post]
func (h *CatalogHandler) CreateCategory(c *gin.Context) {
	var req struct {
		Name        string `json:"name" binding:"required"`
		Description string `json:"description"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	category, err := h.catalogService.CreateCategory(c.Request.Context(), req.Name, req.Description)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, category))
}

// ListBrands lists product brands
// @Summary      List brands
// @Tags         catalog
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=[]model.Brand}
// @Failure      500  {object}  response.Response
// @Router       /api/brands [get]
func (h *CatalogHandler) ListBrands(c *gin.Context) {
	brands, err := h.catalogService.ListBrands(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, brands))
}

// CreateBrand creates a product brand
// @Summary      Create brand
// @Tags         catalog
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      object{name=string}  true  "Create Brand Payload"
// @Success      201      {object}  response.Response{data=model.Brand}
// @Failure      400      {object}  response.Response
// @Failure      500      {object}  response.Response
// @Router       /api/brands [post]
func (h *CatalogHandler) CreateBrand(c *gin.Context) {
	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	brand, err := h.catalogService.CreateBrand(c.Request.Context(), req.Name)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, brand))
}

// ListSuppliers lists suppliers
// @Summary      List suppliers
// @Tags         catalog
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=[]model.Supplier}
// @Failure      500  {object}  response.Response
// @Router       /api/suppliers [get]
func (h *CatalogHandler) ListSuppliers(c *gin.Context) {
	suppliers, err := h.catalogService.ListSuppliers(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, suppliers))
}

// CreateSupplier creates a supplier
// @Summary      Create supplier
// @Tags         catalog
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      object{name=string,phone=string,email=string}  true  "Create Supplier Payload"
// @Success      201      {object}  response.Response{data=model.Supplier}
// @Failure      400      {object}  response.Response
// @Failure      500      {object}  response.Response
// @Router       /api/suppliers [post]
func (h *CatalogHandler) CreateSupplier(c *gin.Context) {
	var req struct {
		Name  string `json:"name" binding:"required"`
		Phone string `json:"phone"`
		Email string `json:"email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	supplier, err := h.catalogService.CreateSupplier(c.Request.Context(), req.Name, req.Phone, req.Email)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, supplier))
}
