package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"prepstock-system/internal/gateway/middleware"
	invhandler "prepstock-system/internal/services/inventory/handler"
)

type InventoryHTTPHandler struct {
	inventory *invhandler.InventoryHandler
}

func NewInventoryHTTPHandler(inventory *invhandler.InventoryHandler) *InventoryHTTPHandler {
	return &InventoryHTTPHandler{
		inventory: inventory,
	}
}

type AddItemRequest struct {
	InventoryName        string  `json:"inventory_name" binding:"required"`
	Category             string  `json:"category" binding:"required"`
	Unit                 string  `json:"unit" binding:"required"`
	CostPerUnit          string  `json:"cost_per_unit" binding:"required"`
	LastShipmentDate     string  `json:"last_shipment_date"`
	LastShipmentQuantity float64 `json:"last_shipment_quantity"`
	VendorName           string  `json:"vendor_name"`
	CurrentQuantity      float64 `json:"current_quantity"`
	InventoryMinimum     float64 `json:"inventory_minimum"`
	InventoryMaximum     float64 `json:"inventory_maximum"`
}

type BulkAddRequest struct {
	Items []AddItemRequest `json:"items" binding:"required"`
}

// Delta is a pointer so binding can tell an explicit zero from a missing
// field; zero is a valid no-op adjustment.
type UpdateQuantityRequest struct {
	Delta *float64 `json:"delta" binding:"required"`
}

func toInput(req AddItemRequest) invhandler.AddItemInput {
	return invhandler.AddItemInput{
		InventoryName:        req.InventoryName,
		Category:             req.Category,
		Unit:                 req.Unit,
		CostPerUnit:          req.CostPerUnit,
		LastShipmentDate:     req.LastShipmentDate,
		LastShipmentQuantity: req.LastShipmentQuantity,
		VendorName:           req.VendorName,
		CurrentQuantity:      req.CurrentQuantity,
		InventoryMinimum:     req.InventoryMinimum,
		InventoryMaximum:     req.InventoryMaximum,
	}
}

func (h *InventoryHTTPHandler) ListItems(c *gin.Context) {
	views, err := h.inventory.List(c.Request.Context(), middleware.IdentityFrom(c))
	if err != nil {
		c.JSON(statusFromErr(err), errorResponse(err.Error()))
		return
	}

	c.JSON(http.StatusOK, successResponse("Inventory fetched", views))
}

func (h *InventoryHTTPHandler) LowStock(c *gin.Context) {
	views, err := h.inventory.LowStock(c.Request.Context(), middleware.IdentityFrom(c))
	if err != nil {
		c.JSON(statusFromErr(err), errorResponse(err.Error()))
		return
	}

	c.JSON(http.StatusOK, successResponse("Low stock fetched", views))
}

func (h *InventoryHTTPHandler) Summary(c *gin.Context) {
	summary, err := h.inventory.Summarize(c.Request.Context(), middleware.IdentityFrom(c))
	if err != nil {
		c.JSON(statusFromErr(err), errorResponse(err.Error()))
		return
	}

	c.JSON(http.StatusOK, successResponse("Summary fetched", summary))
}

func (h *InventoryHTTPHandler) AddItem(c *gin.Context) {
	var req AddItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request format"))
		return
	}

	view, err := h.inventory.AddItem(c.Request.Context(), middleware.IdentityFrom(c), toInput(req))
	if err != nil {
		c.JSON(statusFromErr(err), errorResponse(err.Error()))
		return
	}

	c.JSON(http.StatusCreated, successResponse("Item added successfully", view))
}

func (h *InventoryHTTPHandler) BulkAdd(c *gin.Context) {
	var req BulkAddRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request format"))
		return
	}

	inputs := make([]invhandler.AddItemInput, 0, len(req.Items))
	for _, item := range req.Items {
		inputs = append(inputs, toInput(item))
	}

	result, err := h.inventory.BulkAdd(c.Request.Context(), middleware.IdentityFrom(c), inputs)
	if err != nil {
		c.JSON(statusFromErr(err), errorResponse(err.Error()))
		return
	}

	c.JSON(http.StatusOK, successResponse(
		fmt.Sprintf("%d items saved successfully", result.Created), result))
}

func (h *InventoryHTTPHandler) DeleteItem(c *gin.Context) {
	itemID := c.Param("id")

	if err := h.inventory.DeleteItem(c.Request.Context(), middleware.IdentityFrom(c), itemID); err != nil {
		c.JSON(statusFromErr(err), errorResponse(err.Error()))
		return
	}

	c.JSON(http.StatusOK, successResponse("Item deleted successfully", nil))
}

func (h *InventoryHTTPHandler) UpdateQuantity(c *gin.Context) {
	itemID := c.Param("id")

	var req UpdateQuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request format"))
		return
	}

	err := h.inventory.UpdateQuantity(c.Request.Context(), middleware.IdentityFrom(c), itemID, *req.Delta)
	if err != nil {
		c.JSON(statusFromErr(err), errorResponse(err.Error()))
		return
	}

	c.JSON(http.StatusOK, successResponse("Quantity updated successfully", nil))
}
