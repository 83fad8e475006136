package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"prepstock-system/internal/database/models"
	"prepstock-system/internal/identity"
	"prepstock-system/internal/logger"
	"prepstock-system/internal/serviceerr"
)

const (
	INVENTORY_CACHE_PREFIX = "inventory:user:"
	CACHE_TTL_SHORT        = 5 * time.Minute
)

var validCategories = map[string]bool{
	"Produce":   true,
	"Meat":      true,
	"Dairy":     true,
	"Dry Goods": true,
	"Beverages": true,
}

var validUnits = map[string]bool{
	"lb":     true,
	"oz":     true,
	"case":   true,
	"each":   true,
	"gallon": true,
}

type InventoryHandler struct {
	db    *gorm.DB
	redis *redis.Client
}

func NewInventoryHandler(db *gorm.DB, redisClient *redis.Client) *InventoryHandler {
	return &InventoryHandler{
		db:    db,
		redis: redisClient,
	}
}

// ItemView is an inventory row flattened with its quantity and vendor
// sub-records. A missing quantity record reads as 0/null/null, a missing
// vendor as a null name.
type ItemView struct {
	ID                   string   `json:"id"`
	InventoryName        string   `json:"inventory_name"`
	Category             string   `json:"category"`
	Unit                 string   `json:"unit"`
	CostPerUnit          string   `json:"cost_per_unit"`
	LastShipmentDate     *string  `json:"last_shipment_date"`
	LastShipmentQuantity *float64 `json:"last_shipment_quantity"`
	VendorID             *string  `json:"vendor_id"`
	VendorName           *string  `json:"vendor_name"`
	CurrentQuantity      float64  `json:"current_quantity"`
	InventoryMinimum     *float64 `json:"inventory_minimum"`
	InventoryMaximum     *float64 `json:"inventory_maximum"`
}

type AddItemInput struct {
	InventoryName        string
	Category             string
	Unit                 string
	CostPerUnit          string
	LastShipmentDate     string
	LastShipmentQuantity float64
	VendorName           string
	CurrentQuantity      float64
	InventoryMinimum     float64
	InventoryMaximum     float64
}

type BulkItemError struct {
	Index   int    `json:"index"`
	Message string `json:"message"`
}

type BulkAddResult struct {
	Created int             `json:"created"`
	Errors  []BulkItemError `json:"errors"`
}

type Summary struct {
	TotalValue    string `json:"total_value"`
	ItemCount     int    `json:"item_count"`
	LowStockCount int    `json:"low_stock_count"`
}

func validateItem(input AddItemInput) error {
	if input.InventoryName == "" {
		return serviceerr.New(serviceerr.Invalid, "Item name is required")
	}
	if !validCategories[input.Category] {
		return serviceerr.New(serviceerr.Invalid, "Unknown category: "+input.Category)
	}
	if !validUnits[input.Unit] {
		return serviceerr.New(serviceerr.Invalid, "Unknown unit: "+input.Unit)
	}
	cost, err := decimal.NewFromString(input.CostPerUnit)
	if err != nil || cost.IsNegative() {
		return serviceerr.New(serviceerr.Invalid, "Cost per unit must be a non-negative number")
	}
	return nil
}

// visibleUserIDs resolves whose rows the caller may see: teammates when a
// membership exists, otherwise only the caller.
func (s *InventoryHandler) visibleUserIDs(ctx context.Context, id identity.Identity) ([]string, error) {
	var membership models.TeamMembership
	err := s.db.WithContext(ctx).Where("user_id = ?", id.UserID).First(&membership).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return []string{id.UserID}, nil
	} else if err != nil {
		return nil, serviceerr.Wrap(serviceerr.Internal, "Database error", err)
	}

	var ids []string
	err = s.db.WithContext(ctx).Model(&models.TeamMembership{}).
		Where("team_id = ?", membership.TeamID).
		Pluck("user_id", &ids).Error
	if err != nil {
		return nil, serviceerr.Wrap(serviceerr.Internal, "Database error", err)
	}
	return ids, nil
}

func (s *InventoryHandler) InvalidateInventoryCaches(ctx context.Context, userIDs ...string) {
	if s.redis == nil {
		return
	}
	for _, id := range userIDs {
		_ = s.redis.Del(ctx, INVENTORY_CACHE_PREFIX+id)
	}
}

func (s *InventoryHandler) List(ctx context.Context, id identity.Identity) ([]ItemView, error) {
	if !id.Authenticated() {
		return nil, serviceerr.New(serviceerr.Unauthenticated, "Not authenticated")
	}

	cacheKey := INVENTORY_CACHE_PREFIX + id.UserID
	if s.redis != nil {
		if cached, err := s.redis.Get(ctx, cacheKey).Result(); err == nil {
			var views []ItemView
			if json.Unmarshal([]byte(cached), &views) == nil {
				return views, nil
			}
		}
	}

	ids, err := s.visibleUserIDs(ctx, id)
	if err != nil {
		return nil, err
	}

	var items []models.InventoryItem
	err = s.db.WithContext(ctx).
		Preload("Vendor").
		Preload("Quantity").
		Where("user_id IN ?", ids).
		Order("inventory_name").
		Find(&items).Error
	if err != nil {
		return nil, serviceerr.Wrap(serviceerr.Internal, "Database error", err)
	}

	views := make([]ItemView, 0, len(items))
	for _, item := range items {
		views = append(views, flattenItem(item))
	}

	if s.redis != nil {
		if data, err := json.Marshal(views); err == nil {
			_ = s.redis.Set(ctx, cacheKey, data, CACHE_TTL_SHORT)
		}
	}
	return views, nil
}

func flattenItem(item models.InventoryItem) ItemView {
	view := ItemView{
		ID:                   item.ID,
		InventoryName:        item.InventoryName,
		Category:             item.Category,
		Unit:                 item.Unit,
		CostPerUnit:          item.CostPerUnit,
		LastShipmentDate:     item.LastShipmentDate,
		LastShipmentQuantity: item.LastShipmentQuantity,
		VendorID:             item.VendorID,
	}
	if item.Vendor != nil {
		view.VendorName = &item.Vendor.VendorName
	}
	if item.Quantity != nil {
		view.CurrentQuantity = item.Quantity.CurrentQuantity
		view.InventoryMinimum = item.Quantity.InventoryMinimum
		view.InventoryMaximum = item.Quantity.InventoryMaximum
	}
	return view
}

// AddItem creates the vendor (if needed), item, and quantity rows in one
// transaction, so no partial item can persist.
func (s *InventoryHandler) AddItem(ctx context.Context, id identity.Identity, input AddItemInput) (*ItemView, error) {
	if !id.Authenticated() {
		return nil, serviceerr.New(serviceerr.Unauthenticated, "Not authenticated")
	}
	if err := validateItem(input); err != nil {
		return nil, err
	}

	var item models.InventoryItem
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var vendorID *string
		if input.VendorName != "" {
			vendor, err := resolveVendor(tx, id.UserID, input.VendorName)
			if err != nil {
				return err
			}
			vendorID = &vendor.ID
		}

		item = models.InventoryItem{
			UserID:               id.UserID,
			InventoryName:        input.InventoryName,
			Category:             input.Category,
			Unit:                 input.Unit,
			CostPerUnit:          input.CostPerUnit,
			LastShipmentQuantity: &input.LastShipmentQuantity,
			VendorID:             vendorID,
		}
		if input.LastShipmentDate != "" {
			item.LastShipmentDate = &input.LastShipmentDate
		}
		if err := tx.Create(&item).Error; err != nil {
			return err
		}

		quantity := models.InventoryQuantity{
			InventoryID:      item.ID,
			UserID:           id.UserID,
			CurrentQuantity:  input.CurrentQuantity,
			InventoryMinimum: &input.InventoryMinimum,
			InventoryMaximum: &input.InventoryMaximum,
			VendorID:         vendorID,
		}
		item.Quantity = &quantity
		return tx.Create(&quantity).Error
	})
	if err != nil {
		var svcErr *serviceerr.Error
		if errors.As(err, &svcErr) {
			return nil, svcErr
		}
		return nil, serviceerr.Wrap(serviceerr.Internal, "Error creating item", err)
	}

	ids, err := s.visibleUserIDs(ctx, id)
	if err != nil {
		logger.Warn("membership lookup failed, invalidating caller cache only", zap.Error(err))
		ids = []string{id.UserID}
	}
	s.InvalidateInventoryCaches(ctx, ids...)

	logger.Info("inventory item created",
		zap.String("item_id", item.ID),
		zap.String("user_id", id.UserID),
	)
	view := flattenItem(item)
	if input.VendorName != "" {
		view.VendorName = &input.VendorName
	}
	return &view, nil
}

// resolveVendor reuses an existing vendor by exact name or creates one. The
// unique (user_id, vendor_name) index backs the check against concurrent
// inserts.
func resolveVendor(tx *gorm.DB, userID, name string) (*models.Vendor, error) {
	var vendor models.Vendor
	err := tx.Where("user_id = ? AND vendor_name = ?", userID, name).First(&vendor).Error
	if err == nil {
		return &vendor, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	vendor = models.Vendor{UserID: userID, VendorName: name}
	if err := tx.Create(&vendor).Error; err != nil {
		return nil, err
	}
	return &vendor, nil
}

// BulkAdd applies items strictly in order. A failed item is recorded and
// processing continues; items are deliberately not transactional as a batch.
func (s *InventoryHandler) BulkAdd(ctx context.Context, id identity.Identity, inputs []AddItemInput) (*BulkAddResult, error) {
	if !id.Authenticated() {
		return nil, serviceerr.New(serviceerr.Unauthenticated, "Not authenticated")
	}
	if len(inputs) == 0 {
		return nil, serviceerr.New(serviceerr.Invalid, "At least one item is required")
	}

	result := &BulkAddResult{Errors: []BulkItemError{}}
	for i, input := range inputs {
		if _, err := s.AddItem(ctx, id, input); err != nil {
			result.Errors = append(result.Errors, BulkItemError{Index: i, Message: err.Error()})
			continue
		}
		result.Created++
	}
	return result, nil
}

// DeleteItem removes an owned item; the quantity row goes with it via the
// cascading foreign key, not application code.
func (s *InventoryHandler) DeleteItem(ctx context.Context, id identity.Identity, itemID string) error {
	if !id.Authenticated() {
		return serviceerr.New(serviceerr.Unauthenticated, "Not authenticated")
	}

	res := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", itemID, id.UserID).
		Delete(&models.InventoryItem{})
	if res.Error != nil {
		return serviceerr.Wrap(serviceerr.Internal, "Error deleting item", res.Error)
	}
	if res.RowsAffected == 0 {
		return serviceerr.New(serviceerr.NotFound, "Item not found")
	}

	ids, err := s.visibleUserIDs(ctx, id)
	if err != nil {
		logger.Warn("membership lookup failed, invalidating caller cache only", zap.Error(err))
		ids = []string{id.UserID}
	}
	s.InvalidateInventoryCaches(ctx, ids...)
	return nil
}

// UpdateQuantity applies a delta as a single atomic UPDATE that clamps the
// result at zero, so concurrent deltas cannot lose updates or drive the
// quantity negative.
func (s *InventoryHandler) UpdateQuantity(ctx context.Context, id identity.Identity, itemID string, delta float64) error {
	if !id.Authenticated() {
		return serviceerr.New(serviceerr.Unauthenticated, "Not authenticated")
	}

	ids, err := s.visibleUserIDs(ctx, id)
	if err != nil {
		return err
	}

	var item models.InventoryItem
	err = s.db.WithContext(ctx).Where("id = ? AND user_id IN ?", itemID, ids).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return serviceerr.New(serviceerr.NotFound, "Item not found")
	} else if err != nil {
		return serviceerr.Wrap(serviceerr.Internal, "Database error", err)
	}

	res := s.db.WithContext(ctx).Model(&models.InventoryQuantity{}).
		Where("inventory_id = ?", itemID).
		Update("current_quantity", gorm.Expr(
			"CASE WHEN current_quantity + ? < 0 THEN 0 ELSE current_quantity + ? END", delta, delta))
	if res.Error != nil {
		return serviceerr.Wrap(serviceerr.Internal, "Error updating quantity", res.Error)
	}
	if res.RowsAffected == 0 {
		return serviceerr.New(serviceerr.NotFound, fmt.Sprintf("No quantity record for item %s", itemID))
	}

	s.InvalidateInventoryCaches(ctx, ids...)
	return nil
}

// TotalValue sums current_quantity x cost_per_unit over the views, treating
// missing or unparseable values as zero.
func TotalValue(views []ItemView) decimal.Decimal {
	total := decimal.Zero
	for _, v := range views {
		cost, err := decimal.NewFromString(v.CostPerUnit)
		if err != nil {
			continue
		}
		total = total.Add(cost.Mul(decimal.NewFromFloat(v.CurrentQuantity)))
	}
	return total
}

// LowStockItems filters views where current_quantity <= minimum, with a null
// minimum treated as zero. An item at zero with no configured minimum is low.
func LowStockItems(views []ItemView) []ItemView {
	low := make([]ItemView, 0)
	for _, v := range views {
		min := 0.0
		if v.InventoryMinimum != nil {
			min = *v.InventoryMinimum
		}
		if v.CurrentQuantity <= min {
			low = append(low, v)
		}
	}
	return low
}

func (s *InventoryHandler) LowStock(ctx context.Context, id identity.Identity) ([]ItemView, error) {
	views, err := s.List(ctx, id)
	if err != nil {
		return nil, err
	}
	return LowStockItems(views), nil
}

func (s *InventoryHandler) Summarize(ctx context.Context, id identity.Identity) (*Summary, error) {
	views, err := s.List(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Summary{
		TotalValue:    TotalValue(views).StringFixed(2),
		ItemCount:     len(views),
		LowStockCount: len(LowStockItems(views)),
	}, nil
}
