package handlers

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"prepstock-system/internal/database"
	"prepstock-system/internal/database/models"
	"prepstock-system/internal/gateway/middleware"
	"prepstock-system/internal/identity"
	"prepstock-system/internal/logger"
	invhandler "prepstock-system/internal/services/inventory/handler"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	logger.InitializeLogger()
	os.Exit(m.Run())
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

// newInventoryRouter wires the inventory routes behind a middleware that
// installs a fixed session, standing in for JWTAuth.
func newInventoryRouter(h *InventoryHTTPHandler, id identity.Identity) *gin.Engine {
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.IdentityKey, id)
	})
	r.PATCH("/inventory/items/:id/quantity", h.UpdateQuantity)
	return r
}

func patchQuantity(t *testing.T, r *gin.Engine, itemID, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPatch,
		"/inventory/items/"+itemID+"/quantity", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestUpdateQuantityAcceptsZeroDelta(t *testing.T) {
	db := newTestDB(t)
	inventory := invhandler.NewInventoryHandler(db, nil)
	id := identity.Identity{UserID: uuid.NewString(), Email: "chef@example.com"}
	r := newInventoryRouter(NewInventoryHTTPHandler(inventory), id)

	view, err := inventory.AddItem(context.Background(), id, invhandler.AddItemInput{
		InventoryName:   "Tomatoes",
		Category:        "Produce",
		Unit:            "lb",
		CostPerUnit:     "2.50",
		CurrentQuantity: 7,
	})
	if err != nil {
		t.Fatalf("AddItem: %v", err)
	}

	w := patchQuantity(t, r, view.ID, `{"delta": 0}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", w.Code, w.Body.String())
	}

	var qty models.InventoryQuantity
	if err := db.First(&qty, "inventory_id = ?", view.ID).Error; err != nil {
		t.Fatalf("load quantity: %v", err)
	}
	if qty.CurrentQuantity != 7 {
		t.Errorf("quantity after zero delta = %v, want 7", qty.CurrentQuantity)
	}
}

func TestUpdateQuantityRejectsMissingDelta(t *testing.T) {
	db := newTestDB(t)
	inventory := invhandler.NewInventoryHandler(db, nil)
	id := identity.Identity{UserID: uuid.NewString(), Email: "chef@example.com"}
	r := newInventoryRouter(NewInventoryHTTPHandler(inventory), id)

	w := patchQuantity(t, r, uuid.NewString(), `{}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}
