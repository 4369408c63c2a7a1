package cart

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/sportsfesthq/sportsfest-backend/internal/inventory"
	"github.com/sportsfesthq/sportsfest-backend/pkg/config"
	"github.com/sportsfesthq/sportsfest-backend/pkg/db"
	"github.com/sportsfesthq/sportsfest-backend/pkg/db/models"
	"github.com/sportsfesthq/sportsfest-backend/pkg/enums"
	pkgerrors "github.com/sportsfesthq/sportsfest-backend/pkg/errors"
)

func TestSetItemQuantityReservesAndSlidesExpiry(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()

	orgID := uuid.New()
	eventYearID := uuid.New()
	product := seedProduct(t, conn, eventYearID, intPtr(10), nil)

	snap, err := svc.SetItemQuantity(ctx, SetItemInput{
		OrganizationID: orgID,
		EventYearID:    eventYearID,
		ProductID:      product.ID,
		Quantity:       3,
	})
	if err != nil {
		t.Fatalf("set item: %v", err)
	}
	if len(snap.Items) != 1 || snap.Items[0].Quantity != 3 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	if snap.SubtotalCents != 3*product.PriceCents {
		t.Fatalf("expected subtotal %d, got %d", 3*product.PriceCents, snap.SubtotalCents)
	}
	if reservedCount(t, conn, product.ID) != 3 {
		t.Fatalf("expected ledger hold of 3")
	}

	firstExpiry := snap.ExpiresAt
	time.Sleep(10 * time.Millisecond)

	snap, err = svc.SetItemQuantity(ctx, SetItemInput{
		OrganizationID: orgID,
		EventYearID:    eventYearID,
		ProductID:      product.ID,
		Quantity:       5,
	})
	if err != nil {
		t.Fatalf("grow item: %v", err)
	}
	if reservedCount(t, conn, product.ID) != 5 {
		t.Fatalf("expected ledger hold of 5 after growing line")
	}
	if !snap.ExpiresAt.After(firstExpiry) {
		t.Fatalf("expected expiry to slide forward")
	}
}

func TestSetItemQuantityShrinkReleasesDelta(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()

	orgID := uuid.New()
	eventYearID := uuid.New()
	product := seedProduct(t, conn, eventYearID, intPtr(10), nil)

	if _, err := svc.SetItemQuantity(ctx, SetItemInput{OrganizationID: orgID, EventYearID: eventYearID, ProductID: product.ID, Quantity: 7}); err != nil {
		t.Fatalf("set item: %v", err)
	}
	if _, err := svc.SetItemQuantity(ctx, SetItemInput{OrganizationID: orgID, EventYearID: eventYearID, ProductID: product.ID, Quantity: 2}); err != nil {
		t.Fatalf("shrink item: %v", err)
	}
	if got := reservedCount(t, conn, product.ID); got != 2 {
		t.Fatalf("expected ledger hold of 2, got %d", got)
	}
}

func TestSetItemQuantityZeroDeletesLine(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()

	orgID := uuid.New()
	eventYearID := uuid.New()
	product := seedProduct(t, conn, eventYearID, intPtr(10), nil)

	if _, err := svc.SetItemQuantity(ctx, SetItemInput{OrganizationID: orgID, EventYearID: eventYearID, ProductID: product.ID, Quantity: 3}); err != nil {
		t.Fatalf("set item: %v", err)
	}

	snap, err := svc.SetItemQuantity(ctx, SetItemInput{OrganizationID: orgID, EventYearID: eventYearID, ProductID: product.ID, Quantity: 0})
	if err != nil {
		t.Fatalf("set quantity zero: %v", err)
	}
	if len(snap.Items) != 0 {
		t.Fatalf("expected line removed, got %+v", snap.Items)
	}
	if got := reservedCount(t, conn, product.ID); got != 0 {
		t.Fatalf("expected ledger hold released, got %d", got)
	}

	// Zero on a line that is not in the cart is a quiet no-op.
	snap, err = svc.SetItemQuantity(ctx, SetItemInput{OrganizationID: orgID, EventYearID: eventYearID, ProductID: product.ID, Quantity: 0})
	if err != nil {
		t.Fatalf("set quantity zero on absent line: %v", err)
	}
	if len(snap.Items) != 0 {
		t.Fatalf("expected empty cart, got %+v", snap.Items)
	}

	_, err = svc.SetItemQuantity(ctx, SetItemInput{OrganizationID: orgID, EventYearID: eventYearID, ProductID: product.ID, Quantity: -1})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("unexpected error for negative quantity: %v", err)
	}
}

func TestSetItemQuantityCapacityExceeded(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()

	eventYearID := uuid.New()
	product := seedProduct(t, conn, eventYearID, intPtr(4), nil)

	if _, err := svc.SetItemQuantity(ctx, SetItemInput{OrganizationID: uuid.New(), EventYearID: eventYearID, ProductID: product.ID, Quantity: 4}); err != nil {
		t.Fatalf("first org: %v", err)
	}

	_, err := svc.SetItemQuantity(ctx, SetItemInput{OrganizationID: uuid.New(), EventYearID: eventYearID, ProductID: product.ID, Quantity: 1})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeCapacityExceeded {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := reservedCount(t, conn, product.ID); got != 4 {
		t.Fatalf("failed add must not change ledger, got %d", got)
	}
}

func TestSetItemQuantityQuotaExceeded(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()

	orgID := uuid.New()
	eventYearID := uuid.New()
	product := seedProduct(t, conn, eventYearID, nil, intPtr(3))

	seedOrderWithItem(t, conn, orgID, eventYearID, product.ID, 2, enums.OrderStatusConfirmed)

	_, err := svc.SetItemQuantity(ctx, SetItemInput{OrganizationID: orgID, EventYearID: eventYearID, ProductID: product.ID, Quantity: 2})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeQuotaExceeded {
		t.Fatalf("unexpected error: %v", err)
	}

	// A cancelled order no longer counts against the cap.
	seedOrderWithItem(t, conn, orgID, eventYearID, product.ID, 5, enums.OrderStatusCancelled)
	if _, err := svc.SetItemQuantity(ctx, SetItemInput{OrganizationID: orgID, EventYearID: eventYearID, ProductID: product.ID, Quantity: 1}); err != nil {
		t.Fatalf("set within quota: %v", err)
	}
}

func TestSetItemQuantityQuotaCountsLiveCartHoldings(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()

	orgID := uuid.New()
	eventYearID := uuid.New()
	product := seedProduct(t, conn, eventYearID, nil, intPtr(3))

	// The same organization already holds two units in another live session.
	other := &models.CartSession{
		ID:             uuid.New(),
		OrganizationID: orgID,
		EventYearID:    uuid.New(),
		ExpiresAt:      time.Now().Add(30 * time.Minute),
	}
	if err := conn.Create(other).Error; err != nil {
		t.Fatalf("seed session: %v", err)
	}
	line := &models.CartItem{
		ID:        uuid.New(),
		CartID:    other.ID,
		ProductID: product.ID,
		Quantity:  2,
	}
	if err := conn.Create(line).Error; err != nil {
		t.Fatalf("seed cart line: %v", err)
	}

	_, err := svc.SetItemQuantity(ctx, SetItemInput{OrganizationID: orgID, EventYearID: eventYearID, ProductID: product.ID, Quantity: 2})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeQuotaExceeded {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := svc.SetItemQuantity(ctx, SetItemInput{OrganizationID: orgID, EventYearID: eventYearID, ProductID: product.ID, Quantity: 1}); err != nil {
		t.Fatalf("set within quota: %v", err)
	}
}

func TestRemoveItemReleasesUnits(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()

	orgID := uuid.New()
	eventYearID := uuid.New()
	product := seedProduct(t, conn, eventYearID, intPtr(10), nil)

	if _, err := svc.SetItemQuantity(ctx, SetItemInput{OrganizationID: orgID, EventYearID: eventYearID, ProductID: product.ID, Quantity: 6}); err != nil {
		t.Fatalf("set item: %v", err)
	}

	snap, err := svc.RemoveItem(ctx, orgID, eventYearID, product.ID)
	if err != nil {
		t.Fatalf("remove item: %v", err)
	}
	if len(snap.Items) != 0 {
		t.Fatalf("expected empty cart, got %+v", snap.Items)
	}
	if got := reservedCount(t, conn, product.ID); got != 0 {
		t.Fatalf("expected ledger hold released, got %d", got)
	}
}

func TestClearCartReleasesEveryLine(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()

	orgID := uuid.New()
	eventYearID := uuid.New()
	first := seedProduct(t, conn, eventYearID, intPtr(10), nil)
	second := seedProduct(t, conn, eventYearID, intPtr(10), nil)

	for _, tc := range []struct {
		productID uuid.UUID
		qty       int
	}{{first.ID, 2}, {second.ID, 5}} {
		if _, err := svc.SetItemQuantity(ctx, SetItemInput{OrganizationID: orgID, EventYearID: eventYearID, ProductID: tc.productID, Quantity: tc.qty}); err != nil {
			t.Fatalf("set item: %v", err)
		}
	}

	if err := svc.ClearCart(ctx, orgID, eventYearID); err != nil {
		t.Fatalf("clear cart: %v", err)
	}
	if got := reservedCount(t, conn, first.ID); got != 0 {
		t.Fatalf("expected first product released, got %d", got)
	}
	if got := reservedCount(t, conn, second.ID); got != 0 {
		t.Fatalf("expected second product released, got %d", got)
	}

	snap, err := svc.GetCart(ctx, orgID, eventYearID)
	if err != nil {
		t.Fatalf("get cart: %v", err)
	}
	if snap.CartID != uuid.Nil || len(snap.Items) != 0 {
		t.Fatalf("expected empty snapshot after clear, got %+v", snap)
	}
}

func TestExpiredCartReadsAsAbsent(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()

	orgID := uuid.New()
	eventYearID := uuid.New()
	session := &models.CartSession{
		ID:             uuid.New(),
		OrganizationID: orgID,
		EventYearID:    eventYearID,
		ExpiresAt:      time.Now().Add(-time.Minute),
	}
	if err := conn.Create(session).Error; err != nil {
		t.Fatalf("seed expired cart: %v", err)
	}

	snap, err := svc.GetCart(ctx, orgID, eventYearID)
	if err != nil {
		t.Fatalf("get cart: %v", err)
	}
	if snap.CartID != uuid.Nil {
		t.Fatalf("expected expired cart to read as absent, got %+v", snap)
	}
}

func TestDeleteCartReportsRowsClaimed(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	session := &models.CartSession{
		ID:             uuid.New(),
		OrganizationID: uuid.New(),
		EventYearID:    uuid.New(),
		ExpiresAt:      time.Now().Add(time.Hour),
	}
	if err := conn.Create(session).Error; err != nil {
		t.Fatalf("seed session: %v", err)
	}

	deleted, err := repo.DeleteCart(ctx, session.ID)
	if err != nil {
		t.Fatalf("delete cart: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("expected 1 row claimed, got %d", deleted)
	}

	// A second writer racing for the same cart sees zero rows and backs off.
	deleted, err = repo.DeleteCart(ctx, session.ID)
	if err != nil {
		t.Fatalf("delete cart again: %v", err)
	}
	if deleted != 0 {
		t.Fatalf("expected 0 rows on already-claimed cart, got %d", deleted)
	}
}

func TestSetItemQuantityRejectsWrongEventYear(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc := newTestService(t, conn)

	product := seedProduct(t, conn, uuid.New(), nil, nil)

	_, err := svc.SetItemQuantity(context.Background(), SetItemInput{
		OrganizationID: uuid.New(),
		EventYearID:    uuid.New(),
		ProductID:      product.ID,
		Quantity:       1,
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("unexpected error: %v", err)
	}
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:cart_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := conn.AutoMigrate(
		&models.Product{},
		&models.CartSession{},
		&models.CartItem{},
		&models.Order{},
		&models.OrderItem{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return conn
}

func newTestService(t *testing.T, conn *gorm.DB) Service {
	t.Helper()
	svc, err := NewService(
		NewRepository(conn),
		inventory.NewRepository(conn),
		db.NewWithConn(conn),
		config.CartConfig{SessionTTL: 45 * time.Minute},
		nil,
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func seedProduct(t *testing.T, conn *gorm.DB, eventYearID uuid.UUID, totalInventory, maxPerOrg *int) *models.Product {
	t.Helper()
	product := &models.Product{
		ID:                uuid.New(),
		EventYearID:       eventYearID,
		Name:              "Tent Rental",
		Type:              enums.ProductTypeTentRental,
		PriceCents:        15000,
		TotalInventory:    totalInventory,
		MaxQuantityPerOrg: maxPerOrg,
		IsActive:          true,
	}
	if err := conn.Create(product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return product
}

func seedOrderWithItem(t *testing.T, conn *gorm.DB, orgID, eventYearID, productID uuid.UUID, qty int, status enums.OrderStatus) {
	t.Helper()
	order := &models.Order{
		ID:             uuid.New(),
		OrderNumber:    time.Now().UnixNano(),
		OrganizationID: orgID,
		EventYearID:    eventYearID,
		Status:         status,
		TotalCents:     qty * 15000,
	}
	if err := conn.Create(order).Error; err != nil {
		t.Fatalf("seed order: %v", err)
	}
	item := &models.OrderItem{
		ID:             uuid.New(),
		OrderID:        order.ID,
		ProductID:      productID,
		Quantity:       qty,
		UnitPriceCents: 15000,
	}
	if err := conn.Create(item).Error; err != nil {
		t.Fatalf("seed order item: %v", err)
	}
}

func reservedCount(t *testing.T, conn *gorm.DB, productID uuid.UUID) int {
	t.Helper()
	var product models.Product
	if err := conn.First(&product, "id = ?", productID).Error; err != nil {
		t.Fatalf("load product: %v", err)
	}
	return product.ReservedCount
}

func intPtr(v int) *int { return &v }
