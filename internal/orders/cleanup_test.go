package orders

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sportsfesthq/sportsfest-backend/internal/cart"
	"github.com/sportsfesthq/sportsfest-backend/internal/inventory"
	"github.com/sportsfesthq/sportsfest-backend/pkg/config"
	"github.com/sportsfesthq/sportsfest-backend/pkg/db"
	"github.com/sportsfesthq/sportsfest-backend/pkg/db/models"
	"github.com/sportsfesthq/sportsfest-backend/pkg/enums"
)

func newTestCleanup(t *testing.T, conn *gorm.DB, cfg config.CleanupConfig) *CleanupService {
	t.Helper()
	svc, err := NewCleanupService(
		NewRepository(conn),
		cart.NewRepository(conn),
		inventory.NewRepository(conn),
		db.NewWithConn(conn),
		cfg,
		nil,
	)
	if err != nil {
		t.Fatalf("new cleanup service: %v", err)
	}
	return svc
}

func seedAbandonedOrder(t *testing.T, conn *gorm.DB, eventYearID, productID uuid.UUID, qty int, age time.Duration) *models.Order {
	t.Helper()
	order := &models.Order{
		ID:               uuid.New(),
		OrderNumber:      time.Now().UnixNano(),
		OrganizationID:   uuid.New(),
		EventYearID:      eventYearID,
		Status:           enums.OrderStatusPending,
		TotalCents:       qty * 15000,
		BalanceOwedCents: qty * 15000,
		Items: []models.OrderItem{{
			ID:             uuid.New(),
			ProductID:      productID,
			Quantity:       qty,
			UnitPriceCents: 15000,
		}},
	}
	if err := conn.Create(order).Error; err != nil {
		t.Fatalf("seed order: %v", err)
	}
	createdAt := time.Now().UTC().Add(-age)
	if err := conn.Model(&models.Order{}).Where("id = ?", order.ID).Update("created_at", createdAt).Error; err != nil {
		t.Fatalf("backdate order: %v", err)
	}
	return order
}

func TestSweepDryRunLeavesOrdersAlone(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc := newTestCleanup(t, conn, config.CleanupConfig{AbandonedOrderMaxAge: 24 * time.Hour, ReleaseOrderInventory: true})
	ctx := context.Background()

	eventYearID := uuid.New()
	product := seedProduct(t, conn, eventYearID, "Tent Rental", 15000, intPtr(10), nil)
	seedAbandonedOrder(t, conn, eventYearID, product.ID, 2, 48*time.Hour)

	result, err := svc.SweepAbandonedOrders(ctx, SweepInput{})
	if err != nil {
		t.Fatalf("dry run: %v", err)
	}
	if !result.DryRun || result.FoundOrders != 1 || result.DeletedOrders != 0 {
		t.Fatalf("unexpected dry run result: %+v", result)
	}
	if result.OlderThanHours != 24 {
		t.Fatalf("expected configured cutoff of 24h, got %d", result.OlderThanHours)
	}

	var count int64
	if err := conn.Model(&models.Order{}).Count(&count).Error; err != nil {
		t.Fatalf("count orders: %v", err)
	}
	if count != 1 {
		t.Fatalf("dry run must not delete, got %d orders", count)
	}
}

func TestSweepExecuteDeletesAndReleases(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc := newTestCleanup(t, conn, config.CleanupConfig{AbandonedOrderMaxAge: 24 * time.Hour, ReleaseOrderInventory: true})
	ctx := context.Background()

	eventYearID := uuid.New()
	product := seedProduct(t, conn, eventYearID, "Tent Rental", 15000, intPtr(10), nil)
	if err := inventory.NewRepository(conn).Reserve(ctx, product.ID, 3); err != nil {
		t.Fatalf("seed hold: %v", err)
	}
	seedAbandonedOrder(t, conn, eventYearID, product.ID, 3, 48*time.Hour)
	fresh := seedAbandonedOrder(t, conn, eventYearID, product.ID, 1, time.Hour)

	result, err := svc.SweepAbandonedOrders(ctx, SweepInput{Execute: true})
	if err != nil {
		t.Fatalf("execute sweep: %v", err)
	}
	if result.FoundOrders != 1 || result.DeletedOrders != 1 || result.ReleasedUnits != 3 {
		t.Fatalf("unexpected sweep result: %+v", result)
	}
	if got := reservedCount(t, conn, product.ID); got != 0 {
		t.Fatalf("expected hold released, got %d", got)
	}

	// The young order survives.
	var survivor models.Order
	if err := conn.First(&survivor, "id = ?", fresh.ID).Error; err != nil {
		t.Fatalf("expected young order to survive: %v", err)
	}

	// A second sweep over the same window finds nothing.
	result, err = svc.SweepAbandonedOrders(ctx, SweepInput{Execute: true})
	if err != nil {
		t.Fatalf("repeat sweep: %v", err)
	}
	if result.FoundOrders != 0 || result.DeletedOrders != 0 {
		t.Fatalf("expected idempotent repeat sweep, got %+v", result)
	}
}

func TestSweepContinuesPastFailingOrder(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc := newTestCleanup(t, conn, config.CleanupConfig{AbandonedOrderMaxAge: 24 * time.Hour, ReleaseOrderInventory: true})
	ctx := context.Background()

	eventYearID := uuid.New()
	product := seedProduct(t, conn, eventYearID, "Tent Rental", 15000, intPtr(10), nil)
	if err := inventory.NewRepository(conn).Reserve(ctx, product.ID, 5); err != nil {
		t.Fatalf("seed hold: %v", err)
	}
	poisoned := seedAbandonedOrder(t, conn, eventYearID, product.ID, 3, 48*time.Hour)
	healthy := seedAbandonedOrder(t, conn, eventYearID, product.ID, 2, 48*time.Hour)

	// Make one order's delete blow up so the sweep has a failure to step over.
	trigger := fmt.Sprintf(`
		CREATE TRIGGER block_order_delete BEFORE DELETE ON orders
		WHEN OLD.id = '%s' BEGIN SELECT RAISE(ABORT, 'delete blocked'); END
	`, poisoned.ID)
	if err := conn.Exec(trigger).Error; err != nil {
		t.Fatalf("create trigger: %v", err)
	}

	result, err := svc.SweepAbandonedOrders(ctx, SweepInput{Execute: true})
	if err == nil {
		t.Fatal("expected aggregate error from failed order")
	}
	if result == nil {
		t.Fatal("partial sweep must still report its counts")
	}
	if result.FoundOrders != 2 || result.DeletedOrders != 1 || result.ReleasedUnits != 2 {
		t.Fatalf("unexpected sweep result: %+v", result)
	}

	// The failed order rolled back whole: row intact, hold intact.
	var stuck models.Order
	if err := conn.First(&stuck, "id = ?", poisoned.ID).Error; err != nil {
		t.Fatalf("failed order must survive: %v", err)
	}
	if err := conn.First(&models.Order{}, "id = ?", healthy.ID).Error; !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("healthy order must be reclaimed, got %v", err)
	}
	if got := reservedCount(t, conn, product.ID); got != 3 {
		t.Fatalf("expected only the healthy order's units released, got %d", got)
	}
}

func TestSweepSkipsOrdersWithPayments(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc := newTestCleanup(t, conn, config.CleanupConfig{AbandonedOrderMaxAge: 24 * time.Hour, ReleaseOrderInventory: true})
	ctx := context.Background()

	eventYearID := uuid.New()
	product := seedProduct(t, conn, eventYearID, "Tent Rental", 15000, nil, nil)
	order := seedAbandonedOrder(t, conn, eventYearID, product.ID, 2, 48*time.Hour)

	// Any recorded payment moves balance below total and shields the order.
	if err := conn.Model(&models.Order{}).Where("id = ?", order.ID).Update("balance_owed_cents", 20000).Error; err != nil {
		t.Fatalf("record payment: %v", err)
	}

	result, err := svc.SweepAbandonedOrders(ctx, SweepInput{Execute: true})
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if result.FoundOrders != 0 {
		t.Fatalf("paid order must not be swept: %+v", result)
	}
}

func TestSweepHonorsReleaseFlagOff(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc := newTestCleanup(t, conn, config.CleanupConfig{AbandonedOrderMaxAge: 24 * time.Hour, ReleaseOrderInventory: false})
	ctx := context.Background()

	eventYearID := uuid.New()
	product := seedProduct(t, conn, eventYearID, "Tent Rental", 15000, intPtr(10), nil)
	if err := inventory.NewRepository(conn).Reserve(ctx, product.ID, 2); err != nil {
		t.Fatalf("seed hold: %v", err)
	}
	seedAbandonedOrder(t, conn, eventYearID, product.ID, 2, 48*time.Hour)

	result, err := svc.SweepAbandonedOrders(ctx, SweepInput{Execute: true})
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if result.DeletedOrders != 1 || result.ReleasedUnits != 0 {
		t.Fatalf("unexpected result with release disabled: %+v", result)
	}
	if got := reservedCount(t, conn, product.ID); got != 2 {
		t.Fatalf("expected hold kept with release disabled, got %d", got)
	}
}

func TestSweepQuickCountsOnly(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc := newTestCleanup(t, conn, config.CleanupConfig{AbandonedOrderMaxAge: 24 * time.Hour, ReleaseOrderInventory: true})
	ctx := context.Background()

	eventYearID := uuid.New()
	product := seedProduct(t, conn, eventYearID, "Tent Rental", 15000, nil, nil)
	seedAbandonedOrder(t, conn, eventYearID, product.ID, 1, 48*time.Hour)
	seedAbandonedOrder(t, conn, eventYearID, product.ID, 1, 72*time.Hour)

	result, err := svc.SweepAbandonedOrders(ctx, SweepInput{Quick: true, OlderThanHours: 36})
	if err != nil {
		t.Fatalf("quick sweep: %v", err)
	}
	if result.FoundOrders != 1 || !result.DryRun || result.OlderThanHours != 36 {
		t.Fatalf("unexpected quick result: %+v", result)
	}
}

func TestSweepScopedToEventYear(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc := newTestCleanup(t, conn, config.CleanupConfig{AbandonedOrderMaxAge: 24 * time.Hour, ReleaseOrderInventory: true})
	ctx := context.Background()

	scopedYear := uuid.New()
	otherYear := uuid.New()
	product := seedProduct(t, conn, scopedYear, "Tent Rental", 15000, nil, nil)
	otherProduct := seedProduct(t, conn, otherYear, "Tent Rental", 15000, nil, nil)
	seedAbandonedOrder(t, conn, scopedYear, product.ID, 1, 48*time.Hour)
	untouched := seedAbandonedOrder(t, conn, otherYear, otherProduct.ID, 1, 48*time.Hour)

	result, err := svc.SweepAbandonedOrders(ctx, SweepInput{Execute: true, EventYearID: &scopedYear})
	if err != nil {
		t.Fatalf("scoped sweep: %v", err)
	}
	if result.DeletedOrders != 1 {
		t.Fatalf("unexpected scoped result: %+v", result)
	}
	var survivor models.Order
	if err := conn.First(&survivor, "id = ?", untouched.ID).Error; err != nil {
		t.Fatalf("expected other-year order to survive: %v", err)
	}
}

func TestCartHealthSnapshot(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc := newTestCleanup(t, conn, config.CleanupConfig{AbandonedOrderMaxAge: 24 * time.Hour})
	ctx := context.Background()

	for _, expiry := range []time.Time{
		time.Now().Add(30 * time.Minute),
		time.Now().Add(10 * time.Minute),
		time.Now().Add(-5 * time.Minute),
	} {
		session := &models.CartSession{
			ID:             uuid.New(),
			OrganizationID: uuid.New(),
			EventYearID:    uuid.New(),
			ExpiresAt:      expiry,
		}
		if err := conn.Create(session).Error; err != nil {
			t.Fatalf("seed cart: %v", err)
		}
	}

	health, err := svc.CartHealthSnapshot(ctx)
	if err != nil {
		t.Fatalf("cart health: %v", err)
	}
	if health.ActiveCarts != 2 || health.ExpiredCarts != 1 {
		t.Fatalf("unexpected health: %+v", health)
	}
}
