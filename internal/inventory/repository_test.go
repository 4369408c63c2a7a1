package inventory

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/sportsfesthq/sportsfest-backend/pkg/db/models"
	"github.com/sportsfesthq/sportsfest-backend/pkg/enums"
	pkgerrors "github.com/sportsfesthq/sportsfest-backend/pkg/errors"
)

func TestReserveWithinCapacity(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	product := seedProduct(t, db, intPtr(5))

	if err := repo.Reserve(ctx, product.ID, 3); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := repo.Reserve(ctx, product.ID, 2); err != nil {
		t.Fatalf("reserve to capacity: %v", err)
	}

	loaded := mustLoadProduct(t, db, product.ID)
	if loaded.ReservedCount != 5 {
		t.Fatalf("expected reserved 5, got %d", loaded.ReservedCount)
	}
}

func TestReserveBeyondCapacityFails(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	product := seedProduct(t, db, intPtr(4))

	if err := repo.Reserve(ctx, product.ID, 4); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	err := repo.Reserve(ctx, product.ID, 1)
	if err == nil {
		t.Fatal("expected capacity error")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeCapacityExceeded {
		t.Fatalf("unexpected error: %v", err)
	}

	loaded := mustLoadProduct(t, db, product.ID)
	if loaded.ReservedCount != 4 {
		t.Fatalf("failed reserve must not mutate ledger, got %d", loaded.ReservedCount)
	}
}

func TestReserveUnboundedProduct(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	product := seedProduct(t, db, nil)

	if err := repo.Reserve(ctx, product.ID, 500); err != nil {
		t.Fatalf("reserve unbounded: %v", err)
	}

	loaded := mustLoadProduct(t, db, product.ID)
	if loaded.ReservedCount != 500 {
		t.Fatalf("expected reserved 500, got %d", loaded.ReservedCount)
	}
}

func TestReserveUnknownProduct(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	repo := NewRepository(db)

	err := repo.Reserve(context.Background(), uuid.New(), 1)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestConcurrentReserveLastUnit(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	repo := NewRepository(db)
	ctx := context.Background()
	product := seedProduct(t, db, intPtr(1))

	errCh := make(chan error, 2)
	var start sync.WaitGroup
	start.Add(1)
	for i := 0; i < 2; i++ {
		go func() {
			start.Wait()
			errCh <- repo.Reserve(ctx, product.ID, 1)
		}()
	}
	start.Done()

	var successes, capacityHits int
	for i := 0; i < 2; i++ {
		err := <-errCh
		switch {
		case err == nil:
			successes++
		default:
			typed := pkgerrors.As(err)
			if typed == nil || typed.Code() != pkgerrors.CodeCapacityExceeded {
				t.Fatalf("unexpected error: %v", err)
			}
			capacityHits++
		}
	}
	if successes != 1 || capacityHits != 1 {
		t.Fatalf("expected one winner and one capacity rejection, got %d/%d", successes, capacityHits)
	}

	loaded := mustLoadProduct(t, db, product.ID)
	if loaded.ReservedCount != 1 {
		t.Fatalf("expected reserved 1 after the race, got %d", loaded.ReservedCount)
	}
}

func TestReleaseFloorsAtZero(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	product := seedProduct(t, db, intPtr(10))
	if err := repo.Reserve(ctx, product.ID, 3); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	if err := repo.Release(ctx, product.ID, 8); err != nil {
		t.Fatalf("release: %v", err)
	}

	loaded := mustLoadProduct(t, db, product.ID)
	if loaded.ReservedCount != 0 {
		t.Fatalf("expected reserved floored at 0, got %d", loaded.ReservedCount)
	}
}

func TestReserveReleaseRoundTrip(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	product := seedProduct(t, db, intPtr(6))

	if err := repo.Reserve(ctx, product.ID, 6); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := repo.Release(ctx, product.ID, 6); err != nil {
		t.Fatalf("release: %v", err)
	}
	if err := repo.Reserve(ctx, product.ID, 6); err != nil {
		t.Fatalf("re-reserve after release: %v", err)
	}
}

func TestGetAvailability(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	bounded := seedProduct(t, db, intPtr(10))
	if err := repo.Reserve(ctx, bounded.ID, 4); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	avail, err := repo.GetAvailability(ctx, bounded.ID)
	if err != nil {
		t.Fatalf("availability: %v", err)
	}
	if avail.Remaining == nil || *avail.Remaining != 6 {
		t.Fatalf("expected remaining 6, got %+v", avail.Remaining)
	}

	unbounded := seedProduct(t, db, nil)
	avail, err = repo.GetAvailability(ctx, unbounded.ID)
	if err != nil {
		t.Fatalf("availability: %v", err)
	}
	if avail.Remaining != nil {
		t.Fatalf("expected nil remaining for unbounded product, got %d", *avail.Remaining)
	}
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:inventory_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.Product{}, &models.OrderItem{}, &models.Order{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedProduct(t *testing.T, db *gorm.DB, totalInventory *int) *models.Product {
	t.Helper()
	product := &models.Product{
		ID:             uuid.New(),
		EventYearID:    uuid.New(),
		Name:           "Team Registration",
		Type:           enums.ProductTypeTeamRegistration,
		PriceCents:     42500,
		TotalInventory: totalInventory,
		IsActive:       true,
	}
	if err := db.Create(product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return product
}

func mustLoadProduct(t *testing.T, db *gorm.DB, id uuid.UUID) *models.Product {
	t.Helper()
	var product models.Product
	if err := db.First(&product, "id = ?", id).Error; err != nil {
		t.Fatalf("load product: %v", err)
	}
	return &product
}

func intPtr(v int) *int { return &v }
