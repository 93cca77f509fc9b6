package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/lotledger/backend/internal/domain/costing"
	"github.com/lotledger/backend/internal/domain/shared"
)

// ItemSQLite is a SQLite-compatible version of the items table for testing
type ItemSQLite struct {
	ID         string `gorm:"primaryKey"`
	TenantID   string `gorm:"index;not null"`
	Name       string `gorm:"not null"`
	SKU        string
	Type       string `gorm:"not null"`
	CostMethod string `gorm:"not null"`
	CostRate   string `gorm:"not null;default:0"`
	Active     bool   `gorm:"not null;default:true"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (ItemSQLite) TableName() string {
	return "items"
}

func setupItemTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	// Auto-migrate the SQLite-compatible model
	err = db.AutoMigrate(&ItemSQLite{})
	require.NoError(t, err)

	return db
}

func TestGormItemRepository_SaveAndFindByID(t *testing.T) {
	db := setupItemTestDB(t)
	repo := NewGormItemRepository(db)
	ctx := context.Background()

	tenantID := uuid.New()

	t.Run("saves and finds an item", func(t *testing.T) {
		item, err := costing.NewItem(tenantID, "Steel Rod", costing.ItemTypeInventory, costing.CostMethodFIFO)
		require.NoError(t, err)
		item.WithSKU("STL-001").WithCostRate(decimal.NewFromFloat(12.5))

		err = repo.Save(ctx, item)
		require.NoError(t, err)

		found, err := repo.FindByID(ctx, tenantID, item.ID)
		require.NoError(t, err)
		assert.Equal(t, item.ID, found.ID)
		assert.Equal(t, tenantID, found.TenantID)
		assert.Equal(t, "Steel Rod", found.Name)
		assert.Equal(t, "STL-001", found.SKU)
		assert.Equal(t, costing.ItemTypeInventory, found.Type)
		assert.Equal(t, costing.CostMethodFIFO, found.CostMethod)
		assert.True(t, decimal.NewFromFloat(12.5).Equal(found.CostRate))
	})

	t.Run("returns not found for unknown item", func(t *testing.T) {
		_, err := repo.FindByID(ctx, tenantID, uuid.New())
		assert.Equal(t, shared.ErrNotFound, err)
	})

	t.Run("does not find items of another tenant", func(t *testing.T) {
		item, err := costing.NewItem(tenantID, "Copper Wire", costing.ItemTypeInventory, costing.CostMethodAverage)
		require.NoError(t, err)
		require.NoError(t, repo.Save(ctx, item))

		_, err = repo.FindByID(ctx, uuid.New(), item.ID)
		assert.Equal(t, shared.ErrNotFound, err)
	})
}

func TestGormItemRepository_UpdateCostRate(t *testing.T) {
	db := setupItemTestDB(t)
	repo := NewGormItemRepository(db)
	ctx := context.Background()

	tenantID := uuid.New()

	t.Run("updates the cost rate", func(t *testing.T) {
		item, err := costing.NewItem(tenantID, "Bolt", costing.ItemTypeInventory, costing.CostMethodAverage)
		require.NoError(t, err)
		require.NoError(t, repo.Save(ctx, item))

		err = repo.UpdateCostRate(ctx, tenantID, item.ID, decimal.NewFromFloat(3.75))
		require.NoError(t, err)

		found, err := repo.FindByID(ctx, tenantID, item.ID)
		require.NoError(t, err)
		assert.True(t, decimal.NewFromFloat(3.75).Equal(found.CostRate))
	})

	t.Run("returns not found when the item does not exist", func(t *testing.T) {
		err := repo.UpdateCostRate(ctx, tenantID, uuid.New(), decimal.NewFromInt(1))
		assert.Equal(t, shared.ErrNotFound, err)
	})
}
