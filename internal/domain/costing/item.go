package costing

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lotledger/backend/internal/domain/shared"
)

// ItemType classifies how an item participates in stock and cost tracking
type ItemType string

const (
	// ItemTypeInventory is a stocked item whose cost is tracked per unit
	ItemTypeInventory ItemType = "inventory"
	// ItemTypeService is a non-stocked service line
	ItemTypeService ItemType = "service"
	// ItemTypeNonInventory is a purchasable item without stock tracking
	ItemTypeNonInventory ItemType = "non_inventory"
)

// String returns the string representation of ItemType
func (t ItemType) String() string {
	return string(t)
}

// IsValid returns true if the item type is valid
func (t ItemType) IsValid() bool {
	switch t {
	case ItemTypeInventory, ItemTypeService, ItemTypeNonInventory:
		return true
	}
	return false
}

// CostMethod is the accounting policy used to value inventory outflows
type CostMethod string

const (
	// CostMethodFIFO consumes lots in first-in order
	CostMethodFIFO CostMethod = "FIFO"
	// CostMethodLIFO consumes lots in last-in order
	CostMethodLIFO CostMethod = "LIFO"
	// CostMethodAverage values outflows at the running weighted average
	CostMethodAverage CostMethod = "AVG"
)

// String returns the string representation of CostMethod
func (m CostMethod) String() string {
	return string(m)
}

// IsValid returns true if the cost method is valid
func (m CostMethod) IsValid() bool {
	switch m {
	case CostMethodFIFO, CostMethodLIFO, CostMethodAverage:
		return true
	}
	return false
}

// Item is a catalog entry referenced by document lines. Only items typed
// ItemTypeInventory are eligible for cost computation.
type Item struct {
	shared.BaseEntity
	TenantID   uuid.UUID       `gorm:"type:uuid;not null;index:idx_items_tenant"`
	Name       string          `gorm:"type:varchar(255);not null"`
	SKU        string          `gorm:"type:varchar(100);index:idx_items_sku"`
	Type       ItemType        `gorm:"type:varchar(20);not null"`
	CostMethod CostMethod      `gorm:"type:varchar(10);not null;default:'AVG'"`
	CostRate   decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"` // Current unit cost, updated after each compute pass
	Active     bool            `gorm:"not null;default:true"`
}

// TableName returns the table name for GORM
func (Item) TableName() string {
	return "items"
}

// NewItem creates a new item
func NewItem(tenantID uuid.UUID, name string, itemType ItemType, costMethod CostMethod) (*Item, error) {
	if tenantID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_TENANT", "Tenant ID cannot be empty")
	}
	if name == "" {
		return nil, shared.NewDomainError("INVALID_NAME", "Item name cannot be empty")
	}
	if !itemType.IsValid() {
		return nil, shared.NewDomainError("INVALID_ITEM_TYPE", "Invalid item type")
	}
	if !costMethod.IsValid() {
		return nil, shared.NewDomainError("INVALID_COST_METHOD", "Invalid cost method")
	}

	return &Item{
		BaseEntity: shared.NewBaseEntity(),
		TenantID:   tenantID,
		Name:       name,
		Type:       itemType,
		CostMethod: costMethod,
		CostRate:   decimal.Zero,
		Active:     true,
	}, nil
}

// WithSKU sets the stock keeping unit code
func (i *Item) WithSKU(sku string) *Item {
	i.SKU = sku
	return i
}

// WithCostRate sets the current unit cost
func (i *Item) WithCostRate(rate decimal.Decimal) *Item {
	i.CostRate = rate
	return i
}

// IsCostTracked returns true if the item participates in cost computation
func (i *Item) IsCostTracked() bool {
	return i.Type == ItemTypeInventory
}
