package persistence

import (
	"strings"
)

// ValidateSortOrder normalizes a sort direction to ASC or DESC.
// Anything unrecognized becomes DESC.
func ValidateSortOrder(orderDir string) string {
	normalized := strings.ToUpper(strings.TrimSpace(orderDir))
	if normalized == "ASC" {
		return "ASC"
	}
	return "DESC"
}

// ValidateSortField checks a sort field against a column whitelist before
// it is spliced into an ORDER BY clause. Empty or unknown fields resolve
// to defaultField.
func ValidateSortField(sortField string, allowedFields map[string]bool, defaultField string) string {
	trimmed := strings.TrimSpace(sortField)
	if trimmed == "" {
		return defaultField
	}
	if allowedFields[trimmed] {
		return trimmed
	}
	return defaultField
}

// ItemSortFields contains allowed sort fields for items
var ItemSortFields = map[string]bool{
	"id":          true,
	"created_at":  true,
	"updated_at":  true,
	"name":        true,
	"sku":         true,
	"type":        true,
	"cost_method": true,
	"cost_rate":   true,
	"active":      true,
}

// InventoryTransactionSortFields contains allowed sort fields for
// inventory transactions
var InventoryTransactionSortFields = map[string]bool{
	"id":               true,
	"created_at":       true,
	"updated_at":       true,
	"item_id":          true,
	"date":             true,
	"lot_number":       true,
	"direction":        true,
	"transaction_type": true,
	"quantity":         true,
	"rate":             true,
}

// CostLotSortFields contains allowed sort fields for cost lots
var CostLotSortFields = map[string]bool{
	"id":                 true,
	"created_at":         true,
	"updated_at":         true,
	"item_id":            true,
	"date":               true,
	"lot_number":         true,
	"direction":          true,
	"quantity":           true,
	"remaining_quantity": true,
	"rate":               true,
	"cost":               true,
}

// ComputeJobSortFields contains allowed sort fields for compute jobs
var ComputeJobSortFields = map[string]bool{
	"id":            true,
	"created_at":    true,
	"updated_at":    true,
	"item_id":       true,
	"starting_date": true,
	"status":        true,
	"run_at":        true,
	"attempts":      true,
}
