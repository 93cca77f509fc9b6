package costing

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirection_IsValid(t *testing.T) {
	tests := []struct {
		name      string
		direction Direction
		expected  bool
	}{
		{"in", DirectionIn, true},
		{"out", DirectionOut, true},
		{"empty", Direction(""), false},
		{"lowercase", Direction("in"), false},
		{"unknown", Direction("SIDEWAYS"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.direction.IsValid())
		})
	}
}

func TestTransactionType_IsValid(t *testing.T) {
	tests := []struct {
		name     string
		txType   TransactionType
		expected bool
	}{
		{"bill", TransactionTypeBill, true},
		{"invoice", TransactionTypeInvoice, true},
		{"receipt", TransactionTypeReceipt, true},
		{"credit note", TransactionTypeCreditNote, true},
		{"vendor credit", TransactionTypeVendorCredit, true},
		{"adjustment", TransactionTypeAdjustment, true},
		{"opening balance", TransactionTypeOpeningBalance, true},
		{"empty", TransactionType(""), false},
		{"unknown", TransactionType("PURCHASE_ORDER"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.txType.IsValid())
		})
	}
}

func TestNewInventoryTransaction_Success(t *testing.T) {
	tenantID := uuid.New()
	itemID := uuid.New()
	transactionID := uuid.New()
	entryID := uuid.New()
	quantity := decimal.NewFromInt(12)
	rate := decimal.NewFromFloat(4.25)
	date := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	txn, err := NewInventoryTransaction(
		tenantID, itemID, DirectionIn, quantity, rate,
		TransactionTypeBill, transactionID, entryID, date, 5,
	)

	require.NoError(t, err)
	require.NotNil(t, txn)
	assert.NotEqual(t, uuid.Nil, txn.ID)
	assert.Equal(t, tenantID, txn.TenantID)
	assert.Equal(t, itemID, txn.ItemID)
	assert.Equal(t, DirectionIn, txn.Direction)
	assert.True(t, quantity.Equal(txn.Quantity))
	assert.True(t, rate.Equal(txn.Rate))
	assert.Equal(t, TransactionTypeBill, txn.TransactionType)
	assert.Equal(t, transactionID, txn.TransactionID)
	assert.Equal(t, entryID, txn.EntryID)
	assert.Equal(t, date, txn.Date)
	assert.Equal(t, int64(5), txn.LotNumber)
	assert.True(t, txn.IsInbound())
	assert.False(t, txn.IsOutbound())
}

func TestNewInventoryTransaction_Validation(t *testing.T) {
	tenantID := uuid.New()
	itemID := uuid.New()
	transactionID := uuid.New()
	entryID := uuid.New()
	quantity := decimal.NewFromInt(3)
	rate := decimal.NewFromFloat(1.5)
	date := time.Now()

	tests := []struct {
		name          string
		tenantID      uuid.UUID
		itemID        uuid.UUID
		direction     Direction
		quantity      decimal.Decimal
		rate          decimal.Decimal
		txType        TransactionType
		transactionID uuid.UUID
		entryID       uuid.UUID
		date          time.Time
		lotNumber     int64
		expectedError string
	}{
		{
			name:          "empty tenant",
			itemID:        itemID,
			direction:     DirectionIn,
			quantity:      quantity,
			rate:          rate,
			txType:        TransactionTypeBill,
			transactionID: transactionID,
			entryID:       entryID,
			date:          date,
			expectedError: "Tenant ID cannot be empty",
		},
		{
			name:          "empty item",
			tenantID:      tenantID,
			direction:     DirectionIn,
			quantity:      quantity,
			rate:          rate,
			txType:        TransactionTypeBill,
			transactionID: transactionID,
			entryID:       entryID,
			date:          date,
			expectedError: "Item ID cannot be empty",
		},
		{
			name:          "invalid direction",
			tenantID:      tenantID,
			itemID:        itemID,
			direction:     Direction("UP"),
			quantity:      quantity,
			rate:          rate,
			txType:        TransactionTypeBill,
			transactionID: transactionID,
			entryID:       entryID,
			date:          date,
			expectedError: "Direction must be IN or OUT",
		},
		{
			name:          "zero quantity",
			tenantID:      tenantID,
			itemID:        itemID,
			direction:     DirectionOut,
			quantity:      decimal.Zero,
			rate:          rate,
			txType:        TransactionTypeInvoice,
			transactionID: transactionID,
			entryID:       entryID,
			date:          date,
			expectedError: "Quantity must be positive",
		},
		{
			name:          "negative quantity",
			tenantID:      tenantID,
			itemID:        itemID,
			direction:     DirectionOut,
			quantity:      decimal.NewFromInt(-1),
			rate:          rate,
			txType:        TransactionTypeInvoice,
			transactionID: transactionID,
			entryID:       entryID,
			date:          date,
			expectedError: "Quantity must be positive",
		},
		{
			name:          "negative rate",
			tenantID:      tenantID,
			itemID:        itemID,
			direction:     DirectionIn,
			quantity:      quantity,
			rate:          decimal.NewFromFloat(-0.01),
			txType:        TransactionTypeBill,
			transactionID: transactionID,
			entryID:       entryID,
			date:          date,
			expectedError: "Rate cannot be negative",
		},
		{
			name:          "invalid transaction type",
			tenantID:      tenantID,
			itemID:        itemID,
			direction:     DirectionIn,
			quantity:      quantity,
			rate:          rate,
			txType:        TransactionType("QUOTE"),
			transactionID: transactionID,
			entryID:       entryID,
			date:          date,
			expectedError: "Invalid transaction type",
		},
		{
			name:          "empty transaction id",
			tenantID:      tenantID,
			itemID:        itemID,
			direction:     DirectionIn,
			quantity:      quantity,
			rate:          rate,
			txType:        TransactionTypeBill,
			entryID:       entryID,
			date:          date,
			expectedError: "Transaction ID cannot be empty",
		},
		{
			name:          "empty entry id",
			tenantID:      tenantID,
			itemID:        itemID,
			direction:     DirectionIn,
			quantity:      quantity,
			rate:          rate,
			txType:        TransactionTypeBill,
			transactionID: transactionID,
			date:          date,
			expectedError: "Entry ID cannot be empty",
		},
		{
			name:          "zero date",
			tenantID:      tenantID,
			itemID:        itemID,
			direction:     DirectionIn,
			quantity:      quantity,
			rate:          rate,
			txType:        TransactionTypeBill,
			transactionID: transactionID,
			entryID:       entryID,
			expectedError: "Transaction date cannot be empty",
		},
		{
			name:          "negative lot number",
			tenantID:      tenantID,
			itemID:        itemID,
			direction:     DirectionIn,
			quantity:      quantity,
			rate:          rate,
			txType:        TransactionTypeBill,
			transactionID: transactionID,
			entryID:       entryID,
			date:          date,
			lotNumber:     -2,
			expectedError: "Lot number cannot be negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			txn, err := NewInventoryTransaction(
				tt.tenantID, tt.itemID, tt.direction, tt.quantity, tt.rate,
				tt.txType, tt.transactionID, tt.entryID, tt.date, tt.lotNumber,
			)

			assert.Nil(t, txn)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.expectedError)
		})
	}
}

func TestInventoryTransaction_Amount(t *testing.T) {
	txn, err := NewInventoryTransaction(
		uuid.New(), uuid.New(), DirectionOut,
		decimal.NewFromInt(4), decimal.NewFromFloat(2.5),
		TransactionTypeInvoice, uuid.New(), uuid.New(), time.Now(), 0,
	)

	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(10).Equal(txn.Amount()))
}
