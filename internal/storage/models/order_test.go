// internal/storage/models/order_test.go
package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderBlockchainTransferredKeepsCreateRecord(t *testing.T) {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	record := OrderBlockchain{
		BatchID:         "BATCH-001",
		ContractAddress: "batch-account",
		TransactionHash: "create-sig",
		CurrentOwner:    "manufacturer",
		ConfirmedAt:     &created,
	}

	got := record.Transferred("BATCH-001", "batch-account", "transfer-sig", "distributor", created.Add(time.Hour))

	assert.Equal(t, "distributor", got.CurrentOwner)
	assert.Equal(t, "create-sig", got.TransactionHash)
	assert.Equal(t, "batch-account", got.ContractAddress)
	require.NotNil(t, got.ConfirmedAt)
	assert.True(t, created.Equal(*got.ConfirmedAt))
	assert.Equal(t, "manufacturer", record.CurrentOwner)
}

func TestOrderBlockchainTransferredFillsEmptyRecord(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	got := OrderBlockchain{}.Transferred("BATCH-001", "batch-account", "transfer-sig", "distributor", at)

	assert.True(t, got.Recorded())
	assert.Equal(t, "BATCH-001", got.BatchID)
	assert.Equal(t, "batch-account", got.ContractAddress)
	assert.Equal(t, "transfer-sig", got.TransactionHash)
	assert.Equal(t, "distributor", got.CurrentOwner)
}
