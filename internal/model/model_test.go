package model

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBeforeCreateKeepsReservedID(t *testing.T) {
	reserved := uuid.New()
	tx := Transaction{BaseModel: BaseModel{ID: reserved}}
	require.NoError(t, tx.BeforeCreate(nil))
	assert.Equal(t, reserved, tx.ID)

	var fresh Category
	require.NoError(t, fresh.BeforeCreate(nil))
	assert.NotEqual(t, uuid.Nil, fresh.ID)
}

func TestAttachmentsScanAndValue(t *testing.T) {
	in := Attachments{{Name: "receipt.jpg", URL: "https://files/receipt.jpg", Size: 2048, UploadedAt: time.Unix(0, 0).UTC()}}
	v, err := in.Value()
	require.NoError(t, err)

	var out Attachments
	require.NoError(t, out.Scan([]byte(v.(string))))
	assert.Equal(t, in, out)

	var empty Attachments
	v, err = empty.Value()
	require.NoError(t, err)
	assert.Equal(t, "[]", v)
	assert.NoError(t, empty.Scan(nil))
	assert.Error(t, empty.Scan(42))
}

func TestWarehouseItemsScan(t *testing.T) {
	pid := uuid.New()
	var items WarehouseItems
	require.NoError(t, items.Scan(`[{"product_id":"`+pid.String()+`","quantity":3}]`))
	require.Len(t, items, 1)
	assert.Equal(t, pid, items[0].ProductID)
	assert.Equal(t, 3, items[0].Quantity)
}

func TestUserPassword(t *testing.T) {
	var u User
	require.NoError(t, u.SetPassword("secret1"))
	assert.NotEqual(t, "secret1", u.Password)
	assert.True(t, u.CheckPassword("secret1"))
	assert.False(t, u.CheckPassword("secret2"))
}

func TestTransactionTypeValid(t *testing.T) {
	assert.True(t, TxIncome.Valid())
	assert.True(t, TxExpense.Valid())
	assert.False(t, TransactionType("IN").Valid())
}
