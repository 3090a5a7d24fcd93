package payment

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApproveAll(t *testing.T) {
	g := NewApproveAll()
	c, err := g.Charge(context.Background(), ChargeRequest{OrderID: "o-1", Amount: 89.97})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(c.TransactionID, "TX-"))
	assert.Len(t, c.TransactionID, len("TX-")+36)
	assert.Equal(t, 89.97, c.Amount)

	_, err = g.Charge(context.Background(), ChargeRequest{Amount: 0})
	assert.ErrorIs(t, err, ErrDeclined)
}

func TestApproveAll_RepeatedKeyReturnsFirstCharge(t *testing.T) {
	g := NewApproveAll()
	ctx := context.Background()

	first, err := g.Charge(ctx, ChargeRequest{OrderID: "o-1", Amount: 10, IdempotencyKey: "payment-o-1"})
	require.NoError(t, err)
	again, err := g.Charge(ctx, ChargeRequest{OrderID: "o-1", Amount: 10, IdempotencyKey: "payment-o-1"})
	require.NoError(t, err)
	assert.Equal(t, first, again)

	other, err := g.Charge(ctx, ChargeRequest{OrderID: "o-2", Amount: 10, IdempotencyKey: "payment-o-2"})
	require.NoError(t, err)
	assert.NotEqual(t, first.TransactionID, other.TransactionID)
}

func TestDeclineMethods(t *testing.T) {
	g := DeclineMethods{Methods: []string{"gift_card"}, Next: NewApproveAll()}

	_, err := g.Charge(context.Background(), ChargeRequest{Amount: 10, PaymentMethod: "GIFT_CARD"})
	require.ErrorIs(t, err, ErrDeclined)
	assert.Contains(t, err.Error(), "GIFT_CARD")

	_, err = g.Charge(context.Background(), ChargeRequest{Amount: 10, PaymentMethod: "credit_card"})
	assert.NoError(t, err)
}
