package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOrderStatus_CanTransitionTo(t *testing.T) {
	cases := []struct {
		from OrderStatus
		to   OrderStatus
		want bool
	}{
		{OrderStatusUnpaid, OrderStatusPaid, true},
		{OrderStatusPaid, OrderStatusPreparing, true},
		{OrderStatusPreparing, OrderStatusDelivering, true},
		{OrderStatusDelivering, OrderStatusDelivered, true},
		{OrderStatusDelivered, OrderStatusSuccessfully, true},
		{OrderStatusRefund, OrderStatusRefunded, true},
		{OrderStatusRefund, OrderStatusCancelled, true},

		//段階飛ばしは不可
		{OrderStatusUnpaid, OrderStatusDelivering, false},
		{OrderStatusPaid, OrderStatusDelivered, false},
		{OrderStatusPreparing, OrderStatusSuccessfully, false},

		//逆行も不可
		{OrderStatusDelivered, OrderStatusPaid, false},
		{OrderStatusPaid, OrderStatusUnpaid, false},

		//cancelledへは非終端からのみ
		{OrderStatusUnpaid, OrderStatusCancelled, true},
		{OrderStatusPaid, OrderStatusCancelled, true},
		{OrderStatusDelivering, OrderStatusCancelled, true},
		{OrderStatusSuccessfully, OrderStatusCancelled, false},
		{OrderStatusCancelled, OrderStatusCancelled, false},
		{OrderStatusRefunded, OrderStatusCancelled, false},

		//終端からはどこへも行けない
		{OrderStatusSuccessfully, OrderStatusRefund, false},
		{OrderStatusCancelled, OrderStatusPaid, false},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, tc.from.CanTransitionTo(tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestOrderStatus_Valid(t *testing.T) {
	assert.True(t, OrderStatusUnpaid.Valid())
	assert.True(t, OrderStatusRefunded.Valid())
	assert.False(t, OrderStatus("shipped").Valid())
	assert.False(t, OrderStatus("").Valid())
}

func TestOrderStatus_IsTerminal(t *testing.T) {
	assert.True(t, OrderStatusSuccessfully.IsTerminal())
	assert.True(t, OrderStatusCancelled.IsTerminal())
	assert.True(t, OrderStatusRefunded.IsTerminal())
	assert.False(t, OrderStatusDelivering.IsTerminal())
	assert.False(t, OrderStatusRefund.IsTerminal())
}

func TestShippingProvider_Valid(t *testing.T) {
	assert.True(t, ShippingProviderKerry.Valid())
	assert.True(t, ShippingProviderThailandPost.Valid())
	assert.False(t, ShippingProvider("ups").Valid())
}

func TestProduct_EffectivePrice(t *testing.T) {
	discount := int64(300)
	zero := int64(0)

	assert.Equal(t, int64(500), Product{Price: 500}.EffectivePrice())
	assert.Equal(t, int64(300), Product{Price: 500, Discount: &discount}.EffectivePrice())
	assert.Equal(t, int64(500), Product{Price: 500, Discount: &zero}.EffectivePrice())
}
