package enums

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderStatusDeliveryChain(t *testing.T) {
	chain := []OrderStatus{
		OrderStatusConfirmed,
		OrderStatusAssignedToDelivery,
		OrderStatusDeliveryAccepted,
		OrderStatusOutForDelivery,
		OrderStatusDelivered,
	}
	for i := 0; i < len(chain)-1; i++ {
		assert.Truef(t, chain[i].CanTransitionTo(chain[i+1]), "%s -> %s", chain[i], chain[i+1])
	}
}

func TestOrderStatusRejectsSkippedSteps(t *testing.T) {
	assert.False(t, OrderStatusAssignedToDelivery.CanTransitionTo(OrderStatusOutForDelivery))
	assert.False(t, OrderStatusDeliveryAccepted.CanTransitionTo(OrderStatusDelivered))
	assert.False(t, OrderStatusConfirmed.CanTransitionTo(OrderStatusDelivered))
	assert.False(t, OrderStatusDelivered.CanTransitionTo(OrderStatusCancelled))
}

func TestOrderStatusTerminal(t *testing.T) {
	assert.True(t, OrderStatusDelivered.IsTerminal())
	assert.True(t, OrderStatusCancelled.IsTerminal())
	assert.False(t, OrderStatusPending.IsTerminal())
	assert.False(t, OrderStatus("bogus").IsTerminal())
}

func TestOrderStatusPredecessors(t *testing.T) {
	assert.Equal(t, []OrderStatus{OrderStatusDeliveryAccepted}, OrderStatusPredecessors(OrderStatusOutForDelivery))
	assert.Equal(t, []OrderStatus{OrderStatusOutForDelivery}, OrderStatusPredecessors(OrderStatusDelivered))
	assert.Equal(t,
		[]OrderStatus{OrderStatusPending, OrderStatusConfirmed},
		OrderStatusPredecessors(OrderStatusAssignedToDelivery),
	)
	assert.ElementsMatch(t,
		[]OrderStatus{OrderStatusPending, OrderStatusConfirmed, OrderStatusAssignedToDelivery, OrderStatusDeliveryRejected},
		OrderStatusPredecessors(OrderStatusCancelled),
	)
}

func TestEveryStatusHasTransitionEntry(t *testing.T) {
	for _, status := range OrderStatuses() {
		_, ok := orderTransitions[status]
		assert.Truef(t, ok, "missing transition entry for %s", status)
	}
}

func TestParseOrderStatus(t *testing.T) {
	status, err := ParseOrderStatus("delivery_rejected")
	require.NoError(t, err)
	assert.Equal(t, OrderStatusDeliveryRejected, status)

	_, err = ParseOrderStatus("shipped")
	require.Error(t, err)
}

func TestUserRoleSelfRegistrable(t *testing.T) {
	assert.True(t, UserRolePatient.SelfRegistrable())
	assert.True(t, UserRoleDeliveryPartner.SelfRegistrable())
	assert.False(t, UserRoleAdmin.SelfRegistrable())
	assert.False(t, UserRole("nurse").SelfRegistrable())
}
