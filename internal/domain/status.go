package domain

import "strings"

// Gateway payment statuses the mapper knows about.
const (
	GatewayStatusApproved  = "approved"
	GatewayStatusRejected  = "rejected"
	GatewayStatusCancelled = "cancelled"
	GatewayStatusInProcess = "in_process"
	GatewayStatusPending   = "pending"
)

// MapGatewayStatus translates a canonical gateway payment status into the
// order status it implies. Unknown values map to pending so that new gateway
// states never break reconciliation.
func MapGatewayStatus(gatewayStatus string) (OrderStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(gatewayStatus)) {
	case GatewayStatusApproved:
		return StatusConfirmed, true
	case GatewayStatusRejected, GatewayStatusCancelled:
		return StatusCancelled, true
	default:
		return StatusPending, false
	}
}
