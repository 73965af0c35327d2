package domain

import (
	"github.com/google/uuid"
)

// IdempotentOperation names a client-retryable wallet operation.
type IdempotentOperation string

const (
	IdempotentDeposit  IdempotentOperation = "deposit"
	IdempotentWithdraw IdempotentOperation = "withdraw"
)

// BuildIdempotencyKey constructs the cache key. Format: "user_id:operation:reference".
func BuildIdempotencyKey(userID uuid.UUID, op IdempotentOperation, reference string) string {
	return userID.String() + ":" + string(op) + ":" + reference
}

// ClientReference namespaces a caller-supplied reference so it can never
// collide with references generated by the marketplace itself.
func ClientReference(op IdempotentOperation, reference string) string {
	return "CLIENT:" + string(op) + ":" + reference
}
