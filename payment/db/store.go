// Package db keeps pending purchases between the authorization redirect and
// the completion call.
package db

import (
	"errors"
	"time"
)

var (
	ErrNotFound  = errors.New("pending payment not found")
	ErrMissingID = errors.New("pending payment has no id")
)

// Store is the repository the orchestrator works against. Implementations
// must be safe for concurrent use and must hand out copies, so a caller
// never observes another caller's in-flight mutation.
type Store interface {
	// Put inserts or replaces the record with p.ID.
	Put(p PendingPayment) error

	// Get returns ErrNotFound for unknown and for expired records.
	Get(id string) (PendingPayment, error)

	// Update applies fn to a copy of the record under the store's lock and
	// commits it only when fn returns nil. The committed record is returned.
	Update(id string, fn func(*PendingPayment) error) (PendingPayment, error)

	// Expire removes every record whose ExpiresAt is not after now and
	// returns how many were removed.
	Expire(now time.Time) int

	// Len is the number of records held, expired or not.
	Len() int
}
