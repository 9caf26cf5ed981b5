package domain

import (
	"time"

	"github.com/google/uuid"
)

// StoreStatus is the compliance state of a tenant store.
type StoreStatus string

const (
	StoreStatusActive    StoreStatus = "active"
	StoreStatusSuspended StoreStatus = "suspended"
)

// Store carries the orchestrator-relevant slice of a tenant: compliance
// state, the read-only kill switch, provider configuration, and the fee
// schedule in force. Onboarding and the rest of the tenant model live
// outside this service.
type Store struct {
	ID               uuid.UUID    `json:"id"`
	Status           StoreStatus  `json:"status"`
	ReadOnlyMode     bool         `json:"read_only_mode"`
	BankVerified     bool         `json:"bank_verified"`
	Bank             BankSnapshot `json:"bank"`
	Country          string       `json:"country"`
	Currency         string       `json:"currency"`
	EnabledProviders []string     `json:"enabled_providers"`
	RateSchedule     RateSchedule `json:"rate_schedule"`
	PayoutDailyLimit int64        `json:"payout_daily_limit"` // 0 = service default
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
}

// ProviderEnabled reports whether the store has opted into a provider.
func (s *Store) ProviderEnabled(name string) bool {
	for _, p := range s.EnabledProviders {
		if p == name {
			return true
		}
	}
	return false
}

// CanMutate is the cooperative kill-switch check performed before any
// state-mutating call.
func (s *Store) CanMutate() error {
	if s.ReadOnlyMode {
		return ErrReadOnlyModeEnabled
	}
	if s.Status == StoreStatusSuspended {
		return ErrStoreSuspended
	}
	return nil
}
