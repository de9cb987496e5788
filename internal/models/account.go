// Package models provides data models for the safe solver node.
package models

import (
	"time"

	"github.com/safe-solver/internal/types"
)

// Account is the identity that owns game state, balance and achievements
type Account struct {
	ID             int64     `json:"id" db:"id"`
	PrimaryAddress *string   `json:"primary_address" db:"primary_address"`
	CreatedAt      time.Time `json:"-" db:"created_at"`
}

// Address is a wallet address, optionally linked to an account
type Address struct {
	Address     string            `json:"address" db:"address"`
	AddressType types.AddressType `json:"address_type" db:"address_type"`
	AccountID   *int64            `json:"account_id" db:"account_id"`
}

// Delegation publishes an account under another address; last write wins
type Delegation struct {
	AccountID         int64     `json:"account_id" db:"account_id"`
	DelegateToAddress string    `json:"delegate_to_address" db:"delegate_to_address"`
	DelegatedAt       time.Time `json:"delegated_at" db:"delegated_at"`
}
