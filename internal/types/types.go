// Package types provides common type definitions for the safe solver node.
package types

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Action is the tag carried in the first position of a concise input
type Action string

const (
	// ActionSetName sets the display name of the signer's account
	ActionSetName Action = "setName"
	// ActionDelegate points the signer's public identity at another address
	ActionDelegate Action = "delegate"
	// ActionInitLevel starts a new game
	ActionInitLevel Action = "initLevel"
	// ActionCheckSafe opens one safe in the current round
	ActionCheckSafe Action = "checkSafe"
	// ActionSubmitScore cashes out the running score of the current game
	ActionSubmitScore Action = "submitScore"
	// ActionCreateAccount links the signer address to a fresh account
	ActionCreateAccount Action = "createAccount"
)

// AllActions lists every action the node understands, in grammar order
var AllActions = []Action{
	ActionSetName,
	ActionDelegate,
	ActionInitLevel,
	ActionCheckSafe,
	ActionSubmitScore,
	ActionCreateAccount,
}

// AddressType identifies the wallet family an address belongs to
type AddressType int

const (
	AddressTypeNone      AddressType = -1
	AddressTypeEVM       AddressType = 0
	AddressTypeCardano   AddressType = 1
	AddressTypeSubstrate AddressType = 2
	AddressTypeAlgorand  AddressType = 3
	AddressTypeMina      AddressType = 4
	AddressTypeMidnight  AddressType = 5
	AddressTypeAvail     AddressType = 6
	AddressTypePolkadot  AddressType = 7
)

var addressTypeNames = map[AddressType]string{
	AddressTypeNone:      "none",
	AddressTypeEVM:       "evm",
	AddressTypeCardano:   "cardano",
	AddressTypeSubstrate: "substrate",
	AddressTypeAlgorand:  "algorand",
	AddressTypeMina:      "mina",
	AddressTypeMidnight:  "midnight",
	AddressTypeAvail:     "avail",
	AddressTypePolkadot:  "polkadot",
}

// String returns the lowercase wallet family name
func (t AddressType) String() string {
	if name, ok := addressTypeNames[t]; ok {
		return name
	}
	return "unknown(" + strconv.Itoa(int(t)) + ")"
}

// IsValid reports whether t is one of the known address types
func (t AddressType) IsValid() bool {
	_, ok := addressTypeNames[t]
	return ok
}

// ParseAddressType accepts either the numeric code or the family name
func ParseAddressType(s string) (AddressType, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		t := AddressType(n)
		if !t.IsValid() {
			return AddressTypeNone, fmt.Errorf("unknown address type: %d", n)
		}
		return t, nil
	}
	for t, name := range addressTypeNames {
		if strings.EqualFold(name, s) {
			return t, nil
		}
	}
	return AddressTypeNone, fmt.Errorf("unknown address type: %q", s)
}

// ConfirmationLevel controls how long the batcher endpoint waits before answering
type ConfirmationLevel string

const (
	// ConfirmNoWait answers as soon as the input is queued
	ConfirmNoWait ConfirmationLevel = "no-wait"
	// ConfirmReceipt answers once the input is accepted by the queue with its id
	ConfirmReceipt ConfirmationLevel = "wait-receipt"
	// ConfirmProcessed answers once a block containing the input has committed
	ConfirmProcessed ConfirmationLevel = "wait-effectstream-processed"
)

// IsValid reports whether c is a known confirmation level
func (c ConfirmationLevel) IsValid() bool {
	switch c {
	case ConfirmNoWait, ConfirmReceipt, ConfirmProcessed:
		return true
	}
	return false
}

// ServiceError represents a structured error response
type ServiceError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *ServiceError) Error() string {
	return e.Message
}

// Service error codes shared between services and the HTTP layer
const (
	CodeAccountNotFound = "ACCOUNT_NOT_FOUND"
	CodeAddressNotFound = "ADDRESS_NOT_FOUND"
	CodeUserNotFound    = "USER_NOT_FOUND"
	CodeGameNotFound    = "GAME_NOT_CONFIGURED"
	CodeInvalidInput    = "INVALID_INPUT"
	CodeInvalidSig      = "INVALID_SIGNATURE"
	CodeEventsDisabled  = "EVENTS_DISABLED"
	CodeConfirmTimeout  = "CONFIRMATION_TIMEOUT"
)

// IsStorableText reports whether s can be stored in a Postgres TEXT column:
// valid UTF-8 without NUL bytes
func IsStorableText(s string) bool {
	return utf8.ValidString(s) && !strings.ContainsRune(s, 0)
}
