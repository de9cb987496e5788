package batcher

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/safe-solver/internal/types"
)

// ErrSignatureMismatch is returned when a signature recovers to another address
var ErrSignatureMismatch = errors.New("signature does not match address")

// SigningMessage is the text a wallet signs to authorize an input
func SigningMessage(target, address string, addressType types.AddressType, timestamp int64) string {
	return fmt.Sprintf("%s:%s:%d:%d", target, address, int(addressType), timestamp)
}

// NormalizeEVMAddress validates a hex address and returns it lowercased
func NormalizeEVMAddress(address string) (string, error) {
	if !common.IsHexAddress(address) {
		return "", fmt.Errorf("not an EVM address: %q", address)
	}
	return strings.ToLower(common.HexToAddress(address).Hex()), nil
}

// VerifyEVMSignature checks a personal_sign signature of message against address.
// Both the 27/28 and the 0/1 recovery id forms are accepted.
func VerifyEVMSignature(address, message, signature string) error {
	sig, err := hexutil.Decode(signature)
	if err != nil {
		return fmt.Errorf("invalid signature encoding: %w", err)
	}
	if len(sig) != crypto.SignatureLength {
		return fmt.Errorf("invalid signature length %d", len(sig))
	}
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}

	pub, err := crypto.SigToPub(accounts.TextHash([]byte(message)), sig)
	if err != nil {
		return fmt.Errorf("failed to recover signer: %w", err)
	}
	if !strings.EqualFold(crypto.PubkeyToAddress(*pub).Hex(), address) {
		return ErrSignatureMismatch
	}
	return nil
}
